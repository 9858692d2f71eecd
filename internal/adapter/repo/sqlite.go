package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"spriteforge/internal/domain"
)

// SQLite implements domain.TaskRepository on a local SQLite database, for
// standalone deployments that do not run Postgres.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and ensures the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite writes are serialized anyway; a single connection avoids
	// SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)
	r := &SQLite{db: db}
	if err := r.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLite) ensureSchema() error {
	_, err := r.db.Exec(`
CREATE TABLE IF NOT EXISTS tasks (
    id            TEXT PRIMARY KEY,
    status        TEXT NOT NULL,
    progress      INTEGER NOT NULL DEFAULT 0,
    input_key     TEXT NOT NULL DEFAULT '',
    prompt        TEXT NOT NULL DEFAULT '',
    model         TEXT NOT NULL DEFAULT '',
    params_json   TEXT NOT NULL,
    result_key    TEXT NOT NULL DEFAULT '',
    sprite_count  INTEGER NOT NULL DEFAULT 0,
    size_names    TEXT NOT NULL DEFAULT '[]',
    error_message TEXT NOT NULL DEFAULT '',
    retries_left  INTEGER NOT NULL DEFAULT 1,
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status_created ON tasks (status, created_at);
`)
	return err
}

// Close closes the underlying database.
func (r *SQLite) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Create inserts a new task record.
func (r *SQLite) Create(ctx context.Context, task *domain.Task) error {
	paramsJSON, sizeNames, err := encodeTask(task)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO tasks (id, status, progress, input_key, prompt, model, params_json, result_key, sprite_count, size_names, error_message, retries_left, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		task.ID, task.Status, task.Progress, task.InputKey, task.Prompt, task.Model,
		string(paramsJSON), task.ResultKey, task.SpriteCount, string(sizeNames),
		task.ErrorMessage, task.RetriesLeft, task.CreatedAt, task.UpdatedAt,
	)
	return err
}

// GetByID fetches a task by its identifier.
func (r *SQLite) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?;`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

// Claim moves the oldest pending task out of PENDING inside one
// transaction, so concurrent workers cannot claim the same row.
func (r *SQLite) Claim(ctx context.Context) (*domain.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
SELECT `+taskColumns+` FROM tasks
WHERE status = 'PENDING'
ORDER BY created_at
LIMIT 1;`)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if task.Generated() {
		task.Status = domain.StatusGenerating
	} else {
		task.Status = domain.StatusProcessing
	}
	res, err := tx.ExecContext(ctx, `
UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status = 'PENDING';
`, task.Status, time.Now().UTC(), task.ID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected != 1 {
		return nil, domain.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return task, nil
}

// Update persists the mutable task fields.
func (r *SQLite) Update(ctx context.Context, task *domain.Task) error {
	_, sizeNames, err := encodeTask(task)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE tasks
SET status = ?, progress = ?, input_key = ?, result_key = ?, sprite_count = ?,
    size_names = ?, error_message = ?, retries_left = ?, updated_at = ?
WHERE id = ?;
`,
		task.Status, task.Progress, task.InputKey, task.ResultKey, task.SpriteCount,
		string(sizeNames), task.ErrorMessage, task.RetriesLeft, time.Now().UTC(), task.ID,
	)
	return err
}

// Requeue returns a task to PENDING after a transient failure, spending one
// retry.
func (r *SQLite) Requeue(ctx context.Context, task *domain.Task) error {
	task.RetriesLeft--
	task.Status = domain.StatusPending
	_, err := r.db.ExecContext(ctx, `
UPDATE tasks SET status = 'PENDING', input_key = ?, retries_left = ?, updated_at = ? WHERE id = ?;
`, task.InputKey, task.RetriesLeft, time.Now().UTC(), task.ID)
	return err
}
