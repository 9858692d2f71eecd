package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spriteforge/internal/domain"
)

// Postgres implements domain.TaskRepository on a pgx pool. Claims use
// FOR UPDATE SKIP LOCKED so concurrent workers never receive the same task.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a task repository backed by PostgreSQL.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the tasks table when missing.
func (r *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tasks (
    id            TEXT PRIMARY KEY,
    status        TEXT NOT NULL,
    progress      INT NOT NULL DEFAULT 0,
    input_key     TEXT NOT NULL DEFAULT '',
    prompt        TEXT NOT NULL DEFAULT '',
    model         TEXT NOT NULL DEFAULT '',
    params_json   JSONB NOT NULL,
    result_key    TEXT NOT NULL DEFAULT '',
    sprite_count  INT NOT NULL DEFAULT 0,
    size_names    JSONB NOT NULL DEFAULT '[]',
    error_message TEXT NOT NULL DEFAULT '',
    retries_left  INT NOT NULL DEFAULT 1,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_tasks_status_created ON tasks (status, created_at);
`)
	return err
}

// Create inserts a new task record.
func (r *Postgres) Create(ctx context.Context, task *domain.Task) error {
	paramsJSON, sizeNames, err := encodeTask(task)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO tasks (id, status, progress, input_key, prompt, model, params_json, result_key, sprite_count, size_names, error_message, retries_left, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
`,
		task.ID, task.Status, task.Progress, task.InputKey, task.Prompt, task.Model,
		paramsJSON, task.ResultKey, task.SpriteCount, sizeNames, task.ErrorMessage,
		task.RetriesLeft, task.CreatedAt, task.UpdatedAt,
	)
	return err
}

const taskColumns = `id, status, progress, input_key, prompt, model, params_json, result_key, sprite_count, size_names, error_message, retries_left, created_at, updated_at`

// GetByID fetches a task by its identifier.
func (r *Postgres) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1;`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

// Claim atomically hands the oldest pending task to this caller. Tasks
// submitted with a prompt move to GENERATING, others straight to
// PROCESSING.
func (r *Postgres) Claim(ctx context.Context) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `
WITH next AS (
    SELECT id FROM tasks
    WHERE status = 'PENDING'
    ORDER BY created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
UPDATE tasks
SET status = CASE WHEN prompt <> '' THEN 'GENERATING' ELSE 'PROCESSING' END,
    updated_at = NOW()
WHERE id IN (SELECT id FROM next)
RETURNING `+taskColumns+`;`)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

// Update persists the mutable task fields.
func (r *Postgres) Update(ctx context.Context, task *domain.Task) error {
	_, sizeNames, err := encodeTask(task)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
UPDATE tasks
SET status = $2,
    progress = $3,
    input_key = $4,
    result_key = $5,
    sprite_count = $6,
    size_names = $7,
    error_message = $8,
    retries_left = $9,
    updated_at = NOW()
WHERE id = $1;
`,
		task.ID, task.Status, task.Progress, task.InputKey, task.ResultKey,
		task.SpriteCount, sizeNames, task.ErrorMessage, task.RetriesLeft,
	)
	return err
}

// Requeue returns a task to PENDING after a transient failure, spending one
// retry.
func (r *Postgres) Requeue(ctx context.Context, task *domain.Task) error {
	task.RetriesLeft--
	task.Status = domain.StatusPending
	_, err := r.pool.Exec(ctx, `
UPDATE tasks
SET status = 'PENDING',
    input_key = $2,
    retries_left = $3,
    updated_at = NOW()
WHERE id = $1;
`, task.ID, task.InputKey, task.RetriesLeft)
	return err
}

// rowScanner covers pgx.Row and database/sql rows alike.
type rowScanner interface {
	Scan(dest ...any) error
}

func encodeTask(task *domain.Task) (paramsJSON, sizeNames []byte, err error) {
	paramsJSON, err = json.Marshal(task.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("encode params: %w", err)
	}
	names := task.SizeNames
	if names == nil {
		names = []string{}
	}
	sizeNames, err = json.Marshal(names)
	if err != nil {
		return nil, nil, fmt.Errorf("encode size names: %w", err)
	}
	return paramsJSON, sizeNames, nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var paramsJSON, sizeNames []byte
	if err := row.Scan(
		&task.ID, &task.Status, &task.Progress, &task.InputKey, &task.Prompt,
		&task.Model, &paramsJSON, &task.ResultKey, &task.SpriteCount, &sizeNames,
		&task.ErrorMessage, &task.RetriesLeft, &task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(paramsJSON, &task.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if err := json.Unmarshal(sizeNames, &task.SizeNames); err != nil {
		return nil, fmt.Errorf("decode size names: %w", err)
	}
	return &task, nil
}
