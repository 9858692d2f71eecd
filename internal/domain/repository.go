package domain

import "context"

// TaskRepository persists tasks and doubles as the work queue. Claim hands
// the oldest pending task to exactly one worker; backends enforce single
// delivery (row locking in Postgres, a transaction in SQLite, a mutex in
// memory).
type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, id string) (*Task, error)
	// Claim atomically moves the oldest claimable task out of PENDING and
	// returns it. Returns ErrNotFound when no task is available.
	Claim(ctx context.Context) (*Task, error)
	// Update persists status, progress, result fields and the retry counter.
	Update(ctx context.Context, task *Task) error
	// Requeue returns a task to PENDING after a transient failure,
	// decrementing its retry budget.
	Requeue(ctx context.Context, task *Task) error
}
