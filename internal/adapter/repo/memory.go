// Package repo provides the task repository backends: Postgres for the
// production queue, SQLite for standalone deployments, and an in-memory
// store for tests and the CLI.
package repo

import (
	"context"
	"sync"

	"spriteforge/internal/domain"
)

// Memory is a mutex-guarded in-memory TaskRepository. Claim order is
// submission order, matching the SQL backends.
type Memory struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
	order []string
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]*domain.Task)}
}

// Create stores a copy of the task.
func (m *Memory) Create(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = copyTask(task)
	m.order = append(m.order, task.ID)
	return nil
}

// GetByID returns a copy of the stored task.
func (m *Memory) GetByID(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyTask(task), nil
}

// Claim hands out the oldest pending task, moving it out of PENDING under
// the lock so no other caller can claim it.
func (m *Memory) Claim(_ context.Context) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		task := m.tasks[id]
		if task.Status != domain.StatusPending {
			continue
		}
		if task.Generated() {
			task.Status = domain.StatusGenerating
		} else {
			task.Status = domain.StatusProcessing
		}
		return copyTask(task), nil
	}
	return nil, domain.ErrNotFound
}

// Update overwrites the stored task with the caller's copy.
func (m *Memory) Update(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return domain.ErrNotFound
	}
	m.tasks[task.ID] = copyTask(task)
	return nil
}

// Requeue returns the task to PENDING with one less retry.
func (m *Memory) Requeue(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[task.ID]
	if !ok {
		return domain.ErrNotFound
	}
	task.RetriesLeft--
	task.Status = domain.StatusPending
	stored.RetriesLeft = task.RetriesLeft
	stored.Status = domain.StatusPending
	stored.InputKey = task.InputKey
	return nil
}

func copyTask(task *domain.Task) *domain.Task {
	clone := *task
	clone.SizeNames = append([]string(nil), task.SizeNames...)
	clone.Params.OutputSizes = append([]domain.OutputSize(nil), task.Params.OutputSizes...)
	return &clone
}
