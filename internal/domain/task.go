package domain

import "time"

// TaskStatus enumerates task lifecycle states.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusGenerating TaskStatus = "GENERATING"
	StatusProcessing TaskStatus = "PROCESSING"
	StatusPackaging  TaskStatus = "PACKAGING"
	StatusSuccess    TaskStatus = "SUCCESS"
	StatusFailure    TaskStatus = "FAILURE"
)

// Terminal reports whether the status ends the task lifecycle.
func (s TaskStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Any non-terminal state may fail; otherwise the pipeline moves
// strictly forward.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailure {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusGenerating || next == StatusProcessing
	case StatusGenerating:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusPackaging
	case StatusPackaging:
		return next == StatusSuccess
	}
	return false
}

// Task identifies one pipeline run. The id is opaque and globally unique;
// the working directory derived from it is reclaimed on every terminal
// transition.
type Task struct {
	ID           string
	Status       TaskStatus
	Progress     int
	InputKey     string
	Prompt       string
	Model        string
	Params       Params
	ResultKey    string
	SpriteCount  int
	SizeNames    []string
	ErrorMessage string
	RetriesLeft  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTask constructs a pending task. Tasks submitted with a prompt enter the
// generation path before processing; upload-driven tasks go straight to
// PROCESSING when claimed.
func NewTask(id string, params Params) *Task {
	return &Task{
		ID:          id,
		Status:      StatusPending,
		Progress:    0,
		Params:      params,
		RetriesLeft: 1,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

// Generated reports whether the source image must be produced by the
// generation collaborator first.
func (t *Task) Generated() bool {
	return t.Prompt != ""
}

// AdvanceProgress raises progress to p, never lowering it. Progress is
// coarse: checkpoints only, 0-100.
func (t *Task) AdvanceProgress(p int) {
	if p > 100 {
		p = 100
	}
	if p > t.Progress {
		t.Progress = p
	}
}
