package domain

import "errors"

// Error taxonomy. Validation failures are rejected before a task is queued;
// execution failures are recorded on the task and never crash the worker.
var (
	// ErrConfig marks an invalid parameter range. Rejected eagerly, never retried.
	ErrConfig = errors.New("invalid configuration")
	// ErrGridDetection marks auto-detection that found no separators.
	// Surfaced to the caller, not retried; retry with explicit rows/cols.
	ErrGridDetection = errors.New("grid detection found no separators")
	// ErrRemoval marks a background-removal collaborator failure. Retried once.
	ErrRemoval = errors.New("background removal failed")
	// ErrGeneration marks a generation collaborator that returned no image. Retried once.
	ErrGeneration = errors.New("image generation failed")
	// ErrNoSpritesFound marks a run where zero regions survived filtering.
	// A successful-but-empty result, not a crash.
	ErrNoSpritesFound = errors.New("no sprites found")
	// ErrPackaging marks an archive write failure. Fatal, not retried.
	ErrPackaging = errors.New("packaging failed")
	// ErrNotFound marks a missing task.
	ErrNotFound = errors.New("not found")
)

// IsTransient reports whether the error came from an external collaborator
// and qualifies for the single automatic retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRemoval) || errors.Is(err, ErrGeneration)
}
