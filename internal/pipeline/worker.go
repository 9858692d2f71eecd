package pipeline

import (
	"context"
	"errors"
	"time"

	"spriteforge/internal/domain"
	"spriteforge/internal/infra"
	"spriteforge/internal/providers/genai"
	"spriteforge/internal/providers/removal"
	"spriteforge/internal/storage"
)

// Generator is the generation collaborator contract: a prompt in, an
// encoded sheet out.
type Generator interface {
	GenerateSheet(ctx context.Context, req genai.GenerateRequest) ([]byte, error)
}

// Worker pulls tasks from the repository and drives them through the
// pipeline. Multiple workers may run concurrently; the repository's claim
// guarantees a task is delivered to exactly one of them.
type Worker struct {
	Repo         domain.TaskRepository
	Store        *storage.FileStore
	Remover      removal.Remover
	Generator    Generator
	Logger       infra.Logger
	PollInterval time.Duration
}

// Run polls for work until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	w.Logger.Info().Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		task, err := w.Repo.Claim(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.Logger.Error().Err(err).Msg("worker: claim failed")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
			continue
		}

		w.HandleTask(ctx, task)
	}
}

// HandleTask runs one claimed task to a terminal state. Execution errors are
// classified and recorded on the task, never propagated as a crash; a
// transient collaborator failure is requeued while the task has retry
// budget left.
func (w *Worker) HandleTask(ctx context.Context, task *domain.Task) {
	w.Logger.Info().Str("task_id", task.ID).Str("mode", string(task.Params.Mode)).Msg("worker: picked task")

	notify := func(status domain.TaskStatus, progress int) {
		if task.Status != status && task.Status.CanTransition(status) {
			task.Status = status
		}
		task.AdvanceProgress(progress)
		if err := w.Repo.Update(ctx, task); err != nil {
			w.Logger.Error().Err(err).Str("task_id", task.ID).Msg("worker: progress update failed")
		}
	}

	result, err := w.execute(ctx, task, notify)
	switch {
	case err == nil || errors.Is(err, domain.ErrNoSpritesFound):
		task.Status = domain.StatusSuccess
		task.Progress = ProgressDone
		task.SpriteCount = result.SpriteCount
		task.SizeNames = result.SizeNames
		task.ResultKey = result.ArchiveKey
		if err != nil {
			// Zero sprites is a reportable empty result, not a failure.
			task.ErrorMessage = err.Error()
		}
	case domain.IsTransient(err) && task.RetriesLeft > 0:
		w.Logger.Warn().Err(err).Str("task_id", task.ID).Msg("worker: transient failure, requeueing")
		if reqErr := w.Repo.Requeue(ctx, task); reqErr != nil {
			w.Logger.Error().Err(reqErr).Str("task_id", task.ID).Msg("worker: requeue failed")
			task.Status = domain.StatusFailure
			task.ErrorMessage = err.Error()
			break
		}
		return
	default:
		w.Logger.Error().Err(err).Str("task_id", task.ID).Msg("worker: task failed")
		task.Status = domain.StatusFailure
		task.ErrorMessage = err.Error()
	}

	if err := w.Repo.Update(ctx, task); err != nil {
		w.Logger.Error().Err(err).Str("task_id", task.ID).Msg("worker: final update failed")
	}
}

func (w *Worker) execute(ctx context.Context, task *domain.Task, notify Notify) (Result, error) {
	if task.Generated() && task.InputKey == "" {
		notify(domain.StatusGenerating, 0)
		sheet, err := w.Generator.GenerateSheet(ctx, genai.GenerateRequest{
			Prompt:    task.Prompt,
			Model:     task.Model,
			RequestID: task.ID,
		})
		if err != nil {
			return Result{}, err
		}
		key, err := w.Store.Write(ctx, "uploads/"+task.ID+".png", sheet)
		if err != nil {
			return Result{}, err
		}
		task.InputKey = key
		notify(domain.StatusGenerating, ProgressGenerated)
	}

	notify(domain.StatusProcessing, ProgressGenerated)

	pipe := &Pipeline{Store: w.Store, Remover: w.Remover, Logger: w.Logger}
	return pipe.Run(ctx, task, notify)
}
