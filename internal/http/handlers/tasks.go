package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"spriteforge/internal/domain"
)

// maxUploadBytes caps source sheet uploads.
const maxUploadBytes = 32 << 20

type promptSubmission struct {
	Prompt string         `json:"prompt"`
	Model  string         `json:"model"`
	Params *domain.Params `json:"params"`
}

type taskCreatedResponse struct {
	TaskID string `json:"task_id"`
}

type taskStatusResponse struct {
	TaskID      string   `json:"task_id"`
	Status      string   `json:"status"`
	Progress    int      `json:"progress"`
	SpriteCount *int     `json:"sprite_count,omitempty"`
	Sizes       []string `json:"sizes,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// CreateTask accepts either a multipart upload (file plus optional params
// JSON field) or a JSON body with a generation prompt. Parameter validation
// happens here, before anything is queued.
func (a *App) CreateTask(w http.ResponseWriter, r *http.Request) {
	task := domain.NewTask(uuid.NewString(), domain.DefaultParams())

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := a.fillFromUpload(r, task); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	case strings.HasPrefix(contentType, "application/json"):
		if err := fillFromPrompt(r, task); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	default:
		a.error(w, http.StatusUnsupportedMediaType, "bad_request", "expected multipart/form-data or application/json")
		return
	}

	if err := task.Params.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_params", err.Error())
		return
	}

	if err := a.Repo.Create(r.Context(), task); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: task create failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue task")
		return
	}

	a.Logger.Info().Str("task_id", task.ID).Str("mode", string(task.Params.Mode)).Bool("generated", task.Generated()).Msg("handlers: task queued")
	a.json(w, http.StatusAccepted, taskCreatedResponse{TaskID: task.ID})
}

func (a *App) fillFromUpload(r *http.Request, task *domain.Task) error {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return fmt.Errorf("invalid multipart payload: %w", err)
	}
	if raw := r.FormValue("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &task.Params); err != nil {
			return fmt.Errorf("invalid params: %w", err)
		}
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return errors.New("file field is required")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return errors.New("uploaded file is empty")
	}
	key, err := a.Store.Write(r.Context(), "uploads/"+task.ID+".png", data)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	task.InputKey = key
	return nil
}

func fillFromPrompt(r *http.Request, task *domain.Task) error {
	var sub promptSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if strings.TrimSpace(sub.Prompt) == "" {
		return errors.New("prompt is required")
	}
	task.Prompt = sub.Prompt
	task.Model = sub.Model
	if sub.Params != nil {
		task.Params = *sub.Params
	}
	return nil
}

// TaskStatus returns the task's lifecycle state and progress. Sprite count
// and size names appear once the task succeeds; the error message appears on
// failure and on the empty-result condition.
func (a *App) TaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	task, err := a.Repo.GetByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		a.Logger.Error().Err(err).Str("task_id", taskID).Msg("handlers: status lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load task")
		return
	}

	resp := taskStatusResponse{
		TaskID:   task.ID,
		Status:   string(task.Status),
		Progress: task.Progress,
		Error:    task.ErrorMessage,
	}
	if task.Status == domain.StatusSuccess {
		count := task.SpriteCount
		resp.SpriteCount = &count
		resp.Sizes = task.SizeNames
	}
	a.json(w, http.StatusOK, resp)
}

// DownloadTask streams the result archive for a successful task.
func (a *App) DownloadTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	task, err := a.Repo.GetByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		a.Logger.Error().Err(err).Str("task_id", taskID).Msg("handlers: download lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load task")
		return
	}
	if task.Status != domain.StatusSuccess || task.ResultKey == "" {
		a.error(w, http.StatusConflict, "not_ready", "task has not finished successfully")
		return
	}

	path, err := a.Store.Path(task.ResultKey)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "invalid result reference")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=sprites_%s.zip", task.ID))
	http.ServeFile(w, r, path)
}
