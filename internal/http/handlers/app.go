package handlers

import (
	"encoding/json"
	"net/http"

	"spriteforge/internal/domain"
	"spriteforge/internal/infra"
	"spriteforge/internal/storage"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Logger infra.Logger
	Repo   domain.TaskRepository
	Store  *storage.FileStore
}

// NewApp creates the handler container.
func NewApp(logger infra.Logger, taskRepo domain.TaskRepository, store *storage.FileStore) *App {
	return &App{Logger: logger, Repo: taskRepo, Store: store}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

// Health reports liveness.
func (a *App) Health(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
