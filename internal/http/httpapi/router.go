package httpapi

import (
	"net/http"

	"spriteforge/internal/http/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the task endpoints onto a chi router with the standard
// middleware chain.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/tasks", func(r chi.Router) {
		r.Post("/", app.CreateTask)
		r.Get("/{task_id}", app.TaskStatus)
		r.Get("/{task_id}/download", app.DownloadTask)
	})

	return r
}
