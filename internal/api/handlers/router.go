package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/statement-reconciler/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// NewRouter mounts the job endpoints and the health check behind the
// request middleware.
func NewRouter(jobsHandler *JobsHandler, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID(log))
	r.Use(middleware.Logger(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", jobsHandler.ListJobs)
		r.Post("/", jobsHandler.EnqueueReconcile)
		r.Get("/{job_id}", jobsHandler.GetJob)
	})

	return r
}
