package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errCodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/api/ping", s.handlePing)
	r.Get("/api/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Get("/history", s.handleJobHistory)
		r.Post("/{name}/run", s.handleRunJob)
	})

	r.Route("/api/clients/{id}", func(r chi.Router) {
		r.Get("/automation", s.handleAutomationStatus)
		r.Get("/logs", s.handleClientLogs)
		r.Get("/plan", s.handleClientPlan)
	})
	return r
}
