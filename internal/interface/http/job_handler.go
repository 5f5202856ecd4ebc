package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeError(w, http.StatusServiceUnavailable, errCodeUnavailable, "scheduler not configured")
		return
	}
	writeData(w, s.deps.Jobs.Jobs())
}

func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeError(w, http.StatusServiceUnavailable, errCodeUnavailable, "scheduler not configured")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeData(w, s.deps.Jobs.History(limit))
}

// handleRunJob 同步執行指定工作；用戶端斷線不會中止執行中的工作。
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeError(w, http.StatusServiceUnavailable, errCodeUnavailable, "scheduler not configured")
		return
	}
	name := chi.URLParam(r, "name")
	run, err := s.deps.Jobs.RunNow(context.WithoutCancel(r.Context()), name, "api")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, run)
}
