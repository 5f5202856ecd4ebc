package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleAutomationStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Automation == nil {
		writeError(w, http.StatusServiceUnavailable, errCodeUnavailable, "automation service not configured")
		return
	}
	view, err := s.deps.Automation.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, view)
}

func queryInt(r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// handleClientLogs 分頁列出稽核紀錄，limit/offset 交由服務層套用預設與上限。
func (s *Server) handleClientLogs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Automation == nil {
		writeError(w, http.StatusServiceUnavailable, errCodeUnavailable, "automation service not configured")
		return
	}
	limit, ok := queryInt(r, "limit")
	if !ok {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "limit must be a non-negative integer")
		return
	}
	offset, ok := queryInt(r, "offset")
	if !ok {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "offset must be a non-negative integer")
		return
	}
	logs, err := s.deps.Automation.Logs(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    logs,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) handleClientPlan(w http.ResponseWriter, r *http.Request) {
	if s.deps.Plans == nil {
		writeError(w, http.StatusServiceUnavailable, errCodeUnavailable, "strategy engine not configured")
		return
	}
	clientID := chi.URLParam(r, "id")
	plan, ok, err := s.deps.Plans.CachedPlan(r.Context(), clientID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errCodeNotFound, "no cached plan for client "+clientID)
		return
	}
	writeData(w, plan)
}
