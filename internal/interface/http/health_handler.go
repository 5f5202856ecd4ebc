package httpapi

import (
	"net/http"
	"time"
)

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "pong",
		"timestamp": s.now().Unix(),
	})
}

// handleHealth 回報資料層連線狀態；資料層異常時回 503。
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	health := "ok"
	store := s.deps.StoreKind
	if store == "" {
		store = "unknown"
	}
	dbStatus := "ok"
	if s.deps.Store == nil {
		dbStatus = "not_configured"
	} else if err := s.deps.Store.Ping(r.Context()); err != nil {
		dbStatus = "error: " + err.Error()
		health = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"success": status == http.StatusOK,
		"health":  health,
		"store":   store,
		"db":      dbStatus,
		"time":    s.now().Format(time.RFC3339),
	})
}
