package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"ad-autopilot/internal/application/automation"
	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/application/scheduler"
)

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeNotFound         = "NOT_FOUND"
	errCodeConflict         = "CONFLICT"
	errCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	errCodeUnavailable      = "SERVICE_UNAVAILABLE"
	errCodeInternal         = "INTERNAL_ERROR"
)

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

type dataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Success:   false,
		Error:     msg,
		ErrorCode: code,
	})
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeAppError 將應用層錯誤對應到 HTTP 狀態碼。
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, scheduler.ErrUnknownJob):
		writeError(w, http.StatusNotFound, errCodeNotFound, err.Error())
	case errors.Is(err, automation.ErrNotActive), errors.Is(err, automation.ErrNotPaused):
		writeError(w, http.StatusConflict, errCodeConflict, err.Error())
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, errCodeInternal, "internal error")
	}
}
