package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/saviobatista/flightboard/internal/status"
	"github.com/saviobatista/flightboard/internal/types"
)

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeMessage(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, errorResponse{Message: msg})
}

// writeError maps service errors to status codes
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeMessage(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, status.ErrUnknownStatus):
		s.writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotFound):
		s.writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrConflict):
		s.writeMessage(w, http.StatusConflict, "FlightNumber already exists")
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
