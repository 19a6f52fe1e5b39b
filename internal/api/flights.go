package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/saviobatista/flightboard/internal/service"
)

const maxBodyBytes = 1 << 20

func (s *Server) listFlights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	views, err := s.svc.List(r.Context(), service.Filter{
		Destination: q.Get("destination"),
		Status:      q.Get("status"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) getFlight(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	view, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) createFlight(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	draft, err := req.draft(s.svc.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.svc.Create(r.Context(), draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/flights/%d", view.ID))
	s.writeJSON(w, http.StatusCreated, view)
}

func (s *Server) updateFlight(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	draft, err := req.draft(s.svc.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.svc.Update(r.Context(), id, draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) deleteFlight(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeMessage(w, http.StatusBadRequest, "invalid flight id")
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (flightRequest, bool) {
	var req flightRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return flightRequest{}, false
	}
	return req, true
}
