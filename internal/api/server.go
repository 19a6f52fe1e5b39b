// Package api serves the flight board over HTTP and WebSocket.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/saviobatista/flightboard/internal/broadcast"
	"github.com/saviobatista/flightboard/internal/logger"
	"github.com/saviobatista/flightboard/internal/service"
	"github.com/saviobatista/flightboard/internal/stats"
	"github.com/saviobatista/flightboard/internal/types"
)

// FlightService is the subset of the service used by the handlers
type FlightService interface {
	List(ctx context.Context, filter service.Filter) ([]types.FlightView, error)
	Get(ctx context.Context, id int64) (types.FlightView, error)
	Create(ctx context.Context, draft types.Draft) (types.FlightView, error)
	Update(ctx context.Context, id int64, draft types.Draft) (types.FlightView, error)
	Delete(ctx context.Context, id int64) error
	Now() time.Time
}

// Server holds the HTTP handlers
type Server struct {
	svc     FlightService
	hub     *broadcast.Hub
	log     logger.Logger
	metrics *stats.Metrics
	mux     *http.ServeMux
}

// NewServer wires every route
func NewServer(svc FlightService, hub *broadcast.Hub, log logger.Logger, metrics *stats.Metrics) *Server {
	s := &Server{
		svc:     svc,
		hub:     hub,
		log:     log.With("component", "api"),
		metrics: metrics,
		mux:     http.NewServeMux(),
	}

	s.handle("GET /api/flights", s.listFlights)
	s.handle("GET /api/flights/search", s.listFlights)
	s.handle("GET /api/flights/{id}", s.getFlight)
	s.handle("POST /api/flights", s.createFlight)
	s.handle("PUT /api/flights/{id}", s.updateFlight)
	s.handle("DELETE /api/flights/{id}", s.deleteFlight)
	s.mux.HandleFunc("GET /hubs/flights", s.serveObserver)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	s.mux.Handle("GET /metrics", metrics.Handler())

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handle registers h and records its latency under the route pattern
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		s.metrics.ObserveRequest(pattern, rec.code, started)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}
