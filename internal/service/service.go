package service

import (
	"context"
	"strings"
	"time"

	"github.com/saviobatista/flightboard/internal/broadcast"
	"github.com/saviobatista/flightboard/internal/logger"
	"github.com/saviobatista/flightboard/internal/stats"
	"github.com/saviobatista/flightboard/internal/status"
	"github.com/saviobatista/flightboard/internal/types"
)

// FlightStore is the durable flight set. Implementations enforce flight
// number uniqueness atomically and return types.ErrNotFound and
// types.ErrConflict.
type FlightStore interface {
	FindAll(ctx context.Context, destination string) ([]types.Flight, error)
	FindByID(ctx context.Context, id int64) (types.Flight, error)
	Create(ctx context.Context, draft types.Draft) (types.Flight, error)
	Update(ctx context.Context, id int64, draft types.Draft) (types.Flight, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// Notifier announces committed changes to observers
type Notifier interface {
	Broadcast(ev broadcast.Event) bool
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Destination string
	Status      string
}

// Service orchestrates store writes, status derivation and broadcasts
type Service struct {
	store    FlightStore
	notifier Notifier
	now      func() time.Time
	log      logger.Logger
	metrics  *stats.Metrics
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the wall clock used for status derivation
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a flight service
func New(store FlightStore, notifier Notifier, log logger.Logger, metrics *stats.Metrics, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		log:      log.With("component", "service"),
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock reading in UTC
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// List returns every flight matching the filter, ordered by scheduled time
func (s *Service) List(ctx context.Context, filter Filter) ([]types.FlightView, error) {
	var want status.Status
	if filter.Status != "" {
		parsed, err := status.ParseStatus(filter.Status)
		if err != nil {
			return nil, err
		}
		want = parsed
	}

	flights, err := s.store.FindAll(ctx, strings.TrimSpace(filter.Destination))
	if err != nil {
		return nil, err
	}

	now := s.Now()
	views := make([]types.FlightView, 0, len(flights))
	for _, f := range flights {
		v := f.View(now)
		if want != "" && v.Status != want.String() {
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

// Snapshot returns every stored flight with its store revision, for callers
// that announce changes themselves
func (s *Service) Snapshot(ctx context.Context) ([]types.Flight, error) {
	return s.store.FindAll(ctx, "")
}

// Get returns a single flight
func (s *Service) Get(ctx context.Context, id int64) (types.FlightView, error) {
	f, err := s.store.FindByID(ctx, id)
	if err != nil {
		return types.FlightView{}, err
	}
	return f.View(s.Now()), nil
}

// Create stores a new flight and announces it
func (s *Service) Create(ctx context.Context, draft types.Draft) (types.FlightView, error) {
	f, err := s.store.Create(ctx, draft.UTC())
	s.metrics.RecordMutation("create", err)
	if err != nil {
		return types.FlightView{}, err
	}

	v := f.View(s.Now())
	s.notifier.Broadcast(broadcast.Event{Kind: broadcast.Created, FlightID: f.ID, Revision: f.Revision, Payload: v})
	s.log.Info("flight created", "flight_id", f.ID, "flight_number", f.FlightNumber, "status", v.Status)
	return v, nil
}

// Update replaces a flight's fields and announces the new state
func (s *Service) Update(ctx context.Context, id int64, draft types.Draft) (types.FlightView, error) {
	f, err := s.store.Update(ctx, id, draft.UTC())
	s.metrics.RecordMutation("update", err)
	if err != nil {
		return types.FlightView{}, err
	}

	v := f.View(s.Now())
	s.notifier.Broadcast(broadcast.Event{Kind: broadcast.Updated, FlightID: f.ID, Revision: f.Revision, Payload: v})
	s.log.Info("flight updated", "flight_id", f.ID, "revision", f.Revision, "status", v.Status)
	return v, nil
}

// Delete removes a flight and announces its id
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.Delete(ctx, id)
	s.metrics.RecordMutation("delete", err)
	if err != nil {
		return err
	}

	s.notifier.Broadcast(broadcast.Event{Kind: broadcast.Deleted, FlightID: id})
	s.log.Info("flight deleted", "flight_id", id)
	return nil
}

// AnnounceStatus broadcasts a time-driven status change for f
func (s *Service) AnnounceStatus(f types.Flight, now time.Time) bool {
	v := f.View(now)
	return s.notifier.Broadcast(broadcast.Event{Kind: broadcast.StatusChanged, FlightID: f.ID, Revision: f.Revision, Payload: v})
}
