package testutils

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saviobatista/flightboard/internal/types"
)

// MockDraft creates a valid draft scheduled at the given instant
func MockDraft(flightNumber, destination string, scheduled time.Time) types.Draft {
	return types.Draft{
		FlightNumber:  flightNumber,
		Airline:       "Generic",
		Origin:        "TLV",
		Destination:   destination,
		ScheduledTime: scheduled.UTC(),
		Gate:          "A1",
	}
}

// MemoryStore is an in-memory flight store with the same uniqueness and
// revision semantics as the SQL stores
type MemoryStore struct {
	mu      sync.Mutex
	flights map[int64]types.Flight
	nextID  int64
	now     func() time.Time

	// Err, when set, is returned by every operation
	Err error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flights: make(map[int64]types.Flight),
		now:     time.Now,
	}
}

func (s *MemoryStore) numberTaken(number string, except int64) bool {
	for id, f := range s.flights {
		if id != except && f.FlightNumber == number {
			return true
		}
	}
	return false
}

// FindAll returns flights whose destination contains destination, ignoring case
func (s *MemoryStore) FindAll(_ context.Context, destination string) ([]types.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := make([]types.Flight, 0, len(s.flights))
	for _, f := range s.flights {
		if destination != "" && !strings.Contains(strings.ToLower(f.Destination), strings.ToLower(destination)) {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(out[j].ScheduledTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindByID returns the flight or types.ErrNotFound
func (s *MemoryStore) FindByID(_ context.Context, id int64) (types.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return types.Flight{}, s.Err
	}

	f, ok := s.flights[id]
	if !ok {
		return types.Flight{}, types.ErrNotFound
	}
	return f, nil
}

// Create inserts a flight or returns types.ErrConflict
func (s *MemoryStore) Create(_ context.Context, d types.Draft) (types.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return types.Flight{}, s.Err
	}
	if s.numberTaken(d.FlightNumber, 0) {
		return types.Flight{}, types.ErrConflict
	}

	s.nextID++
	f := fromDraft(s.nextID, d, s.now())
	f.Revision = 1
	s.flights[f.ID] = f
	return f, nil
}

// Update replaces a flight's fields
func (s *MemoryStore) Update(_ context.Context, id int64, d types.Draft) (types.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return types.Flight{}, s.Err
	}

	prev, ok := s.flights[id]
	if !ok {
		return types.Flight{}, types.ErrNotFound
	}
	if s.numberTaken(d.FlightNumber, id) {
		return types.Flight{}, types.ErrConflict
	}

	f := fromDraft(id, d, s.now())
	f.Revision = prev.Revision + 1
	s.flights[id] = f
	return f, nil
}

// Delete removes a flight or returns types.ErrNotFound
func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	if _, ok := s.flights[id]; !ok {
		return types.ErrNotFound
	}
	delete(s.flights, id)
	return nil
}

// Count returns the number of stored flights
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return len(s.flights), nil
}

func fromDraft(id int64, d types.Draft, now time.Time) types.Flight {
	return types.Flight{
		ID:            id,
		FlightNumber:  d.FlightNumber,
		Airline:       d.Airline,
		Origin:        d.Origin,
		Destination:   d.Destination,
		ScheduledTime: d.ScheduledTime,
		EstimatedTime: d.EstimatedTime,
		Gate:          d.Gate,
		IsArrival:     d.IsArrival,
		LastUpdatedAt: now.UTC().Truncate(time.Microsecond),
		Remarks:       d.Remarks,
	}
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
