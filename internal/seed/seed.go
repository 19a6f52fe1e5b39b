// Package seed populates an empty flight store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saviobatista/flightboard/internal/logger"
	"github.com/saviobatista/flightboard/internal/types"
)

// Store is the subset of the flight store needed for seeding
type Store interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, draft types.Draft) (types.Flight, error)
}

// Entry is one seed flight. ScheduledIn is an offset from the seeding
// instant, e.g. "2h" or "-1h".
type Entry struct {
	FlightNumber string  `yaml:"flightNumber"`
	Airline      string  `yaml:"airline"`
	Origin       string  `yaml:"origin"`
	Destination  string  `yaml:"destination"`
	Gate         string  `yaml:"gate"`
	ScheduledIn  string  `yaml:"scheduledIn"`
	EstimatedIn  string  `yaml:"estimatedIn"`
	IsArrival    bool    `yaml:"isArrival"`
	Remarks      *string `yaml:"remarks"`
}

// Defaults returns the built-in seed set
func Defaults() []Entry {
	return []Entry{
		{FlightNumber: "FB1001", Airline: "Generic", Origin: "TLV", Destination: "LHR", Gate: "A1", ScheduledIn: "2h"},
		{FlightNumber: "FB1002", Airline: "Generic", Origin: "TLV", Destination: "AMS", Gate: "B2", ScheduledIn: "20m"},
		{FlightNumber: "FB1003", Airline: "Generic", Origin: "TLV", Destination: "JFK", Gate: "C3", ScheduledIn: "-1h"},
	}
}

// Load reads a YAML list of entries
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return entries, nil
}

// Draft resolves the entry relative to now
func (e Entry) Draft(now time.Time) (types.Draft, error) {
	if strings.TrimSpace(e.FlightNumber) == "" {
		return types.Draft{}, errors.New("seed entry without flightNumber")
	}
	in, err := time.ParseDuration(e.ScheduledIn)
	if err != nil {
		return types.Draft{}, fmt.Errorf("invalid scheduledIn for %s: %w", e.FlightNumber, err)
	}

	d := types.Draft{
		FlightNumber:  e.FlightNumber,
		Airline:       e.Airline,
		Origin:        e.Origin,
		Destination:   e.Destination,
		ScheduledTime: now.Add(in),
		Gate:          e.Gate,
		IsArrival:     e.IsArrival,
		Remarks:       e.Remarks,
	}
	if e.EstimatedIn != "" {
		est, err := time.ParseDuration(e.EstimatedIn)
		if err != nil {
			return types.Draft{}, fmt.Errorf("invalid estimatedIn for %s: %w", e.FlightNumber, err)
		}
		at := now.Add(est)
		d.EstimatedTime = &at
	}
	return d.UTC(), nil
}

// IfEmpty inserts entries when the store holds no flights and returns how
// many were created. Entries whose number is already taken are skipped.
func IfEmpty(ctx context.Context, store Store, entries []Entry, now time.Time, log logger.Logger) (int, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count flights: %w", err)
	}
	if n > 0 {
		log.Debug("store not empty, skipping seed", "flights", n)
		return 0, nil
	}

	created := 0
	for _, e := range entries {
		d, err := e.Draft(now)
		if err != nil {
			return created, err
		}
		if _, err := store.Create(ctx, d); err != nil {
			if errors.Is(err, types.ErrConflict) {
				log.Warn("duplicate seed flight skipped", "flight_number", d.FlightNumber)
				continue
			}
			return created, fmt.Errorf("failed to seed %s: %w", d.FlightNumber, err)
		}
		created++
	}
	log.Info("seeded flights", "count", created)
	return created, nil
}
