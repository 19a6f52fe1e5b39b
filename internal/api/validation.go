package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/saviobatista/flightboard/internal/types"
)

// Defaults applied when a request omits them
const (
	DefaultAirline = "Generic"
	DefaultOrigin  = "TLV"
)

// ValidationError lists every problem found in a request
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// flightRequest is the body of POST and PUT /api/flights
type flightRequest struct {
	FlightNumber  string     `json:"flightNumber"`
	Airline       string     `json:"airline"`
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	ScheduledTime *requestTime `json:"scheduledTime"`
	EstimatedTime *requestTime `json:"estimatedTime"`
	Gate          string       `json:"gate"`
	IsArrival     bool         `json:"isArrival"`
	Remarks       *string      `json:"remarks"`
}

// zonelessLayouts are the forms an HTML datetime-local input produces.
// They are read as UTC.
var zonelessLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

// requestTime is an instant in a request body: RFC 3339, or a zone-less
// date and time taken as UTC
type requestTime struct {
	time.Time
}

func (t *requestTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	if at, err := time.Parse(time.RFC3339, s); err == nil {
		t.Time = at
		return nil
	}
	for _, layout := range zonelessLayouts {
		if at, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = at
			return nil
		}
	}
	return fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DDTHH:MM[:SS] in UTC", s)
}

// draft validates the request against now and returns the normalized draft
func (r flightRequest) draft(now time.Time) (types.Draft, error) {
	var problems []string

	number := strings.TrimSpace(r.FlightNumber)
	if number == "" {
		problems = append(problems, "flightNumber is required")
	}
	destination := strings.TrimSpace(r.Destination)
	if destination == "" {
		problems = append(problems, "destination is required")
	}
	gate := strings.TrimSpace(r.Gate)
	if gate == "" {
		problems = append(problems, "gate is required")
	}
	switch {
	case r.ScheduledTime == nil || r.ScheduledTime.IsZero():
		problems = append(problems, "scheduledTime is required")
	case !r.ScheduledTime.After(now):
		problems = append(problems, "scheduledTime must be in the future")
	}
	if len(problems) > 0 {
		return types.Draft{}, &ValidationError{Problems: problems}
	}

	d := types.Draft{
		FlightNumber:  number,
		Airline:       orDefault(r.Airline, DefaultAirline),
		Origin:        orDefault(r.Origin, DefaultOrigin),
		Destination:   destination,
		ScheduledTime: r.ScheduledTime.Time,
		EstimatedTime: r.EstimatedTime.ptr(),
		Gate:          gate,
		IsArrival:     r.IsArrival,
		Remarks:       r.Remarks,
	}
	return d.UTC(), nil
}

func (t *requestTime) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	at := t.Time
	return &at
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
