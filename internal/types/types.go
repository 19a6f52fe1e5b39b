package types

import (
	"time"

	"github.com/saviobatista/flightboard/internal/status"
)

// Flight is the canonical stored flight record
type Flight struct {
	ID            int64      `json:"id"`
	FlightNumber  string     `json:"flightNumber"`
	Airline       string     `json:"airline"`
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	ScheduledTime time.Time  `json:"scheduledTime"`
	EstimatedTime *time.Time `json:"estimatedTime"`
	Gate          string     `json:"gate"`
	IsArrival     bool       `json:"isArrival"`
	LastUpdatedAt time.Time  `json:"lastUpdatedAt"`
	Remarks       *string    `json:"remarks"`

	// Revision counts committed writes to the record: 1 after create,
	// incremented by every update in the same statement as the write.
	Revision int64 `json:"-"`
}

// Draft holds the validated input fields of a create or update, before the
// store assigns an ID and LastUpdatedAt. All times are UTC.
type Draft struct {
	FlightNumber  string
	Airline       string
	Origin        string
	Destination   string
	ScheduledTime time.Time
	EstimatedTime *time.Time
	Gate          string
	IsArrival     bool
	Remarks       *string
}

// FlightView is a flight plus its status at the time the view was built.
// It is the shape returned to callers and broadcast to observers.
type FlightView struct {
	ID            int64      `json:"id"`
	FlightNumber  string     `json:"flightNumber"`
	Airline       string     `json:"airline"`
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	ScheduledTime time.Time  `json:"scheduledTime"`
	EstimatedTime *time.Time `json:"estimatedTime"`
	Gate          string     `json:"gate"`
	IsArrival     bool       `json:"isArrival"`
	LastUpdatedAt time.Time  `json:"lastUpdatedAt"`
	Remarks       *string    `json:"remarks"`
	Status        string     `json:"status"`
}

// Draft returns the input fields of the flight
func (f Flight) Draft() Draft {
	return Draft{
		FlightNumber:  f.FlightNumber,
		Airline:       f.Airline,
		Origin:        f.Origin,
		Destination:   f.Destination,
		ScheduledTime: f.ScheduledTime,
		EstimatedTime: f.EstimatedTime,
		Gate:          f.Gate,
		IsArrival:     f.IsArrival,
		Remarks:       f.Remarks,
	}
}

// View builds the enriched view of the flight as of now
func (f Flight) View(now time.Time) FlightView {
	return FlightView{
		ID:            f.ID,
		FlightNumber:  f.FlightNumber,
		Airline:       f.Airline,
		Origin:        f.Origin,
		Destination:   f.Destination,
		ScheduledTime: f.ScheduledTime,
		EstimatedTime: f.EstimatedTime,
		Gate:          f.Gate,
		IsArrival:     f.IsArrival,
		LastUpdatedAt: f.LastUpdatedAt,
		Remarks:       f.Remarks,
		Status:        status.Calculate(f.ScheduledTime, now).String(),
	}
}

// UTC returns a copy of the draft with every instant converted to UTC
func (d Draft) UTC() Draft {
	d.ScheduledTime = d.ScheduledTime.UTC()
	if d.EstimatedTime != nil {
		est := d.EstimatedTime.UTC()
		d.EstimatedTime = &est
	}
	return d
}

// Truncate returns a copy of the draft with every instant rounded down to
// res, the resolution of the store holding it
func (d Draft) Truncate(res time.Duration) Draft {
	d.ScheduledTime = d.ScheduledTime.Truncate(res)
	if d.EstimatedTime != nil {
		est := d.EstimatedTime.Truncate(res)
		d.EstimatedTime = &est
	}
	return d
}
