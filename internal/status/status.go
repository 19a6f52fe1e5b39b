// Package status derives a flight's lifecycle state from its scheduled time.
package status

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a flight. It is derived on every read
// and never persisted.
type Status string

const (
	Scheduled Status = "Scheduled"
	Boarding  Status = "Boarding"
	Departed  Status = "Departed"
	Landed    Status = "Landed"
)

const (
	// BoardingWindow is how long before the scheduled time boarding opens.
	BoardingWindow = 30 * time.Minute
	// DepartedWindow is how long after the scheduled time a flight stays
	// Departed. The upper bound is inclusive.
	DepartedWindow = 60 * time.Minute
)

// ErrUnknownStatus is returned by ParseStatus for an unrecognised name.
var ErrUnknownStatus = errors.New("unknown flight status")

// All lists every status in lifecycle order.
var All = []Status{Scheduled, Boarding, Departed, Landed}

// Calculate maps a scheduled instant and the current instant to a status.
//
//	now <  scheduled-30m              Scheduled
//	scheduled-30m <= now < scheduled  Boarding
//	scheduled <= now <= scheduled+60m Departed
//	now >  scheduled+60m              Landed
func Calculate(scheduled, now time.Time) Status {
	scheduled = scheduled.UTC()
	now = now.UTC()

	switch {
	case now.Before(scheduled.Add(-BoardingWindow)):
		return Scheduled
	case now.Before(scheduled):
		return Boarding
	case !now.After(scheduled.Add(DepartedWindow)):
		return Departed
	default:
		return Landed
	}
}

// ParseStatus parses a status name, ignoring case.
func ParseStatus(s string) (Status, error) {
	for _, st := range All {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownStatus, s)
}

// String returns the status name.
func (s Status) String() string {
	return string(s)
}
