package types

import "errors"

var (
	// ErrNotFound is returned when an id does not reference an existing flight.
	ErrNotFound = errors.New("flight not found")
	// ErrConflict is returned when a flight number is already used by another flight.
	ErrConflict = errors.New("flight number already exists")
)
