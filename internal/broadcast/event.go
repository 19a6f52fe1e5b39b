package broadcast

import "encoding/json"

// EventKind identifies the kind of change being announced
type EventKind int

const (
	Created EventKind = iota
	Updated
	Deleted
	StatusChanged
)

// Event names as seen by observers
const (
	EventFlightCreated       = "flightCreated"
	EventFlightUpdated       = "flightUpdated"
	EventFlightDeleted       = "flightDeleted"
	EventFlightStatusChanged = "flightStatusChanged"
)

// EventName returns the wire name of the kind
func (k EventKind) EventName() string {
	switch k {
	case Created:
		return EventFlightCreated
	case Updated:
		return EventFlightUpdated
	case Deleted:
		return EventFlightDeleted
	case StatusChanged:
		return EventFlightStatusChanged
	default:
		return "unknown"
	}
}

func (k EventKind) String() string {
	return k.EventName()
}

// Event is a committed change handed to the broadcaster
type Event struct {
	Kind     EventKind
	FlightID int64
	// Revision is the store revision the payload was built from. Ignored for Deleted.
	Revision int64
	// Payload is the enriched view. Ignored for Deleted, whose payload is the id.
	Payload any
}

// Message is a single delivery to an observer. It marshals to the frame
// {"event": name, "data": payload}.
type Message struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}
