package broadcast

import (
	"encoding/json"
	"math"
	"sync"

	"github.com/saviobatista/flightboard/internal/logger"
	"github.com/saviobatista/flightboard/internal/stats"
)

// tombstone marks a deleted flight id; nothing for it is delivered again
const tombstone = math.MaxInt64

// Publisher fans a named payload out to observers
type Publisher interface {
	Publish(name string, data []byte) int
}

// Broadcaster turns committed changes into observer messages. Events for one
// flight are delivered in store-commit order: an event built from a revision
// older than one already delivered is dropped, as is anything for a deleted id.
type Broadcaster struct {
	mu   sync.Mutex
	pub  Publisher
	last map[int64]int64

	log     logger.Logger
	metrics *stats.Metrics
}

// New creates a broadcaster publishing through pub
func New(pub Publisher, log logger.Logger, metrics *stats.Metrics) *Broadcaster {
	return &Broadcaster{
		pub:     pub,
		last:    make(map[int64]int64),
		log:     log.With("component", "broadcaster"),
		metrics: metrics,
	}
}

// Broadcast publishes the event and reports whether it was delivered to the
// hub. It never blocks on observers.
func (b *Broadcaster) Broadcast(ev Event) bool {
	var payload any = ev.Payload
	if ev.Kind == Deleted {
		payload = ev.FlightID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Error("failed to encode event", "event", ev.Kind.EventName(), "flight_id", ev.FlightID, "error", err)
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.admit(ev) {
		b.metrics.BroadcastDrops.WithLabelValues(stats.DropStale).Inc()
		b.log.Debug("dropping stale event",
			"event", ev.Kind.EventName(), "flight_id", ev.FlightID, "revision", ev.Revision)
		return false
	}

	n := b.pub.Publish(ev.Kind.EventName(), data)
	b.log.Debug("event broadcast",
		"event", ev.Kind.EventName(), "flight_id", ev.FlightID, "revision", ev.Revision, "observers", n)
	return true
}

// admit applies revision ordering and records the event. Must hold b.mu.
func (b *Broadcaster) admit(ev Event) bool {
	last, seen := b.last[ev.FlightID]

	switch ev.Kind {
	case Deleted:
		if seen && last == tombstone {
			return false
		}
		b.last[ev.FlightID] = tombstone
		return true
	case StatusChanged:
		// Only restates the revision observers already hold. A newer
		// revision has its own update event still in flight.
		if seen {
			return ev.Revision == last
		}
	default:
		if seen && ev.Revision <= last {
			return false
		}
	}
	b.last[ev.FlightID] = ev.Revision
	return true
}
