package broadcast

import (
	"sync"

	"github.com/google/uuid"

	"github.com/saviobatista/flightboard/internal/logger"
	"github.com/saviobatista/flightboard/internal/stats"
)

// DefaultBufferSize is the per-observer queue length used when none is given
const DefaultBufferSize = 64

// Subscription is one observer's view of the hub. C is closed when the
// observer is unsubscribed, evicted or the hub shuts down.
type Subscription struct {
	id  string
	ch  chan Message
	hub *Hub
}

// ID returns the subscription identifier
func (s *Subscription) ID() string {
	return s.id
}

// C returns the delivery channel
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Close unsubscribes from the hub. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}

// Hub is the process-wide registry of observers
type Hub struct {
	mu         sync.Mutex
	subs       map[string]*Subscription
	bufferSize int
	closed     bool

	log     logger.Logger
	metrics *stats.Metrics
}

// NewHub creates a hub whose observers each buffer up to bufferSize messages
func NewHub(bufferSize int, log logger.Logger, metrics *stats.Metrics) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subs:       make(map[string]*Subscription),
		bufferSize: bufferSize,
		log:        log.With("component", "hub"),
		metrics:    metrics,
	}
}

// Subscribe registers a new observer. After Close it returns an already
// closed subscription.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id:  uuid.NewString(),
		ch:  make(chan Message, h.bufferSize),
		hub: h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub.id] = sub
	h.metrics.Observers.Set(float64(len(h.subs)))
	h.log.Debug("observer subscribed", "subscriber", sub.id)
	return sub
}

// Unsubscribe removes the observer and closes its channel
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	h.remove(sub)
	h.log.Debug("observer unsubscribed", "subscriber", sub.id)
}

// remove must be called with h.mu held
func (h *Hub) remove(sub *Subscription) {
	delete(h.subs, sub.id)
	close(sub.ch)
	h.metrics.Observers.Set(float64(len(h.subs)))
}

// Publish delivers the message to every observer without blocking and
// returns how many received it. Observers whose buffer is full are evicted.
func (h *Hub) Publish(name string, data []byte) int {
	msg := Message{Name: name, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0
	}

	delivered := 0
	for _, sub := range h.subs {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			h.remove(sub)
			h.metrics.BroadcastDrops.WithLabelValues(stats.DropSlowObserver).Inc()
			h.log.Warn("evicting slow observer", "subscriber", sub.id, "event", name)
		}
	}
	h.metrics.Broadcasts.WithLabelValues(name).Inc()
	return delivered
}

// Count returns the number of current observers
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Closed reports whether Close has been called
func (h *Hub) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close closes every subscription. Later publishes are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, sub := range h.subs {
		h.remove(sub)
	}
}
