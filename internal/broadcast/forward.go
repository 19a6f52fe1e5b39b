package broadcast

import (
	"context"

	"github.com/saviobatista/flightboard/internal/logger"
)

// Sink receives every message published on the hub
type Sink interface {
	Forward(ctx context.Context, msg Message) error
}

// Forward pumps sub into sink until ctx is done or the hub is closed. Sink
// errors are logged and the message is skipped. When the hub evicts the
// relay for falling behind, Forward subscribes again and counts the gap
// under relay; events published in between are not relayed.
func Forward(ctx context.Context, sub *Subscription, relay string, sink Sink, log logger.Logger) {
	hub := sub.hub
	defer func() { sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				if ctx.Err() != nil || hub.Closed() {
					return
				}
				hub.metrics.RelayResubscribes.WithLabelValues(relay).Inc()
				log.Warn("relay evicted, resubscribing", "relay", relay, "subscriber", sub.ID())
				sub = hub.Subscribe()
				continue
			}
			if err := sink.Forward(ctx, msg); err != nil {
				log.Error("failed to relay event", "relay", relay, "event", msg.Name, "error", err)
			}
		}
	}
}
