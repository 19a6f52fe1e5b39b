package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/saviobatista/flightboard/internal/broadcast"
)

const (
	StreamName    = "FLIGHT_EVENTS"
	SubjectPrefix = "flights."
	SubjectAll    = SubjectPrefix + ">"
)

// Subject returns the subject an event is published on
func Subject(eventName string) string {
	return SubjectPrefix + eventName
}

// Client relays flight events to a JetStream stream
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a new NATS client and ensures the event stream exists
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url, nats.Name("flightboard"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	// Create stream if it doesn't exist
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectAll},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) &&
		!strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{
		conn: nc,
		js:   js,
	}, nil
}

// Forward publishes the event payload on flights.<event>
func (c *Client) Forward(ctx context.Context, msg broadcast.Message) error {
	if c.js == nil {
		return errors.New("NATS client is closed")
	}
	if !json.Valid(msg.Data) {
		return fmt.Errorf("invalid payload for %s", msg.Name)
	}

	if _, err := c.js.Publish(Subject(msg.Name), msg.Data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// SubscribeEvents delivers every relayed event to handler
func (c *Client) SubscribeEvents(handler func(broadcast.Message)) (*nats.Subscription, error) {
	sub, err := c.js.Subscribe(SubjectAll, func(m *nats.Msg) {
		handler(broadcast.Message{
			Name: strings.TrimPrefix(m.Subject, SubjectPrefix),
			Data: json.RawMessage(m.Data),
		})
	}, nats.DeliverNew())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return sub, nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
