package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saviobatista/flightboard/internal/broadcast"
)

// DefaultChannel is the pub/sub channel events are published to
const DefaultChannel = "flightboard:events"

// snapshotTTL bounds how long a flight's last known state is kept
const snapshotTTL = 24 * time.Hour

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client relays flight events to a Redis channel and keeps the last known
// state of each flight under flightboard:flight:<id>
type Client struct {
	client  RedisClientInterface
	channel string
}

// New creates a new Redis client
func New(addr, channel string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, channel), nil
}

// NewWithClient creates a new Redis client with a custom RedisClientInterface (useful for testing)
func NewWithClient(client RedisClientInterface, channel string) *Client {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Client{client: client, channel: channel}
}

// Channel returns the channel events are published to
func (c *Client) Channel() string {
	return c.channel
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func snapshotKey(id int64) string {
	return "flightboard:flight:" + strconv.FormatInt(id, 10)
}

// Forward publishes the event envelope and updates the flight snapshot
func (c *Client) Forward(ctx context.Context, msg broadcast.Message) error {
	envelope, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := c.client.Publish(ctx, c.channel, envelope).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	switch msg.Name {
	case broadcast.EventFlightDeleted:
		var id int64
		if err := json.Unmarshal(msg.Data, &id); err != nil {
			return fmt.Errorf("failed to decode deleted id: %w", err)
		}
		return c.client.Del(ctx, snapshotKey(id)).Err()
	default:
		var ref struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(msg.Data, &ref); err != nil {
			return fmt.Errorf("failed to decode flight: %w", err)
		}
		return c.client.Set(ctx, snapshotKey(ref.ID), []byte(msg.Data), snapshotTTL).Err()
	}
}

// Snapshot returns the last relayed state of a flight, or nil if none is known
func (c *Client) Snapshot(ctx context.Context, id int64) (json.RawMessage, error) {
	data, err := c.client.Get(ctx, snapshotKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil // Data not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flight snapshot: %w", err)
	}
	return json.RawMessage(data), nil
}
