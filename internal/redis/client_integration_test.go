package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saviobatista/flightboard/internal/broadcast"
)

func TestClient_Integration_PublishAndSnapshot(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := rediscontainer.Run(ctx, "redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections"),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}()

	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client, err := New(addr, "")
	if err != nil {
		t.Fatalf("Failed to create Redis client: %v", err)
	}
	defer client.Close()

	listener := goredis.NewClient(&goredis.Options{Addr: addr})
	defer listener.Close()
	pubsub := listener.Subscribe(ctx, DefaultChannel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	msg := broadcast.Message{Name: broadcast.EventFlightUpdated, Data: json.RawMessage(`{"id":3,"gate":"C3"}`)}
	if err := client.Forward(ctx, msg); err != nil {
		t.Fatalf("Forward() failed: %v", err)
	}

	select {
	case got := <-pubsub.Channel():
		var frame broadcast.Message
		if err := json.Unmarshal([]byte(got.Payload), &frame); err != nil {
			t.Fatalf("Invalid envelope %s: %v", got.Payload, err)
		}
		if frame.Name != broadcast.EventFlightUpdated {
			t.Errorf("Expected event %s, got %s", broadcast.EventFlightUpdated, frame.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for published event")
	}

	snap, err := client.Snapshot(ctx, 3)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if string(snap) != `{"id":3,"gate":"C3"}` {
		t.Errorf("Unexpected snapshot %s", snap)
	}
}
