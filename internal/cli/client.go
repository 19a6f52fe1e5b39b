package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saviobatista/flightboard/internal/broadcast"
	"github.com/saviobatista/flightboard/internal/types"
)

// FlightInput is the body sent on create and update
type FlightInput struct {
	FlightNumber  string     `json:"flightNumber"`
	Airline       string     `json:"airline,omitempty"`
	Origin        string     `json:"origin,omitempty"`
	Destination   string     `json:"destination"`
	ScheduledTime time.Time  `json:"scheduledTime"`
	EstimatedTime *time.Time `json:"estimatedTime,omitempty"`
	Gate          string     `json:"gate"`
	IsArrival     bool       `json:"isArrival"`
	Remarks       *string    `json:"remarks,omitempty"`
}

// inputFromView returns the input that would recreate v
func inputFromView(v types.FlightView) FlightInput {
	return FlightInput{
		FlightNumber:  v.FlightNumber,
		Airline:       v.Airline,
		Origin:        v.Origin,
		Destination:   v.Destination,
		ScheduledTime: v.ScheduledTime,
		EstimatedTime: v.EstimatedTime,
		Gate:          v.Gate,
		IsArrival:     v.IsArrival,
		Remarks:       v.Remarks,
	}
}

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a FlightBoard server
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// List returns the flights matching destination and status, both optional
func (c *Client) List(ctx context.Context, destination, status string) ([]types.FlightView, error) {
	q := url.Values{}
	if destination != "" {
		q.Set("destination", destination)
	}
	if status != "" {
		q.Set("status", status)
	}
	path := "/api/flights"
	if len(q) > 0 {
		path = "/api/flights/search?" + q.Encode()
	}

	var views []types.FlightView
	if err := c.do(ctx, http.MethodGet, path, nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// Get returns one flight
func (c *Client) Get(ctx context.Context, id int64) (types.FlightView, error) {
	var v types.FlightView
	err := c.do(ctx, http.MethodGet, flightPath(id), nil, &v)
	return v, err
}

// Create creates a flight
func (c *Client) Create(ctx context.Context, in FlightInput) (types.FlightView, error) {
	var v types.FlightView
	err := c.do(ctx, http.MethodPost, "/api/flights", in, &v)
	return v, err
}

// Update replaces the fields of a flight
func (c *Client) Update(ctx context.Context, id int64, in FlightInput) (types.FlightView, error) {
	var v types.FlightView
	err := c.do(ctx, http.MethodPut, flightPath(id), in, &v)
	return v, err
}

// Delete removes a flight
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, flightPath(id), nil, nil)
}

// Watch streams observer events to handle until ctx is done, the server
// closes the connection or handle returns false
func (c *Client) Watch(ctx context.Context, handle func(broadcast.Message) bool) error {
	wsURL, err := observerURL(c.baseURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg broadcast.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to read event: %w", err)
		}
		if !handle(msg) {
			return nil
		}
	}
}

func flightPath(id int64) string {
	return "/api/flights/" + strconv.FormatInt(id, 10)
}

func observerURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/hubs/flights"
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &e) != nil || e.Message == "" {
			e.Message = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
