package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saviobatista/flightboard/internal/broadcast"
	"github.com/saviobatista/flightboard/internal/logger"
	"github.com/saviobatista/flightboard/internal/service"
	"github.com/saviobatista/flightboard/internal/stats"
	"github.com/saviobatista/flightboard/internal/testutils"
	"github.com/saviobatista/flightboard/internal/types"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv   *httptest.Server
	hub   *broadcast.Hub
	store *testutils.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()
	m := stats.Nop()
	store := testutils.NewMemoryStore()
	hub := broadcast.NewHub(16, log, m)
	svc := service.New(store, broadcast.New(hub, log, m), log, m,
		service.WithClock(func() time.Time { return fixedNow }))

	srv := httptest.NewServer(NewServer(svc, hub, log, m))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &testEnv{srv: srv, hub: hub, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) observe(t *testing.T) *websocket.Conn {
	t.Helper()
	before := e.hub.Count()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/hubs/flights"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return e.hub.Count() == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame.Event, frame.Data
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func flightBody(number, destination, gate string, scheduled time.Time) map[string]any {
	return map[string]any{
		"flightNumber":  number,
		"destination":   destination,
		"gate":          gate,
		"scheduledTime": scheduled.Format(time.RFC3339),
	}
}

func TestCreateFlight_BoardingAndBroadcast(t *testing.T) {
	env := newTestEnv(t)
	conn := env.observe(t)

	resp := env.do(t, http.MethodPost, "/api/flights", flightBody("FB1002", "AMS", "B2", fixedNow.Add(20*time.Minute)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	view := decodeBody[types.FlightView](t, resp)
	assert.Equal(t, "Boarding", view.Status)
	assert.Equal(t, DefaultAirline, view.Airline)
	assert.Equal(t, DefaultOrigin, view.Origin)
	assert.Nil(t, view.EstimatedTime)
	assert.Equal(t, fmt.Sprintf("/api/flights/%d", view.ID), resp.Header.Get("Location"))

	event, data := readFrame(t, conn)
	assert.Equal(t, broadcast.EventFlightCreated, event)
	var pushed types.FlightView
	require.NoError(t, json.Unmarshal(data, &pushed))
	assert.Equal(t, view, pushed)
}

func TestCreateFlight_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{name: "malformed json", body: `{"flightNumber":`, message: "malformed request body"},
		{name: "missing fields", body: map[string]any{}, message: "flightNumber is required; destination is required; gate is required; scheduledTime is required"},
		{name: "blank strings", body: flightBody("  ", "LHR", "A1", fixedNow.Add(time.Hour)), message: "flightNumber is required"},
		{name: "past schedule", body: flightBody("FB1", "LHR", "A1", fixedNow.Add(-time.Minute)), message: "scheduledTime must be in the future"},
		{name: "unparseable time", body: map[string]any{"flightNumber": "FB1", "destination": "LHR", "gate": "A1", "scheduledTime": "tomorrow"}, message: "malformed request body"},
		{name: "schedule equal to now", body: flightBody("FB1", "LHR", "A1", fixedNow), message: "scheduledTime must be in the future"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/flights", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeBody[errorResponse](t, resp)
			assert.Contains(t, body.Message, tt.message)
		})
	}

	n, err := env.store.Count(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateFlight_NormalizesToUTC(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{
		"flightNumber":  "FB1",
		"destination":   "LHR",
		"gate":          "A1",
		"airline":       "El Al",
		"origin":        "ETM",
		"isArrival":     true,
		"remarks":       "delayed",
		"scheduledTime": "2025-06-01T17:00:00+03:00",
		"estimatedTime": "2025-06-01T17:30:00+03:00",
	}

	resp := env.do(t, http.MethodPost, "/api/flights", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decodeBody[types.FlightView](t, resp)

	assert.Equal(t, time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC), view.ScheduledTime)
	require.NotNil(t, view.EstimatedTime)
	assert.Equal(t, time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC), *view.EstimatedTime)
	assert.Equal(t, "El Al", view.Airline)
	assert.Equal(t, "ETM", view.Origin)
	assert.True(t, view.IsArrival)
	require.NotNil(t, view.Remarks)
	assert.Equal(t, "delayed", *view.Remarks)
}

func TestCreateFlight_ZonelessTimesAreUTC(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{
		"flightNumber":  "FB2000",
		"destination":   "AMS",
		"gate":          "B2",
		"scheduledTime": "2025-06-01T13:30",
		"estimatedTime": "2025-06-01T13:45:30",
	}

	resp := env.do(t, http.MethodPost, "/api/flights", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decodeBody[types.FlightView](t, resp)

	assert.Equal(t, time.Date(2025, 6, 1, 13, 30, 0, 0, time.UTC), view.ScheduledTime)
	require.NotNil(t, view.EstimatedTime)
	assert.Equal(t, time.Date(2025, 6, 1, 13, 45, 30, 0, time.UTC), *view.EstimatedTime)
	assert.Equal(t, "Scheduled", view.Status)

	update := map[string]any{
		"flightNumber":  "FB2000",
		"destination":   "AMS",
		"gate":          "B3",
		"scheduledTime": "2025-06-01T12:20",
	}
	resp = env.do(t, http.MethodPut, fmt.Sprintf("/api/flights/%d", view.ID), update)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[types.FlightView](t, resp)
	assert.Equal(t, "Boarding", updated.Status)
	assert.Nil(t, updated.EstimatedTime)
}

func TestCreateFlight_Conflict(t *testing.T) {
	env := newTestEnv(t)
	conn := env.observe(t)

	first := env.do(t, http.MethodPost, "/api/flights", flightBody("FB1001", "LHR", "A1", fixedNow.Add(2*time.Hour)))
	require.Equal(t, http.StatusCreated, first.StatusCode)
	event, _ := readFrame(t, conn)
	require.Equal(t, broadcast.EventFlightCreated, event)

	dup := env.do(t, http.MethodPost, "/api/flights", flightBody("FB1001", "JFK", "C3", fixedNow.Add(3*time.Hour)))
	assert.Equal(t, http.StatusConflict, dup.StatusCode)
	assert.Equal(t, "FlightNumber already exists", decodeBody[errorResponse](t, dup).Message)

	// the next frame must be the delete, not anything from the rejected create
	created := decodeBody[types.FlightView](t, first)
	del := env.do(t, http.MethodDelete, fmt.Sprintf("/api/flights/%d", created.ID), nil)
	require.Equal(t, http.StatusNoContent, del.StatusCode)
	event, data := readFrame(t, conn)
	assert.Equal(t, broadcast.EventFlightDeleted, event)
	assert.Equal(t, fmt.Sprint(created.ID), string(data))
}

func TestUpdateFlight(t *testing.T) {
	env := newTestEnv(t)
	a := decodeBody[types.FlightView](t, env.do(t, http.MethodPost, "/api/flights", flightBody("FB1", "LHR", "A1", fixedNow.Add(2*time.Hour))))
	b := decodeBody[types.FlightView](t, env.do(t, http.MethodPost, "/api/flights", flightBody("FB2", "AMS", "B2", fixedNow.Add(3*time.Hour))))
	conn := env.observe(t)

	tests := []struct {
		name string
		path string
		body any
		code int
	}{
		{name: "rename to taken number", path: fmt.Sprintf("/api/flights/%d", a.ID), body: flightBody("FB2", "LHR", "A1", fixedNow.Add(2*time.Hour)), code: http.StatusConflict},
		{name: "missing flight", path: "/api/flights/999", body: flightBody("FB9", "LHR", "A1", fixedNow.Add(2*time.Hour)), code: http.StatusNotFound},
		{name: "invalid id", path: "/api/flights/abc", body: flightBody("FB9", "LHR", "A1", fixedNow.Add(2*time.Hour)), code: http.StatusBadRequest},
		{name: "invalid body", path: fmt.Sprintf("/api/flights/%d", a.ID), body: flightBody("FB1", "", "A1", fixedNow.Add(2*time.Hour)), code: http.StatusBadRequest},
		{name: "keep own number", path: fmt.Sprintf("/api/flights/%d", a.ID), body: flightBody("FB1", "LHR", "C1", fixedNow.Add(10*time.Minute)), code: http.StatusOK},
		{name: "second update", path: fmt.Sprintf("/api/flights/%d", a.ID), body: flightBody("FB1", "LHR", "C2", fixedNow.Add(10*time.Minute)), code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}

	for _, gate := range []string{"C1", "C2"} {
		event, data := readFrame(t, conn)
		assert.Equal(t, broadcast.EventFlightUpdated, event)
		var v types.FlightView
		require.NoError(t, json.Unmarshal(data, &v))
		assert.Equal(t, gate, v.Gate)
		assert.Equal(t, "Boarding", v.Status)
	}

	got := decodeBody[types.FlightView](t, env.do(t, http.MethodGet, fmt.Sprintf("/api/flights/%d", b.ID), nil))
	assert.Equal(t, "FB2", got.FlightNumber)
}

func TestGetAndDeleteFlight(t *testing.T) {
	env := newTestEnv(t)
	created := decodeBody[types.FlightView](t, env.do(t, http.MethodPost, "/api/flights", flightBody("FB1", "LHR", "A1", fixedNow.Add(2*time.Hour))))

	resp := env.do(t, http.MethodGet, fmt.Sprintf("/api/flights/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created, decodeBody[types.FlightView](t, resp))

	conn := env.observe(t)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, fmt.Sprintf("/api/flights/%d", created.ID), nil).StatusCode)
	event, _ := readFrame(t, conn)
	assert.Equal(t, broadcast.EventFlightDeleted, event)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, fmt.Sprintf("/api/flights/%d", created.ID), nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, fmt.Sprintf("/api/flights/%d", created.ID), nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodDelete, "/api/flights/0", nil).StatusCode)

	// nothing is pushed for the failed delete
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestListFlights(t *testing.T) {
	env := newTestEnv(t)
	for _, b := range []map[string]any{
		flightBody("FB1001", "London", "A1", fixedNow.Add(2*time.Hour)),
		flightBody("FB1002", "Amsterdam", "B2", fixedNow.Add(20*time.Minute)),
		flightBody("FB1003", "New York", "C3", fixedNow.Add(5*time.Minute)),
	} {
		require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/flights", b).StatusCode)
	}

	tests := []struct {
		name string
		path string
		code int
		want []string
	}{
		{name: "all", path: "/api/flights", code: http.StatusOK, want: []string{"FB1003", "FB1002", "FB1001"}},
		{name: "destination", path: "/api/flights?destination=lon", code: http.StatusOK, want: []string{"FB1001"}},
		{name: "status", path: "/api/flights?status=boarding", code: http.StatusOK, want: []string{"FB1003", "FB1002"}},
		{name: "search alias", path: "/api/flights/search?destination=am&status=Boarding", code: http.StatusOK, want: []string{"FB1002"}},
		{name: "empty result", path: "/api/flights?destination=Tokyo", code: http.StatusOK, want: []string{}},
		{name: "unknown status", path: "/api/flights?status=Cancelled", code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.code, resp.StatusCode)
			if tt.code != http.StatusOK {
				return
			}
			views := decodeBody[[]types.FlightView](t, resp)
			got := make([]string, 0, len(views))
			for _, v := range views {
				got = append(got, v.FlightNumber)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStoreFailureIsInternalError(t *testing.T) {
	env := newTestEnv(t)
	env.store.Err = errors.New("database is locked")

	resp := env.do(t, http.MethodGet, "/api/flights", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", decodeBody[errorResponse](t, resp).Message)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))

	env.do(t, http.MethodGet, "/api/flights", nil)
	resp = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "flightboard_request_duration_seconds")
	assert.Contains(t, string(body), `route="GET /api/flights"`)
}

func TestObserverDisconnectUnsubscribes(t *testing.T) {
	env := newTestEnv(t)
	conn := env.observe(t)
	other := env.observe(t)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	resp := env.do(t, http.MethodPost, "/api/flights", flightBody("FB1", "LHR", "A1", fixedNow.Add(time.Hour)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	event, _ := readFrame(t, other)
	assert.Equal(t, broadcast.EventFlightCreated, event)
}

func TestObserverClosedWhenHubCloses(t *testing.T) {
	env := newTestEnv(t)
	conn := env.observe(t)

	env.hub.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
