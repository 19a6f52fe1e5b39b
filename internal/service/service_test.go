package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saviobatista/flightboard/internal/broadcast"
	"github.com/saviobatista/flightboard/internal/logger"
	"github.com/saviobatista/flightboard/internal/stats"
	"github.com/saviobatista/flightboard/internal/status"
	"github.com/saviobatista/flightboard/internal/testutils"
	"github.com/saviobatista/flightboard/internal/types"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (n *recordingNotifier) Broadcast(ev broadcast.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return true
}

func (n *recordingNotifier) all() []broadcast.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]broadcast.Event(nil), n.events...)
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *testutils.MemoryStore, *recordingNotifier, *stats.Metrics) {
	t.Helper()
	store := testutils.NewMemoryStore()
	notifier := &recordingNotifier{}
	m := stats.Nop()
	svc := New(store, notifier, logger.NewNop(), m, WithClock(func() time.Time { return fixedNow }))
	return svc, store, notifier, m
}

func TestService_CreateComputesStatusAndBroadcasts(t *testing.T) {
	svc, _, notifier, m := newTestService(t)

	d := testutils.MockDraft("FB1002", "AMS", fixedNow.Add(20*time.Minute))
	d.Gate = "B2"
	view, err := svc.Create(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, status.Boarding.String(), view.Status)
	assert.Equal(t, "FB1002", view.FlightNumber)
	assert.Equal(t, "B2", view.Gate)
	assert.NotZero(t, view.ID)

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, broadcast.Created, events[0].Kind)
	assert.Equal(t, view.ID, events[0].FlightID)
	assert.Equal(t, int64(1), events[0].Revision)
	assert.Equal(t, view, events[0].Payload)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("create", "ok")))
}

func TestService_CreateNormalizesToUTC(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	local := time.FixedZone("IDT", 3*3600)
	est := fixedNow.Add(3 * time.Hour).In(local)
	d := testutils.MockDraft("FB1", "LHR", fixedNow.Add(2*time.Hour))
	d.ScheduledTime = d.ScheduledTime.In(local)
	d.EstimatedTime = &est

	view, err := svc.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, view.ScheduledTime.Location())
	require.NotNil(t, view.EstimatedTime)
	assert.Equal(t, time.UTC, view.EstimatedTime.Location())
}

func TestService_FailuresDoNotBroadcast(t *testing.T) {
	svc, store, notifier, m := newTestService(t)
	ctx := context.Background()
	at := fixedNow.Add(2 * time.Hour)

	_, err := svc.Create(ctx, testutils.MockDraft("FB1", "LHR", at))
	require.NoError(t, err)

	_, err = svc.Create(ctx, testutils.MockDraft("FB1", "JFK", at))
	assert.ErrorIs(t, err, types.ErrConflict)

	_, err = svc.Update(ctx, 999, testutils.MockDraft("FB9", "JFK", at))
	assert.ErrorIs(t, err, types.ErrNotFound)

	err = svc.Delete(ctx, 999)
	assert.ErrorIs(t, err, types.ErrNotFound)

	store.Err = errors.New("disk on fire")
	_, err = svc.Create(ctx, testutils.MockDraft("FB2", "JFK", at))
	assert.EqualError(t, err, "disk on fire")

	assert.Len(t, notifier.all(), 1, "only the successful create is announced")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("create", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("delete", "error")))
}

func TestService_UpdateAndDelete(t *testing.T) {
	svc, _, notifier, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testutils.MockDraft("FB1", "LHR", fixedNow.Add(2*time.Hour)))
	require.NoError(t, err)

	first, err := svc.Update(ctx, created.ID, testutils.MockDraft("FB1", "LHR", fixedNow.Add(10*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, status.Boarding.String(), first.Status)

	second, err := svc.Update(ctx, created.ID, testutils.MockDraft("FB1", "LHR", fixedNow.Add(-2*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, status.Landed.String(), second.Status)

	require.NoError(t, svc.Delete(ctx, created.ID))

	events := notifier.all()
	require.Len(t, events, 4)
	kinds := []broadcast.EventKind{events[0].Kind, events[1].Kind, events[2].Kind, events[3].Kind}
	assert.Equal(t, []broadcast.EventKind{broadcast.Created, broadcast.Updated, broadcast.Updated, broadcast.Deleted}, kinds)
	assert.Equal(t, int64(2), events[1].Revision)
	assert.Equal(t, int64(3), events[2].Revision)
	assert.Equal(t, created.ID, events[3].FlightID)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestService_List(t *testing.T) {
	svc, _, notifier, _ := newTestService(t)
	ctx := context.Background()

	seed := []types.Draft{
		testutils.MockDraft("FB1001", "London", fixedNow.Add(2*time.Hour)),
		testutils.MockDraft("FB1002", "Amsterdam", fixedNow.Add(20*time.Minute)),
		testutils.MockDraft("FB1003", "New York", fixedNow.Add(-time.Hour)),
		testutils.MockDraft("FB1004", "Amman", fixedNow.Add(-3*time.Hour)),
	}
	for _, d := range seed {
		_, err := svc.Create(ctx, d)
		require.NoError(t, err)
	}
	announced := len(notifier.all())

	tests := []struct {
		name    string
		filter  Filter
		want    []string
		wantErr error
	}{
		{name: "all ordered by schedule", filter: Filter{}, want: []string{"FB1004", "FB1003", "FB1002", "FB1001"}},
		{name: "destination contains", filter: Filter{Destination: " am "}, want: []string{"FB1004", "FB1002"}},
		{name: "status filter", filter: Filter{Status: "boarding"}, want: []string{"FB1002"}},
		{name: "both filters", filter: Filter{Destination: "am", Status: "Landed"}, want: []string{"FB1004"}},
		{name: "no match", filter: Filter{Destination: "Tokyo"}, want: []string{}},
		{name: "unknown status", filter: Filter{Status: "Cancelled"}, wantErr: status.ErrUnknownStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views, err := svc.List(ctx, tt.filter)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			got := make([]string, 0, len(views))
			for _, v := range views {
				got = append(got, v.FlightNumber)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Len(t, notifier.all(), announced, "reads never broadcast")
}

func TestService_ListIdempotent(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, testutils.MockDraft("FB1", "LHR", fixedNow.Add(time.Hour)))
	require.NoError(t, err)

	first, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	second, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestService_StoreErrorOnRead(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.Err = errors.New("connection refused")

	_, err := svc.List(context.Background(), Filter{})
	assert.EqualError(t, err, "connection refused")
	_, err = svc.Get(context.Background(), 1)
	assert.EqualError(t, err, "connection refused")
}

func TestService_ObserversSeeSequentialUpdatesInOrder(t *testing.T) {
	store := testutils.NewMemoryStore()
	hub := broadcast.NewHub(8, logger.NewNop(), stats.Nop())
	svc := New(store, broadcast.New(hub, logger.NewNop(), stats.Nop()), logger.NewNop(), stats.Nop(),
		WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()

	created, err := svc.Create(ctx, testutils.MockDraft("FB1", "LHR", fixedNow.Add(2*time.Hour)))
	require.NoError(t, err)

	subs := []*broadcast.Subscription{hub.Subscribe(), hub.Subscribe()}

	for _, gate := range []string{"C1", "C2"} {
		d := testutils.MockDraft("FB1", "LHR", fixedNow.Add(2*time.Hour))
		d.Gate = gate
		_, err := svc.Update(ctx, created.ID, d)
		require.NoError(t, err)
	}

	for _, sub := range subs {
		for _, want := range []string{"C1", "C2"} {
			msg := <-sub.C()
			assert.Equal(t, broadcast.EventFlightUpdated, msg.Name)
			var v types.FlightView
			require.NoError(t, json.Unmarshal(msg.Data, &v))
			assert.Equal(t, want, v.Gate)
		}
	}
}

func TestService_AnnounceStatus(t *testing.T) {
	svc, _, notifier, _ := newTestService(t)
	f := types.Flight{ID: 3, FlightNumber: "FB3", ScheduledTime: fixedNow.Add(-10 * time.Minute), Revision: 4}

	assert.True(t, svc.AnnounceStatus(f, fixedNow))
	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, broadcast.StatusChanged, events[0].Kind)
	assert.Equal(t, int64(4), events[0].Revision)
	assert.Equal(t, status.Departed.String(), events[0].Payload.(types.FlightView).Status)
}
