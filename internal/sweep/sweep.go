// Package sweep announces time-driven status transitions on a schedule.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/saviobatista/flightboard/internal/logger"
	"github.com/saviobatista/flightboard/internal/status"
	"github.com/saviobatista/flightboard/internal/types"
)

// DefaultSchedule runs the sweep once a minute
const DefaultSchedule = "@every 1m"

const runTimeout = 30 * time.Second

// Source lists flights and announces status changes
type Source interface {
	Snapshot(ctx context.Context) ([]types.Flight, error)
	AnnounceStatus(f types.Flight, now time.Time) bool
	Now() time.Time
}

// Sweeper compares each flight's status with the previous run and announces
// transitions. The first observation of a flight is never announced.
type Sweeper struct {
	src  Source
	cron *cron.Cron
	log  logger.Logger

	mu   sync.Mutex
	last map[int64]status.Status
}

// New creates a sweeper running on schedule (standard cron spec or descriptor)
func New(src Source, schedule string, log logger.Logger) (*Sweeper, error) {
	log = log.With("component", "sweep")
	s := &Sweeper{
		src:  src,
		log:  log,
		last: make(map[int64]status.Status),
	}

	cl := cronLogger{log: log}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("failed to add cron job: %w", err)
	}
	return s, nil
}

// Start runs the schedule in the background
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and returns a context done when a running sweep finishes
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	n, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("status sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("status sweep announced transitions", "count", n)
	}
}

// RunOnce performs one sweep and returns how many transitions were announced
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flights, err := s.src.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list flights: %w", err)
	}

	now := s.src.Now()
	seen := make(map[int64]status.Status, len(flights))
	announced := 0
	for _, f := range flights {
		st := status.Calculate(f.ScheduledTime, now)
		if prev, ok := s.last[f.ID]; ok && prev != st {
			if s.src.AnnounceStatus(f, now) {
				announced++
			}
			s.log.Debug("status transition", "flight_id", f.ID, "from", prev, "to", st)
		}
		seen[f.ID] = st
	}
	s.last = seen
	return announced, nil
}

// cronLogger adapts Logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
