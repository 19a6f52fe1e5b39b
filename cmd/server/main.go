package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/saviobatista/flightboard/internal/api"
	"github.com/saviobatista/flightboard/internal/broadcast"
	"github.com/saviobatista/flightboard/internal/config"
	"github.com/saviobatista/flightboard/internal/db"
	"github.com/saviobatista/flightboard/internal/db/migrations"
	"github.com/saviobatista/flightboard/internal/journal"
	"github.com/saviobatista/flightboard/internal/logger"
	"github.com/saviobatista/flightboard/internal/mongo"
	"github.com/saviobatista/flightboard/internal/nats"
	"github.com/saviobatista/flightboard/internal/redis"
	"github.com/saviobatista/flightboard/internal/seed"
	"github.com/saviobatista/flightboard/internal/service"
	"github.com/saviobatista/flightboard/internal/stats"
	"github.com/saviobatista/flightboard/internal/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting FlightBoard", "store", cfg.StoreDriver, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to start", "error", err)
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Info("Starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}
	a.close(shutdownCtx)

	log.Info("FlightBoard stopped")
}

// app holds every long-lived component of the server
type app struct {
	handler http.Handler
	hub     *broadcast.Hub
	svc     *service.Service
	sweeper *sweep.Sweeper

	log     logger.Logger
	cancel  context.CancelFunc
	relays  sync.WaitGroup
	closers []func(ctx context.Context) error
}

// newApp opens the store and relays and wires the service, sweep and API
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	ctx, cancel := context.WithCancel(ctx)
	a := &app{log: log, cancel: cancel}
	metrics := stats.New()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		cancel()
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	a.hub = broadcast.NewHub(cfg.ObserverBuffer, log, metrics)
	a.svc = service.New(store, broadcast.New(a.hub, log, metrics), log, metrics)

	if err := a.startRelays(ctx, cfg); err != nil {
		a.close(context.Background())
		return nil, err
	}

	if cfg.SeedOnEmpty {
		entries := seed.Defaults()
		if cfg.SeedFile != "" {
			if entries, err = seed.Load(cfg.SeedFile); err != nil {
				a.close(context.Background())
				return nil, err
			}
		}
		if _, err := seed.IfEmpty(ctx, store, entries, time.Now(), log.With("component", "seed")); err != nil {
			a.close(context.Background())
			return nil, err
		}
	}

	if cfg.SweepSchedule != "" {
		if a.sweeper, err = sweep.New(a.svc, cfg.SweepSchedule, log); err != nil {
			a.close(context.Background())
			return nil, err
		}
		a.sweeper.Start()
		log.Info("Status sweep started", "schedule", cfg.SweepSchedule)
	}

	a.handler = api.NewServer(a.svc, a.hub, log, metrics)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (service.FlightStore, func(context.Context) error, error) {
	if cfg.StoreDriver == config.DriverMongo {
		store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	client, err := db.New(cfg.StoreDriver, cfg.DBConnStr)
	if err != nil {
		return nil, nil, err
	}
	closeClient := func(context.Context) error { return client.Close() }

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.AutoMigrate {
		migrator := migrations.New(client.DB(), client.Dialect(), log)
		if err := migrator.Migrate(migrations.All(cfg.StoreDriver)); err != nil {
			client.Close()
			return nil, nil, err
		}
	}
	return client, closeClient, nil
}

// startRelays subscribes the configured relays to the hub
func (a *app) startRelays(ctx context.Context, cfg *config.Config) error {
	if cfg.NATSURL != "" {
		nc, err := nats.New(cfg.NATSURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { nc.Close(); return nil })
		a.relay(ctx, "nats", nc)
		a.log.Info("NATS relay started", "stream", nats.StreamName)
	}

	if cfg.RedisAddr != "" {
		rc, err := redis.New(cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
		a.relay(ctx, "redis", rc)
		a.log.Info("Redis relay started", "channel", rc.Channel())
	}

	if cfg.JournalDir != "" {
		j := journal.New(cfg.JournalDir, a.log.With("component", "journal"))
		if err := j.Start(); err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return j.Stop() })
		a.relay(ctx, "journal", j)
		a.log.Info("Event journal started", "dir", cfg.JournalDir)
	}
	return nil
}

// relay forwards hub events to sink until the hub closes
func (a *app) relay(ctx context.Context, name string, sink broadcast.Sink) {
	sub := a.hub.Subscribe()
	a.relays.Add(1)
	go func() {
		defer a.relays.Done()
		broadcast.Forward(ctx, sub, name, sink, a.log)
	}()
}

// close stops the sweep, disconnects observers and relays, then the store
func (a *app) close(ctx context.Context) {
	if a.sweeper != nil {
		select {
		case <-a.sweeper.Stop().Done():
		case <-ctx.Done():
			a.log.Warn("status sweep did not stop in time")
		}
	}
	a.cancel()
	if a.hub != nil {
		a.hub.Close()
	}

	relaysDone := make(chan struct{})
	go func() {
		a.relays.Wait()
		close(relaysDone)
	}()
	select {
	case <-relaysDone:
	case <-ctx.Done():
		a.log.Warn("relays did not stop in time")
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Error("shutdown error", "error", err)
		}
	}
}
