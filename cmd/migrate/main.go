package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/saviobatista/flightboard/internal/config"
	"github.com/saviobatista/flightboard/internal/db"
	"github.com/saviobatista/flightboard/internal/db/migrations"
	"github.com/saviobatista/flightboard/internal/logger"
)

func main() {
	log, err := logger.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		log, _ = logger.New("info")
	}
	defer log.Sync()

	if err := run(os.Args[1:], os.Stderr, log); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer, log logger.Logger) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	driver := fs.String("driver", config.DriverSQLite, "Database driver (sqlite3 or postgres)")
	dbURL := fs.String("db", "file:flightboard.db?_foreign_keys=on", "Database connection string")
	rollback := fs.Bool("rollback", false, "Rollback the last migration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := db.New(*driver, *dbURL)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DB().Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := migrations.New(client.DB(), client.Dialect(), log)
	migrationList := migrations.All(*driver)

	if *rollback {
		if err := migrator.Rollback(migrationList); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		return nil
	}
	if err := migrator.Migrate(migrationList); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
