package migrations

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/saviobatista/flightboard/internal/db"
	"github.com/saviobatista/flightboard/internal/logger"
)

// Migration is one versioned schema change. Name is recorded in the
// migrations table once UpSQL has run.
type Migration struct {
	Name    string
	UpSQL   string
	DownSQL string
}

// Migrator manages database migrations
type Migrator struct {
	db      *sql.DB
	dialect db.Dialect
	log     logger.Logger
}

// New creates a new Migrator
func New(conn *sql.DB, dialect db.Dialect, log logger.Logger) *Migrator {
	return &Migrator{db: conn, dialect: dialect, log: log.With("component", "migrator")}
}

// Initialize creates the migrations table if it doesn't exist
func (m *Migrator) Initialize() error {
	id := "id SERIAL PRIMARY KEY"
	if m.dialect.Driver == db.SQLite {
		id = "id INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			` + id + `,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := m.db.Exec(query)
	return err
}

// GetAppliedMigrations returns a list of applied migrations
func (m *Migrator) GetAppliedMigrations() (map[string]bool, error) {
	query := `SELECT name FROM migrations ORDER BY id`
	rows, err := m.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			m.log.Warn("error closing rows", "error", cerr)
		}
	}()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// executeMigration runs the migration SQL and its bookkeeping in one transaction
func (m *Migrator) executeMigration(migration *Migration, stmt, recordQuery string, recordArgs ...interface{}) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			m.log.Warn("failed to rollback transaction", "migration", migration.Name, "error", err)
		}
	}()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", migration.Name, err)
	}

	if _, err := tx.Exec(m.dialect.Rebind(recordQuery), recordArgs...); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", migration.Name, err)
	}

	return tx.Commit()
}

// ApplyMigration applies a single migration
func (m *Migrator) ApplyMigration(migration *Migration) error {
	return m.executeMigration(
		migration,
		migration.UpSQL,
		"INSERT INTO migrations (name) VALUES (?)",
		migration.Name,
	)
}

// RollbackMigration rolls back a single migration
func (m *Migrator) RollbackMigration(migration *Migration) error {
	return m.executeMigration(
		migration,
		migration.DownSQL,
		"DELETE FROM migrations WHERE name = ?",
		migration.Name,
	)
}

// Migrate applies all pending migrations
func (m *Migrator) Migrate(migrations []*Migration) error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if !applied[migration.Name] {
			if err := m.ApplyMigration(migration); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
			}
			m.log.Info("applied migration", "migration", migration.Name)
		}
	}

	return nil
}

// Rollback rolls back the last migration
func (m *Migrator) Rollback(migrations []*Migration) error {
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var lastMigration *Migration
	for i := len(migrations) - 1; i >= 0; i-- {
		if applied[migrations[i].Name] {
			lastMigration = migrations[i]
			break
		}
	}

	if lastMigration == nil {
		return fmt.Errorf("no migrations to rollback")
	}

	if err := m.RollbackMigration(lastMigration); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", lastMigration.Name, err)
	}

	m.log.Info("rolled back migration", "migration", lastMigration.Name)
	return nil
}
