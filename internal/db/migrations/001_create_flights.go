package migrations

import "github.com/saviobatista/flightboard/internal/db"

// CreateFlights creates the flights table. flight_number carries a unique
// index so duplicate numbers are rejected by the engine itself.
func CreateFlights(driver string) *Migration {
	m := &Migration{
		Name: "001_create_flights",
		DownSQL: `
		DROP INDEX IF EXISTS idx_flights_scheduled_time;
		DROP INDEX IF EXISTS ux_flights_flight_number;
		DROP TABLE IF EXISTS flights;
	`,
	}

	switch driver {
	case db.Postgres:
		m.UpSQL = `
		CREATE TABLE IF NOT EXISTS flights (
			id BIGSERIAL PRIMARY KEY,
			flight_number TEXT NOT NULL,
			airline TEXT NOT NULL DEFAULT 'Generic',
			origin TEXT NOT NULL DEFAULT 'TLV',
			destination TEXT NOT NULL,
			scheduled_time TIMESTAMPTZ NOT NULL,
			estimated_time TIMESTAMPTZ,
			gate TEXT NOT NULL,
			is_arrival BOOLEAN NOT NULL DEFAULT FALSE,
			last_updated_at TIMESTAMPTZ NOT NULL,
			remarks TEXT,
			revision BIGINT NOT NULL DEFAULT 1
		);

		CREATE UNIQUE INDEX IF NOT EXISTS ux_flights_flight_number ON flights (flight_number);
		CREATE INDEX IF NOT EXISTS idx_flights_scheduled_time ON flights (scheduled_time);
	`
	default:
		// AUTOINCREMENT keeps ids of deleted flights from being reused
		m.UpSQL = `
		CREATE TABLE IF NOT EXISTS flights (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			flight_number TEXT NOT NULL,
			airline TEXT NOT NULL DEFAULT 'Generic',
			origin TEXT NOT NULL DEFAULT 'TLV',
			destination TEXT NOT NULL,
			scheduled_time TIMESTAMP NOT NULL,
			estimated_time TIMESTAMP,
			gate TEXT NOT NULL,
			is_arrival BOOLEAN NOT NULL DEFAULT 0,
			last_updated_at TIMESTAMP NOT NULL,
			remarks TEXT,
			revision INTEGER NOT NULL DEFAULT 1
		);

		CREATE UNIQUE INDEX IF NOT EXISTS ux_flights_flight_number ON flights (flight_number);
		CREATE INDEX IF NOT EXISTS idx_flights_scheduled_time ON flights (scheduled_time);
	`
	}

	return m
}

// All returns every migration for the driver in apply order
func All(driver string) []*Migration {
	return []*Migration{
		CreateFlights(driver),
	}
}
