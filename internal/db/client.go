package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/saviobatista/flightboard/internal/types"
)

const flightColumns = `id, flight_number, airline, origin, destination, scheduled_time,
	estimated_time, gate, is_arrival, last_updated_at, remarks, revision`

// Client is a FlightStore backed by Postgres or SQLite
type Client struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New opens a database client for the given driver
func New(driver, connStr string) (*Client, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == SQLite {
		// SQLite allows one writer at a time and ":memory:" is per connection
		db.SetMaxOpenConns(1)
	}

	return &Client{db: db, dialect: dialect, now: time.Now}, nil
}

// NewWithDB wraps an existing connection pool
func NewWithDB(db *sql.DB, dialect Dialect) *Client {
	return &Client{db: db, dialect: dialect, now: time.Now}
}

// SetClock overrides the clock used for LastUpdatedAt
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// DB returns the underlying connection pool
func (c *Client) DB() *sql.DB {
	return c.db
}

// Dialect returns the SQL dialect of the client
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// Ping checks the database connection
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// timestamp returns the current instant at the precision Postgres stores
func (c *Client) timestamp() time.Time {
	return c.now().UTC().Truncate(time.Microsecond)
}

// FindAll returns every flight ordered by scheduled time. A non-empty
// destination keeps only flights whose destination contains it, ignoring case.
func (c *Client) FindAll(ctx context.Context, destination string) ([]types.Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights`
	var args []interface{}
	if destination = strings.TrimSpace(destination); destination != "" {
		query += ` WHERE ` + c.dialect.Contains("destination")
		args = append(args, destination)
	}
	query += ` ORDER BY scheduled_time, id`

	rows, err := c.db.QueryContext(ctx, c.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer rows.Close()

	flights := []types.Flight{}
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flight: %w", err)
		}
		flights = append(flights, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read flights: %w", err)
	}
	return flights, nil
}

// FindByID returns a single flight
func (c *Client) FindByID(ctx context.Context, id int64) (types.Flight, error) {
	query := c.dialect.Rebind(`SELECT ` + flightColumns + ` FROM flights WHERE id = ?`)

	f, err := scanFlight(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Flight{}, types.ErrNotFound
	}
	if err != nil {
		return types.Flight{}, fmt.Errorf("failed to get flight %d: %w", id, err)
	}
	return f, nil
}

// Create inserts a new flight. The unique index on flight_number makes a
// concurrent duplicate fail inside the insert itself.
func (c *Client) Create(ctx context.Context, draft types.Draft) (types.Flight, error) {
	draft = draft.UTC().Truncate(time.Microsecond)
	now := c.timestamp()

	query := c.dialect.Rebind(`
		INSERT INTO flights (
			flight_number, airline, origin, destination, scheduled_time,
			estimated_time, gate, is_arrival, remarks, last_updated_at, revision
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		RETURNING id`)

	var id int64
	err := c.db.QueryRowContext(ctx, query,
		draft.FlightNumber, draft.Airline, draft.Origin, draft.Destination, draft.ScheduledTime,
		nullTime(draft.EstimatedTime), draft.Gate, draft.IsArrival, nullString(draft.Remarks), now,
	).Scan(&id)
	if err != nil {
		if IsUniqueViolation(err) {
			return types.Flight{}, types.ErrConflict
		}
		return types.Flight{}, fmt.Errorf("failed to create flight: %w", err)
	}

	return flightFromDraft(id, draft, now, 1), nil
}

// Update overwrites a flight's fields in a single statement. A missing row
// is ErrNotFound; taking another flight's number is ErrConflict.
func (c *Client) Update(ctx context.Context, id int64, draft types.Draft) (types.Flight, error) {
	draft = draft.UTC().Truncate(time.Microsecond)
	now := c.timestamp()

	query := c.dialect.Rebind(`
		UPDATE flights SET
			flight_number = ?, airline = ?, origin = ?, destination = ?,
			scheduled_time = ?, estimated_time = ?, gate = ?, is_arrival = ?,
			remarks = ?, last_updated_at = ?, revision = revision + 1
		WHERE id = ?
		RETURNING revision`)

	var revision int64
	err := c.db.QueryRowContext(ctx, query,
		draft.FlightNumber, draft.Airline, draft.Origin, draft.Destination,
		draft.ScheduledTime, nullTime(draft.EstimatedTime), draft.Gate, draft.IsArrival,
		nullString(draft.Remarks), now, id,
	).Scan(&revision)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return types.Flight{}, types.ErrNotFound
	case IsUniqueViolation(err):
		return types.Flight{}, types.ErrConflict
	case err != nil:
		return types.Flight{}, fmt.Errorf("failed to update flight %d: %w", id, err)
	}

	return flightFromDraft(id, draft, now, revision), nil
}

// Delete removes a flight
func (c *Client) Delete(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, c.dialect.Rebind(`DELETE FROM flights WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete flight %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete flight %d: %w", id, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// Count returns the number of stored flights
func (c *Client) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flights`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count flights: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFlight(s scanner) (types.Flight, error) {
	var (
		f         types.Flight
		estimated sql.NullTime
		remarks   sql.NullString
	)
	if err := s.Scan(
		&f.ID, &f.FlightNumber, &f.Airline, &f.Origin, &f.Destination, &f.ScheduledTime,
		&estimated, &f.Gate, &f.IsArrival, &f.LastUpdatedAt, &remarks, &f.Revision,
	); err != nil {
		return types.Flight{}, err
	}

	f.ScheduledTime = f.ScheduledTime.UTC()
	f.LastUpdatedAt = f.LastUpdatedAt.UTC()
	if estimated.Valid {
		t := estimated.Time.UTC()
		f.EstimatedTime = &t
	}
	if remarks.Valid {
		r := remarks.String
		f.Remarks = &r
	}
	return f, nil
}

func flightFromDraft(id int64, d types.Draft, updatedAt time.Time, revision int64) types.Flight {
	return types.Flight{
		ID:            id,
		FlightNumber:  d.FlightNumber,
		Airline:       d.Airline,
		Origin:        d.Origin,
		Destination:   d.Destination,
		ScheduledTime: d.ScheduledTime,
		EstimatedTime: d.EstimatedTime,
		Gate:          d.Gate,
		IsArrival:     d.IsArrival,
		LastUpdatedAt: updatedAt,
		Remarks:       d.Remarks,
		Revision:      revision,
	}
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
