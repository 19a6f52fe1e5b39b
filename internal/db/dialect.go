package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Driver names accepted by database/sql
const (
	Postgres = "postgres"
	SQLite   = "sqlite3"
)

// pq error code for unique_violation
const pqUniqueViolation = "23505"

// Dialect captures the SQL differences between the supported engines
type Dialect struct {
	Driver string
}

// DialectFor returns the dialect for a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case Postgres, SQLite:
		return Dialect{Driver: driver}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Rebind rewrites ? placeholders into the driver's positional form
func (d Dialect) Rebind(query string) string {
	if d.Driver != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Contains returns a case-insensitive substring predicate on column with
// one placeholder for the needle
func (d Dialect) Contains(column string) string {
	if d.Driver == Postgres {
		return fmt.Sprintf("strpos(lower(%s), lower(?)) > 0", column)
	}
	return fmt.Sprintf("instr(lower(%s), lower(?)) > 0", column)
}

// IsUniqueViolation reports whether err comes from a unique constraint
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	return false
}
