package outage

import (
	"fmt"
	"strings"
)

// Dialect abstracts the SQL differences between the supported outage
// databases: placeholder style, month bucketing, and case-insensitive
// matching.
type Dialect interface {
	// Name returns the dialect name (e.g., "sqlite", "postgres")
	Name() string

	// DriverName returns the database/sql driver name to use
	DriverName() string

	// Rebind converts ? placeholders to the dialect's format.
	Rebind(query string) string

	// MonthBucket returns an expression truncating a timestamp column
	// to a YYYY-MM string.
	MonthBucket(column string) string

	// CaseInsensitiveLike returns the operator for case-insensitive
	// substring matching.
	CaseInsensitiveLike() string

	// PragmaStatements returns dialect-specific initialization
	// statements (e.g., PRAGMA for SQLite)
	PragmaStatements() []string
}

// DialectFromDriver returns the dialect for a given driver name.
func DialectFromDriver(driverName string) (Dialect, error) {
	switch strings.ToLower(driverName) {
	case "sqlite", "sqlite3":
		return &sqliteDialect{}, nil
	case "postgres", "pgx":
		return &postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driverName)
	}
}

type sqliteDialect struct{}

func (d *sqliteDialect) Name() string       { return "sqlite" }
func (d *sqliteDialect) DriverName() string { return "sqlite" }

func (d *sqliteDialect) Rebind(query string) string {
	return query // SQLite uses ?
}

func (d *sqliteDialect) MonthBucket(column string) string {
	return fmt.Sprintf("strftime('%%Y-%%m', %s)", column)
}

func (d *sqliteDialect) CaseInsensitiveLike() string {
	return "LIKE" // SQLite LIKE is case-insensitive for ASCII
}

func (d *sqliteDialect) PragmaStatements() []string {
	return []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
}

type postgresDialect struct{}

func (d *postgresDialect) Name() string       { return "postgres" }
func (d *postgresDialect) DriverName() string { return "pgx" }

func (d *postgresDialect) Rebind(query string) string {
	// Convert ? placeholders to $1, $2, etc.
	var result strings.Builder
	idx := 1
	for _, ch := range query {
		if ch == '?' {
			fmt.Fprintf(&result, "$%d", idx)
			idx++
		} else {
			result.WriteRune(ch)
		}
	}
	return result.String()
}

func (d *postgresDialect) MonthBucket(column string) string {
	return fmt.Sprintf("to_char(date_trunc('month', %s), 'YYYY-MM')", column)
}

func (d *postgresDialect) CaseInsensitiveLike() string {
	return "ILIKE"
}

func (d *postgresDialect) PragmaStatements() []string {
	return nil
}
