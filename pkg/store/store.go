// Package store provides structured access to the relational stores a
// mirror spans: the local mirror database and the authoritative remote
// database. Callers express intent as qualifiers, column lists, and
// value maps; the package renders SQL for the configured dialect and
// executes it over database/sql.
//
// Concrete drivers are modernc.org/sqlite for local mirrors and
// jackc/pgx (stdlib mode) for remote Postgres sources.
package store

import (
	"context"
	"fmt"
	"strings"
)

// Row maps column names to scalar values. Values are opaque to this
// package beyond what the driver can bind.
type Row map[string]any

// Rows is a fully materialized, restartable result set.
type Rows []Row

// Column describes one column of a mirrored table as declared by the
// caller. Type is the SQL type used verbatim in CREATE TABLE.
type Column struct {
	Name string
	Type string
}

// Qual is a single (column, operator, value) comparison. A query
// carries a set of quals that are implicitly ANDed.
type Qual struct {
	Column   string
	Operator string
	Value    any
}

// Equal reports whether two quals compare the same column against the
// same value with the same operator. Values are compared with ==, so
// only scalar values are meaningful here.
func (q Qual) Equal(other Qual) bool {
	return q.Column == other.Column && q.Operator == other.Operator && q.Value == other.Value
}

func (q Qual) String() string {
	return fmt.Sprintf("%s %s %v", q.Column, q.Operator, q.Value)
}

// SortKey is an advisory ordering hint. Policies may ignore it.
type SortKey struct {
	Column     string
	Descending bool
	NullsFirst bool
}

// Store is the access contract for one relational store. Every method
// takes structured intent; no caller constructs SQL text itself.
type Store interface {
	// Fetch returns all rows matching quals, restricted to columns
	// (all columns when empty), ordered by sortKeys when given.
	Fetch(ctx context.Context, table string, quals []Qual, columns []string, sortKeys []SortKey) (Rows, error)

	// Insert adds one row and returns the affected count.
	Insert(ctx context.Context, table string, values Row) (int64, error)

	// Update rewrites rows matching oldValues with newValues and
	// returns the affected count.
	Update(ctx context.Context, table string, oldValues, newValues Row) (int64, error)

	// Delete removes rows matching quals and returns the affected count.
	Delete(ctx context.Context, table string, quals []Qual) (int64, error)

	// Count returns the number of rows matching quals (all rows when
	// quals is empty).
	Count(ctx context.Context, table string, quals []Qual) (int64, error)

	// TableExists reports whether a table with the given name exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// CreateTable creates a table with the given column definitions.
	CreateTable(ctx context.Context, table string, columns []Column, ifNotExists bool) error

	// BulkInsert loads rows in batches. Rows must share a column set.
	BulkInsert(ctx context.Context, table string, rows Rows) error

	// Close releases the underlying connection pool.
	Close() error
}

// ConnConfig identifies one store. Path selects the sqlite driver;
// otherwise the host/dbname form selects Postgres.
type ConnConfig struct {
	Path     string
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
}

// Driver returns the database/sql driver name this config resolves to.
func (c ConnConfig) Driver() string {
	if c.Path != "" {
		return "sqlite"
	}
	return "pgx"
}

// DSN renders the connection string for the resolved driver.
func (c ConnConfig) DSN() string {
	if c.Path != "" {
		return c.Path
	}

	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == "" {
		port = "5432"
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	parts := []string{
		fmt.Sprintf("host=%s", host),
		fmt.Sprintf("port=%s", port),
		fmt.Sprintf("dbname=%s", c.Database),
		fmt.Sprintf("sslmode=%s", sslmode),
	}
	if c.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", c.User))
	}
	if c.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.Password))
	}
	return strings.Join(parts, " ")
}
