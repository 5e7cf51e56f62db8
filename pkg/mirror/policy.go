// Package mirror implements transparent sampled mirroring of a large
// remote relational table through a smaller local replica.
//
// A pluggable Policy decides which rows belong in the mirror and
// whether a given query can be answered from it. An Orchestrator
// drives one named mirror through its read and write paths, keeping an
// exact count of locally stored rows. A Fleet holds all live mirrors
// for administrative introspection and on-demand sample growth.
package mirror

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/samplemirror/pkg/store"
)

// Type aliases for the shared store types, so policy implementations
// and callers can stay within this package.
type (
	// Row is an alias for store.Row.
	Row = store.Row

	// Rows is an alias for store.Rows.
	Rows = store.Rows

	// Column is an alias for store.Column.
	Column = store.Column

	// Qual is an alias for store.Qual.
	Qual = store.Qual

	// SortKey is an alias for store.SortKey.
	SortKey = store.SortKey
)

// PolicyConfig carries the per-table configuration a policy is
// constructed with. It is immutable after construction.
type PolicyConfig struct {
	// TableName is the table in the remote store being mirrored.
	TableName string

	// Options is the string-keyed option bag for policy-specific keys.
	Options map[string]string

	// Columns is the declared column set of the table, in declaration
	// order.
	Columns []Column
}

// HasColumn reports whether name is among the declared columns.
func (c PolicyConfig) HasColumn(name string) bool {
	for _, col := range c.Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// ColumnNames returns the declared column names in declaration order.
func (c PolicyConfig) ColumnNames() []string {
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
	}
	return names
}

// Policy decides what is mirrored locally and which store answers each
// operation. Implementations hold per-table configuration and no
// engine state; the orchestrator owns the row-count accounting.
//
// Local write methods return the signed change to the number of rows
// stored in the mirror. Operations a policy cannot support must fail
// with an UnsupportedOperationError rather than silently succeeding,
// except where a zero-delta no-op is the documented default.
type Policy interface {
	// Name returns the registered name of the policy.
	Name() string

	// OnOpen runs once per orchestrator construction. It must ensure
	// the mirror's backing table exists, creating and populating it if
	// absent, and return the exact number of rows currently mirrored.
	// It is idempotent: a second call against an existing mirror only
	// reports the count.
	OnOpen(ctx context.Context, remote, local store.Store) (int64, error)

	// FetchLocally answers the query from the mirror when the mirror
	// is complete for the given quals. The second return value
	// reports whether the mirror answered: (nil, false) means "ask
	// remote", while an empty Rows with true is a complete answer of
	// zero matching rows. Returned Rows are fully materialized and
	// restartable.
	FetchLocally(ctx context.Context, local store.Store, quals []Qual, columns []string, sortKeys []SortKey) (Rows, bool, error)

	// FetchRemotely answers the query from the remote store.
	FetchRemotely(ctx context.Context, remote store.Store, quals []Qual, columns []string, sortKeys []SortKey) (Rows, error)

	// StoreResultsLocally caches remotely fetched rows in the mirror
	// and returns the net number of new rows added. Never negative.
	StoreResultsLocally(ctx context.Context, local store.Store, rows Rows) (int64, error)

	// RowIDColumn names the uniqueness-key column for write
	// operations against the remote store.
	RowIDColumn() (string, error)

	// InsertLocally mirrors an inserted row when it is eligible.
	InsertLocally(ctx context.Context, local store.Store, values Row) (int64, error)

	// UpdateLocally applies an update to the mirror; the delta may be
	// negative, zero, or positive as a row moves across the mirrored
	// subset's boundary.
	UpdateLocally(ctx context.Context, local store.Store, oldValues, newValues Row) (int64, error)

	// DeleteLocally removes a row from the mirror when present.
	DeleteLocally(ctx context.Context, local store.Store, oldValues Row) (int64, error)

	// InsertRemotely applies the insert to the remote store and
	// returns the inserted values.
	InsertRemotely(ctx context.Context, remote store.Store, values Row) (Row, error)

	// UpdateRemotely applies the update to the remote store and
	// returns the new values.
	UpdateRemotely(ctx context.Context, remote store.Store, oldValues, newValues Row) (Row, error)

	// DeleteRemotely applies the delete to the remote store.
	DeleteRemotely(ctx context.Context, remote store.Store, oldValues Row) error

	// FetchMoreRows grows the mirror to hold at least newTarget rows
	// and returns the exact resulting count. Policies that cannot
	// grow return oldTarget unchanged; that is a valid no-op.
	FetchMoreRows(ctx context.Context, remote, local store.Store, oldTarget, newTarget int64) (int64, error)
}

// Constructor builds a policy from its configuration. If logger is
// nil, implementations use a discard logger.
type Constructor func(cfg PolicyConfig, logger *slog.Logger) (Policy, error)
