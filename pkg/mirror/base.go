package mirror

import (
	"context"
	"io"
	"log/slog"

	"github.com/leapstack-labs/samplemirror/pkg/store"
)

// BasePolicy supplies the contract defaults. Embed it in concrete
// policies and override the methods the strategy actually implements:
// local writes default to zero-delta no-ops, remote writes and the
// row-id column fail as unsupported, FetchLocally never answers, and
// FetchMoreRows reports the old count unchanged.
type BasePolicy struct {
	Cfg        PolicyConfig
	PolicyName string
	Logger     *slog.Logger
}

// NewBasePolicy initializes the embedded defaults. If logger is nil, a
// discard logger is used.
func NewBasePolicy(name string, cfg PolicyConfig, logger *slog.Logger) BasePolicy {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return BasePolicy{Cfg: cfg, PolicyName: name, Logger: logger}
}

// Name returns the registered policy name.
func (b *BasePolicy) Name() string { return b.PolicyName }

// OnOpen by default mirrors nothing and reports an empty mirror.
func (b *BasePolicy) OnOpen(ctx context.Context, remote, local store.Store) (int64, error) {
	return 0, nil
}

// FetchLocally by default never answers, deferring to the remote store.
func (b *BasePolicy) FetchLocally(ctx context.Context, local store.Store, quals []Qual, columns []string, sortKeys []SortKey) (Rows, bool, error) {
	return nil, false, nil
}

// FetchRemotely queries the remote store with the caller's quals
// against the configured table.
func (b *BasePolicy) FetchRemotely(ctx context.Context, remote store.Store, quals []Qual, columns []string, sortKeys []SortKey) (Rows, error) {
	return remote.Fetch(ctx, b.Cfg.TableName, quals, columns, sortKeys)
}

// StoreResultsLocally by default caches nothing.
func (b *BasePolicy) StoreResultsLocally(ctx context.Context, local store.Store, rows Rows) (int64, error) {
	return 0, nil
}

// RowIDColumn by default reports the write API as unsupported.
func (b *BasePolicy) RowIDColumn() (string, error) {
	return "", &UnsupportedOperationError{Policy: b.PolicyName, Operation: "the write API"}
}

// PrimaryKeyOption returns the primary_key option, failing with a
// ConfigurationError when it is absent. Policies that support writes
// use this for their RowIDColumn.
func (b *BasePolicy) PrimaryKeyOption() (string, error) {
	pk, ok := b.Cfg.Options["primary_key"]
	if !ok || pk == "" {
		return "", &ConfigurationError{
			Policy: b.PolicyName,
			Reason: "a primary_key option must be declared to use the write API",
		}
	}
	return pk, nil
}

// InsertLocally by default mirrors nothing.
func (b *BasePolicy) InsertLocally(ctx context.Context, local store.Store, values Row) (int64, error) {
	return 0, nil
}

// UpdateLocally by default mirrors nothing.
func (b *BasePolicy) UpdateLocally(ctx context.Context, local store.Store, oldValues, newValues Row) (int64, error) {
	return 0, nil
}

// DeleteLocally by default mirrors nothing.
func (b *BasePolicy) DeleteLocally(ctx context.Context, local store.Store, oldValues Row) (int64, error) {
	return 0, nil
}

// InsertRemotely by default reports the write API as unsupported.
func (b *BasePolicy) InsertRemotely(ctx context.Context, remote store.Store, values Row) (Row, error) {
	return nil, &UnsupportedOperationError{Policy: b.PolicyName, Operation: "insertion"}
}

// UpdateRemotely by default reports the write API as unsupported.
func (b *BasePolicy) UpdateRemotely(ctx context.Context, remote store.Store, oldValues, newValues Row) (Row, error) {
	return nil, &UnsupportedOperationError{Policy: b.PolicyName, Operation: "updates"}
}

// DeleteRemotely by default reports the write API as unsupported.
func (b *BasePolicy) DeleteRemotely(ctx context.Context, remote store.Store, oldValues Row) error {
	return &UnsupportedOperationError{Policy: b.PolicyName, Operation: "deletion"}
}

// FetchMoreRows by default cannot grow the mirror and reports the old
// count unchanged.
func (b *BasePolicy) FetchMoreRows(ctx context.Context, remote, local store.Store, oldTarget, newTarget int64) (int64, error) {
	return oldTarget, nil
}
