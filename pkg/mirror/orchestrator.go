package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/samplemirror/pkg/store"
)

// requiredOptions must be present in the option bag passed to Open.
var requiredOptions = []string{"policy", "name", "table_name"}

// connParams are the recognized connection keys, each read with a
// local_ and a remote_ prefix.
var connParams = []string{"path", "dbname", "user", "password", "host", "port", "sslmode"}

// OpenOptions configures one mirror.
type OpenOptions struct {
	// Options is the string-keyed option bag. Required keys: policy,
	// name, table_name. Connection keys carry local_/remote_
	// prefixes; everything else is passed to the policy untouched.
	Options map[string]string

	// Columns is the declared column set of the mirrored table.
	Columns []Column

	// Fleet, when non-nil, receives the orchestrator under its
	// configured name once OnOpen has run.
	Fleet *Fleet

	// LocalStore and RemoteStore override the store handles that
	// would otherwise be opened from the connection options. The
	// orchestrator does not close injected handles.
	LocalStore  store.Store
	RemoteStore store.Store

	// Logger defaults to a discard logger when nil.
	Logger *slog.Logger
}

// Orchestrator owns one named mirror: a policy instance, a local and a
// remote store handle, and the count of rows currently stored in the
// mirror. All mutations of the mirror and its count are serialized on
// a per-orchestrator mutex; count reads are lock-free snapshots.
type Orchestrator struct {
	name      string
	tableName string
	policy    Policy
	logger    *slog.Logger

	local     store.Store
	remote    store.Store
	ownStores bool

	mu   sync.Mutex
	rows atomic.Int64
}

// Open constructs an orchestrator: it validates the required options,
// splits the connection parameters by prefix, instantiates the named
// policy, runs its OnOpen exactly once to initialize and measure the
// mirror, and publishes the result into the fleet when one is given.
func Open(ctx context.Context, opts OpenOptions) (*Orchestrator, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	for _, option := range requiredOptions {
		if opts.Options[option] == "" {
			return nil, &MissingOptionError{Component: "mirror", Option: option}
		}
	}
	name := opts.Options["name"]
	tableName := opts.Options["table_name"]

	policy, err := NewPolicy(opts.Options["policy"], PolicyConfig{
		TableName: tableName,
		Options:   opts.Options,
		Columns:   opts.Columns,
	}, logger)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		name:      name,
		tableName: tableName,
		policy:    policy,
		logger:    logger.With(slog.String("mirror", name)),
		local:     opts.LocalStore,
		remote:    opts.RemoteStore,
	}

	if o.local == nil || o.remote == nil {
		localCfg, remoteCfg := SplitConnOptions(opts.Options)
		if o.local == nil {
			if o.local, err = store.Open(ctx, localCfg, o.logger); err != nil {
				return nil, fmt.Errorf("opening local store: %w", err)
			}
		}
		if o.remote == nil {
			if o.remote, err = store.Open(ctx, remoteCfg, o.logger); err != nil {
				_ = o.local.Close()
				return nil, fmt.Errorf("opening remote store: %w", err)
			}
		}
		o.ownStores = true
	}

	count, err := policy.OnOpen(ctx, o.remote, o.local)
	if err != nil {
		if o.ownStores {
			_ = o.Close()
		}
		return nil, fmt.Errorf("policy %s on open: %w", policy.Name(), err)
	}
	o.rows.Store(count)

	if opts.Fleet != nil {
		opts.Fleet.publish(o)
	}
	return o, nil
}

// SplitConnOptions separates the option bag into local and remote
// connection configs by the local_/remote_ key prefixes.
func SplitConnOptions(options map[string]string) (local, remote store.ConnConfig) {
	read := func(prefix string) store.ConnConfig {
		var cfg store.ConnConfig
		for _, param := range connParams {
			v, ok := options[prefix+param]
			if !ok {
				continue
			}
			switch param {
			case "path":
				cfg.Path = v
			case "dbname":
				cfg.Database = v
			case "user":
				cfg.User = v
			case "password":
				cfg.Password = v
			case "host":
				cfg.Host = v
			case "port":
				cfg.Port = v
			case "sslmode":
				cfg.SSLMode = v
			}
		}
		return cfg
	}
	return read("local_"), read("remote_")
}

// Name returns the unique mirror name.
func (o *Orchestrator) Name() string { return o.name }

// TableName returns the mirrored table's name in the remote store.
func (o *Orchestrator) TableName() string { return o.tableName }

// Policy returns the policy instance driving this mirror.
func (o *Orchestrator) Policy() Policy { return o.policy }

// RowsStoredLocally returns a snapshot of the number of rows currently
// stored in the mirror.
func (o *Orchestrator) RowsStoredLocally() int64 { return o.rows.Load() }

// Execute runs the read path. The mirror is consulted first; when it
// answers, that answer is returned verbatim with no remote call. On a
// local miss the remote store is queried once, the materialized result
// is offered to the policy for caching, and the same result is
// returned to the caller. A cache-population failure degrades the
// cache but not the read: it is logged, the count is left untouched,
// and the fetched rows are still returned.
func (o *Orchestrator) Execute(ctx context.Context, quals []Qual, columns []string, sortKeys []SortKey) (Rows, error) {
	rows, answered, err := o.policy.FetchLocally(ctx, o.local, quals, columns, sortKeys)
	if err != nil {
		return nil, fmt.Errorf("fetching locally: %w", err)
	}
	if answered {
		return rows, nil
	}

	remoteRows, err := o.policy.FetchRemotely(ctx, o.remote, quals, columns, sortKeys)
	if err != nil {
		return nil, fmt.Errorf("fetching remotely: %w", err)
	}

	o.mu.Lock()
	added, err := o.policy.StoreResultsLocally(ctx, o.local, remoteRows)
	switch {
	case err != nil:
		o.logger.Warn("failed to cache remote results locally", slog.Any("error", err))
	case added < 0:
		o.logger.Warn("policy reported a negative cache delta, ignoring",
			slog.String("policy", o.policy.Name()), slog.Int64("delta", added))
	default:
		o.rows.Add(added)
	}
	o.mu.Unlock()

	return remoteRows, nil
}

// RowIDColumn names the uniqueness-key column used for writes.
func (o *Orchestrator) RowIDColumn() (string, error) {
	return o.policy.RowIDColumn()
}

// Insert applies the write to the mirror first, adjusting the count by
// the policy's delta, then to the remote store. A remote failure after
// the local write succeeded is surfaced to the caller; the stores may
// diverge at that point and the count stays true to the mirror.
func (o *Orchestrator) Insert(ctx context.Context, values Row) (Row, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delta, err := o.policy.InsertLocally(ctx, o.local, values)
	if err != nil {
		return nil, fmt.Errorf("inserting locally: %w", err)
	}
	o.rows.Add(delta)

	result, err := o.policy.InsertRemotely(ctx, o.remote, values)
	if err != nil {
		return nil, fmt.Errorf("inserting remotely: %w", err)
	}
	return result, nil
}

// Update applies the write to the mirror first, adjusting the count by
// the policy's signed delta, then to the remote store.
func (o *Orchestrator) Update(ctx context.Context, oldValues, newValues Row) (Row, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delta, err := o.policy.UpdateLocally(ctx, o.local, oldValues, newValues)
	if err != nil {
		return nil, fmt.Errorf("updating locally: %w", err)
	}
	o.rows.Add(delta)

	result, err := o.policy.UpdateRemotely(ctx, o.remote, oldValues, newValues)
	if err != nil {
		return nil, fmt.Errorf("updating remotely: %w", err)
	}
	return result, nil
}

// Delete removes the row from the mirror first, subtracting the
// removed count, then from the remote store.
func (o *Orchestrator) Delete(ctx context.Context, oldValues Row) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	removed, err := o.policy.DeleteLocally(ctx, o.local, oldValues)
	if err != nil {
		return fmt.Errorf("deleting locally: %w", err)
	}
	o.rows.Add(-removed)

	if err := o.policy.DeleteRemotely(ctx, o.remote, oldValues); err != nil {
		return fmt.Errorf("deleting remotely: %w", err)
	}
	return nil
}

// FetchMore asks the policy to grow the mirror to at least newTarget
// rows and records the exact count it reports.
func (o *Orchestrator) FetchMore(ctx context.Context, newTarget int64) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	count, err := o.policy.FetchMoreRows(ctx, o.remote, o.local, o.rows.Load(), newTarget)
	if err != nil {
		return o.rows.Load(), fmt.Errorf("fetching more rows: %w", err)
	}
	o.rows.Store(count)
	return count, nil
}

// Close releases the store handles the orchestrator opened itself.
// Injected handles are left to their owner.
func (o *Orchestrator) Close() error {
	if !o.ownStores {
		return nil
	}
	var firstErr error
	for _, s := range []store.Store{o.local, o.remote} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
