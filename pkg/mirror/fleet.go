package mirror

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
)

// MirrorInfo is the administrative view of one live mirror. Only
// RowsStoredLocally is mutable through the administrative surface.
type MirrorInfo struct {
	Name              string `json:"name"`
	TableName         string `json:"table_name"`
	RowsStoredLocally int64  `json:"rows_stored_locally"`
}

// Fleet is the process-scoped registry of live mirrors, keyed by their
// configured names. It is explicit state owned by the host: construct
// one per application (or per test) and pass it to Open via
// OpenOptions. Entries are created when a mirror is opened and are
// never removed automatically; teardown belongs to the host.
type Fleet struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	mirrors map[string]*Orchestrator
}

// NewFleet creates an empty fleet. If logger is nil, a discard logger
// is used.
func NewFleet(logger *slog.Logger) *Fleet {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fleet{logger: logger, mirrors: make(map[string]*Orchestrator)}
}

// publish records an orchestrator under its name. Reusing a name is
// allowed but replaces the earlier mirror, so it is logged as a
// warning rather than rejected.
func (f *Fleet) publish(o *Orchestrator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mirrors[o.Name()]; ok {
		f.logger.Warn("overwriting registered mirror", slog.String("mirror", o.Name()))
	}
	f.mirrors[o.Name()] = o
}

// Get looks up a mirror by name.
func (f *Fleet) Get(name string) (*Orchestrator, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	o, ok := f.mirrors[name]
	if !ok {
		return nil, &UnknownMirrorError{Name: name}
	}
	return o, nil
}

// List returns the administrative view of every registered mirror,
// sorted by name. Counts are lock-free snapshots.
func (f *Fleet) List() []MirrorInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	infos := make([]MirrorInfo, 0, len(f.mirrors))
	for _, o := range f.mirrors {
		infos = append(infos, MirrorInfo{
			Name:              o.Name(),
			TableName:         o.TableName(),
			RowsStoredLocally: o.RowsStoredLocally(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// SetRowTarget asks the named mirror to grow its sample to at least
// newTarget rows and returns the exact count achieved. Policies that
// cannot grow report their current count; the result never regresses
// the mirror.
func (f *Fleet) SetRowTarget(ctx context.Context, name string, newTarget int64) (int64, error) {
	o, err := f.Get(name)
	if err != nil {
		return 0, err
	}
	return o.FetchMore(ctx, newTarget)
}

// Update is the administrative write entry point: given the previous
// and the requested view of one entry, it rejects any change outside
// RowsStoredLocally with a ReadOnlyFieldError and otherwise applies
// the new count as a row target. The returned info reflects the count
// actually achieved.
func (f *Fleet) Update(ctx context.Context, oldInfo, newInfo MirrorInfo) (MirrorInfo, error) {
	if newInfo.Name != oldInfo.Name {
		return MirrorInfo{}, &ReadOnlyFieldError{Field: "name"}
	}
	if newInfo.TableName != oldInfo.TableName {
		return MirrorInfo{}, &ReadOnlyFieldError{Field: "table_name"}
	}

	count, err := f.SetRowTarget(ctx, oldInfo.Name, newInfo.RowsStoredLocally)
	if err != nil {
		return MirrorInfo{}, err
	}
	newInfo.RowsStoredLocally = count
	return newInfo, nil
}

// Close closes every registered mirror. Intended for tests and CLI
// teardown; long-lived hosts own their mirrors' lifecycles.
func (f *Fleet) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var firstErr error
	for _, o := range f.mirrors {
		if err := o.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
