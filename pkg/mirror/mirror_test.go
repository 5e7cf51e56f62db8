package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/samplemirror/internal/testutil"
	"github.com/leapstack-labs/samplemirror/pkg/store"
)

var orderColumns = []Column{
	{Name: "id", Type: "INTEGER"},
	{Name: "status", Type: "TEXT"},
	{Name: "amount", Type: "INTEGER"},
}

func newSQLiteStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(context.Background(), store.ConnConfig{Path: ":memory:"}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedRemote creates the orders table with ten rows: ids 1-3 active,
// 4-6 pending, 7-10 closed.
func seedRemote(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, "orders", orderColumns, false))

	status := func(id int) string {
		switch {
		case id <= 3:
			return "active"
		case id <= 6:
			return "pending"
		default:
			return "closed"
		}
	}
	var rows Rows
	for id := 1; id <= 10; id++ {
		rows = append(rows, Row{"id": id, "status": status(id), "amount": id * 10})
	}
	require.NoError(t, s.BulkInsert(ctx, "orders", rows))
}

func selectionOptions() map[string]string {
	return map[string]string{
		"policy":        SelectionPolicyName,
		"name":          "orders_mirror",
		"table_name":    "orders",
		"column":        "status",
		"column_values": "active,pending",
		"primary_key":   "id",
	}
}

// openSelectionMirror seeds a remote store and opens a selection
// mirror over it with injected in-memory stores.
func openSelectionMirror(t *testing.T, fleet *Fleet) (*Orchestrator, *spyStore, store.Store) {
	t.Helper()
	local := newSQLiteStore(t)
	remote := newSQLiteStore(t)
	seedRemote(t, remote)
	spy := &spyStore{Store: remote}

	o, err := Open(context.Background(), OpenOptions{
		Options:     selectionOptions(),
		Columns:     orderColumns,
		Fleet:       fleet,
		LocalStore:  local,
		RemoteStore: spy,
		Logger:      testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return o, spy, local
}

// spyStore counts the calls made against a wrapped store, so tests can
// assert that a locally answered read never touches the remote side.
type spyStore struct {
	store.Store
	fetches int
	inserts int
	updates int
	deletes int
}

func (s *spyStore) Fetch(ctx context.Context, table string, quals []Qual, columns []string, sortKeys []SortKey) (Rows, error) {
	s.fetches++
	return s.Store.Fetch(ctx, table, quals, columns, sortKeys)
}

func (s *spyStore) Insert(ctx context.Context, table string, values Row) (int64, error) {
	s.inserts++
	return s.Store.Insert(ctx, table, values)
}

func (s *spyStore) Update(ctx context.Context, table string, oldValues, newValues Row) (int64, error) {
	s.updates++
	return s.Store.Update(ctx, table, oldValues, newValues)
}

func (s *spyStore) Delete(ctx context.Context, table string, quals []Qual) (int64, error) {
	s.deletes++
	return s.Store.Delete(ctx, table, quals)
}
