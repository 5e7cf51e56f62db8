package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnConfigDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   ConnConfig
		driver   string
		expected string
	}{
		{
			name:     "sqlite path",
			config:   ConnConfig{Path: "./mirror.db"},
			driver:   "sqlite",
			expected: "./mirror.db",
		},
		{
			name: "basic postgres connection",
			config: ConnConfig{
				Host:     "localhost",
				Port:     "5432",
				Database: "testdb",
				User:     "user",
				Password: "pass",
			},
			driver:   "pgx",
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "postgres with custom sslmode",
			config: ConnConfig{
				Host:     "prod.example.com",
				Database: "proddb",
				User:     "admin",
				SSLMode:  "require",
			},
			driver:   "pgx",
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name:     "postgres defaults",
			config:   ConnConfig{Database: "mydb"},
			driver:   "pgx",
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.driver, tt.config.Driver())
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestQualEqual(t *testing.T) {
	q := Qual{Column: "status", Operator: "=", Value: "active"}

	assert.True(t, q.Equal(Qual{Column: "status", Operator: "=", Value: "active"}))
	assert.False(t, q.Equal(Qual{Column: "status", Operator: "=", Value: "closed"}))
	assert.False(t, q.Equal(Qual{Column: "status", Operator: "<>", Value: "active"}))
	assert.False(t, q.Equal(Qual{Column: "state", Operator: "=", Value: "active"}))
}

func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), ConnConfig{Path: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var testColumns = []Column{
	{Name: "id", Type: "INTEGER"},
	{Name: "status", Type: "TEXT"},
	{Name: "amount", Type: "INTEGER"},
}

func TestSQLStore_CreateTableAndExists(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	exists, err := s.TableExists(ctx, "orders")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.CreateTable(ctx, "orders", testColumns, false))

	exists, err = s.TableExists(ctx, "orders")
	require.NoError(t, err)
	assert.True(t, exists)

	// Recreating without ifNotExists fails, with it succeeds.
	assert.Error(t, s.CreateTable(ctx, "orders", testColumns, false))
	assert.NoError(t, s.CreateTable(ctx, "orders", testColumns, true))
}

func TestSQLStore_InsertFetchCount(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, "orders", testColumns, false))

	affected, err := s.Insert(ctx, "orders", Row{"id": 1, "status": "active", "amount": 50})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// Nil values are filtered out of the statement.
	affected, err = s.Insert(ctx, "orders", Row{"id": 2, "status": "closed", "amount": nil})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	rows, err := s.Fetch(ctx, "orders", nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = s.Fetch(ctx, "orders", []Qual{{Column: "status", Operator: "=", Value: "active"}}, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "active", rows[0]["status"])

	// Column projection restricts the result set.
	rows, err = s.Fetch(ctx, "orders", nil, []string{"status"}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	_, hasID := rows[0]["id"]
	assert.False(t, hasID)

	count, err := s.Count(ctx, "orders", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = s.Count(ctx, "orders", []Qual{{Column: "status", Operator: "=", Value: "closed"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLStore_FetchSorted(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, "orders", testColumns, false))

	for i, amount := range []int{30, 10, 20} {
		_, err := s.Insert(ctx, "orders", Row{"id": i + 1, "status": "active", "amount": amount})
		require.NoError(t, err)
	}

	rows, err := s.Fetch(ctx, "orders", nil, []string{"amount"}, []SortKey{{Column: "amount", Descending: true}})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(30), rows[0]["amount"])
	assert.Equal(t, int64(10), rows[2]["amount"])
}

func TestSQLStore_UpdateDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, "orders", testColumns, false))

	_, err := s.Insert(ctx, "orders", Row{"id": 1, "status": "active", "amount": 50})
	require.NoError(t, err)

	affected, err := s.Update(ctx, "orders", Row{"id": 1}, Row{"status": "closed"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	rows, err := s.Fetch(ctx, "orders", []Qual{{Column: "id", Operator: "=", Value: 1}}, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "closed", rows[0]["status"])

	// Updating a row that does not match affects nothing.
	affected, err = s.Update(ctx, "orders", Row{"id": 99}, Row{"status": "open"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	affected, err = s.Delete(ctx, "orders", []Qual{{Column: "id", Operator: "=", Value: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	count, err := s.Count(ctx, "orders", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSQLStore_BulkInsertPaging(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, "orders", testColumns, false))

	var rows Rows
	for i := 0; i < bulkInsertPageSize*2+7; i++ {
		rows = append(rows, Row{"id": i, "status": fmt.Sprintf("s%d", i%3), "amount": i * 10})
	}
	require.NoError(t, s.BulkInsert(ctx, "orders", rows))

	count, err := s.Count(ctx, "orders", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(rows)), count)

	// Empty input is a no-op.
	require.NoError(t, s.BulkInsert(ctx, "orders", nil))
}

func TestSQLStore_RejectsUnknownOperator(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, "orders", testColumns, false))

	_, err := s.Fetch(ctx, "orders", []Qual{{Column: "id", Operator: "; DROP TABLE orders;", Value: 1}}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported qual operator")

	_, err = s.Delete(ctx, "orders", []Qual{{Column: "id", Operator: "BOGUS", Value: 1}})
	require.Error(t, err)

	_, err = s.Count(ctx, "orders", []Qual{{Column: "id", Operator: "~", Value: 1}})
	require.Error(t, err)
}
