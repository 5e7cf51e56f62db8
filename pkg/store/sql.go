package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// bulkInsertPageSize bounds the number of rows bound into a single
// multi-row INSERT during BulkInsert.
const bulkInsertPageSize = 100

var allowedOperators = map[string]struct{}{
	"=": {}, "<>": {}, "!=": {}, "<": {}, "<=": {}, ">": {}, ">=": {},
	"LIKE": {}, "NOT LIKE": {}, "IN": {}, "IS": {}, "IS NOT": {},
}

// SQLStore implements Store over database/sql for one connection.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open opens a connection pool for cfg and verifies it with a ping.
// If logger is nil, a discard logger is used.
func Open(ctx context.Context, cfg ConnConfig, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	driver := cfg.Driver()
	logger.Debug("opening store", slog.String("driver", driver))

	db, err := sql.Open(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	if driver == "sqlite" {
		// sqlite serializes writers anyway, and a single pooled
		// connection keeps :memory: databases from being cloned per
		// connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}

	return &SQLStore{db: db, driver: driver, logger: logger}, nil
}

// NewWithDB wraps an existing database handle. Used by tests to inject
// a sqlmock connection; driver selects placeholder style ("sqlite" or
// "pgx").
func NewWithDB(db *sql.DB, driver string, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SQLStore{db: db, driver: driver, logger: logger}
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	if s.db != nil {
		s.logger.Debug("closing store", slog.String("driver", s.driver))
		return s.db.Close()
	}
	return nil
}

// placeholder renders the n-th (1-based) bind placeholder for the
// store's driver.
func (s *SQLStore) placeholder(n int) string {
	if s.driver == "pgx" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func validateQuals(quals []Qual) error {
	for _, q := range quals {
		op := strings.ToUpper(strings.TrimSpace(q.Operator))
		if _, ok := allowedOperators[op]; !ok {
			return fmt.Errorf("unsupported qual operator %q", q.Operator)
		}
	}
	return nil
}

// whereClause renders an AND-joined WHERE clause for quals. next is
// the 1-based index of the first placeholder to use. Returns the
// clause (empty when quals is empty) and the bind arguments.
func (s *SQLStore) whereClause(quals []Qual, next int) (string, []any) {
	if len(quals) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(quals))
	args := make([]any, 0, len(quals))
	for _, q := range quals {
		conds = append(conds, fmt.Sprintf("%s %s %s", q.Column, strings.ToUpper(strings.TrimSpace(q.Operator)), s.placeholder(next)))
		args = append(args, q.Value)
		next++
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderByClause(sortKeys []SortKey) string {
	if len(sortKeys) == 0 {
		return ""
	}
	keys := make([]string, 0, len(sortKeys))
	for _, k := range sortKeys {
		dir := "ASC"
		if k.Descending {
			dir = "DESC"
		}
		nulls := "NULLS LAST"
		if k.NullsFirst {
			nulls = "NULLS FIRST"
		}
		keys = append(keys, fmt.Sprintf("%s %s %s", k.Column, dir, nulls))
	}
	return " ORDER BY " + strings.Join(keys, ", ")
}

// Fetch executes a SELECT and materializes the full result set.
func (s *SQLStore) Fetch(ctx context.Context, table string, quals []Qual, columns []string, sortKeys []SortKey) (Rows, error) {
	if err := validateQuals(quals); err != nil {
		return nil, err
	}

	selectClause := "*"
	if len(columns) > 0 {
		selectClause = strings.Join(columns, ", ")
	}
	where, args := s.whereClause(quals, 1)
	query := fmt.Sprintf("SELECT %s FROM %s%s%s", selectClause, table, where, orderByClause(sortKeys))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	resultColumns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns for %s: %w", table, err)
	}

	var out Rows
	values := make([]any, len(resultColumns))
	scanArgs := make([]any, len(resultColumns))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", table, err)
		}
		row := make(Row, len(resultColumns))
		for i, name := range resultColumns {
			row[name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows from %s: %w", table, err)
	}
	return out, nil
}

// insertColumns returns the non-nil columns of values in a stable
// order, matching how statements are rendered.
func insertColumns(values Row) []string {
	cols := make([]string, 0, len(values))
	for name, v := range values {
		if v == nil {
			continue
		}
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

// Insert adds one row, skipping nil-valued columns so column defaults
// apply.
func (s *SQLStore) Insert(ctx context.Context, table string, values Row) (int64, error) {
	cols := insertColumns(values)
	if len(cols) == 0 {
		return 0, fmt.Errorf("insert into %s: no non-null values supplied", table)
	}

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, name := range cols {
		placeholders[i] = s.placeholder(i + 1)
		args[i] = values[name]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return rowsAffected(res)
}

// Update rewrites rows matching oldValues with newValues.
func (s *SQLStore) Update(ctx context.Context, table string, oldValues, newValues Row) (int64, error) {
	if len(newValues) == 0 {
		return 0, fmt.Errorf("update %s: no new values supplied", table)
	}
	if len(oldValues) == 0 {
		return 0, fmt.Errorf("update %s: no old values supplied", table)
	}

	setCols := sortedColumns(newValues)
	whereCols := sortedColumns(oldValues)

	next := 1
	sets := make([]string, len(setCols))
	args := make([]any, 0, len(setCols)+len(whereCols))
	for i, name := range setCols {
		sets[i] = fmt.Sprintf("%s = %s", name, s.placeholder(next))
		args = append(args, newValues[name])
		next++
	}
	conds := make([]string, len(whereCols))
	for i, name := range whereCols {
		conds[i] = fmt.Sprintf("%s = %s", name, s.placeholder(next))
		args = append(args, oldValues[name])
		next++
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table, strings.Join(sets, ", "), strings.Join(conds, " AND "))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", table, err)
	}
	return rowsAffected(res)
}

// Delete removes rows matching quals.
func (s *SQLStore) Delete(ctx context.Context, table string, quals []Qual) (int64, error) {
	if err := validateQuals(quals); err != nil {
		return 0, err
	}

	where, args := s.whereClause(quals, 1)
	query := fmt.Sprintf("DELETE FROM %s%s", table, where)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return rowsAffected(res)
}

// Count returns the number of rows matching quals.
func (s *SQLStore) Count(ctx context.Context, table string, quals []Qual) (int64, error) {
	if err := validateQuals(quals); err != nil {
		return 0, err
	}

	where, args := s.whereClause(quals, 1)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, where)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// TableExists reports whether the table exists, using the catalog
// appropriate to the driver.
func (s *SQLStore) TableExists(ctx context.Context, table string) (bool, error) {
	var query string
	if s.driver == "pgx" {
		query = "SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1)"
	} else {
		query = "SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)"
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return exists, nil
}

// CreateTable creates a table from the declared column set.
func (s *SQLStore) CreateTable(ctx context.Context, table string, columns []Column, ifNotExists bool) error {
	if len(columns) == 0 {
		return fmt.Errorf("create table %s: no columns declared", table)
	}

	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = fmt.Sprintf("%s %s", col.Name, col.Type)
	}
	stmt := "CREATE TABLE "
	if ifNotExists {
		stmt += "IF NOT EXISTS "
	}
	stmt += fmt.Sprintf("%s (%s)", table, strings.Join(defs, ", "))

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// BulkInsert loads rows in pages of bulkInsertPageSize. All rows are
// bound against the column set of the first row.
func (s *SQLStore) BulkInsert(ctx context.Context, table string, rows Rows) error {
	if len(rows) == 0 {
		return nil
	}
	cols := sortedColumns(rows[0])

	for start := 0; start < len(rows); start += bulkInsertPageSize {
		end := start + bulkInsertPageSize
		if end > len(rows) {
			end = len(rows)
		}
		page := rows[start:end]

		next := 1
		tuples := make([]string, 0, len(page))
		args := make([]any, 0, len(page)*len(cols))
		for _, row := range page {
			placeholders := make([]string, len(cols))
			for i, name := range cols {
				placeholders[i] = s.placeholder(next)
				args = append(args, row[name])
				next++
			}
			tuples = append(tuples, "("+strings.Join(placeholders, ", ")+")")
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			table, strings.Join(cols, ", "), strings.Join(tuples, ", "))

		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to bulk insert into %s: %w", table, err)
		}
	}
	return nil
}

func sortedColumns(row Row) []string {
	cols := make([]string, 0, len(row))
	for name := range row {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
