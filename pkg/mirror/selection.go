package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/samplemirror/pkg/store"
)

// SelectionPolicyName is the registry name of SelectionPolicy.
const SelectionPolicyName = "selection"

// localTablePrefix derives the mirror table name from the source table
// name.
const localTablePrefix = "_local_"

func init() {
	RegisterPolicy(SelectionPolicyName, func(cfg PolicyConfig, logger *slog.Logger) (Policy, error) {
		return NewSelectionPolicy(cfg, logger)
	})
}

// SelectionPolicy mirrors only the rows whose value in a configured
// column belongs to a configured allow-list.
//
// Accepted options:
//
//	column        -- the column the allow-list applies to.
//	column_values -- comma-delimited values of column that are stored
//	                 in the mirror.
//	primary_key   -- (optional) the uniqueness-key column in the
//	                 remote store. Required for INSERT, UPDATE and
//	                 DELETE operations.
type SelectionPolicy struct {
	BasePolicy

	column         string
	columnValues   []string
	localTable     string
	selectionQuals []Qual
}

// NewSelectionPolicy validates the policy options and builds the
// per-value selection quals.
func NewSelectionPolicy(cfg PolicyConfig, logger *slog.Logger) (*SelectionPolicy, error) {
	for _, option := range []string{"column", "column_values"} {
		if cfg.Options[option] == "" {
			return nil, &MissingOptionError{Component: "SelectionPolicy", Option: option}
		}
	}
	column := cfg.Options["column"]
	if !cfg.HasColumn(column) {
		return nil, &ConfigurationError{
			Policy: "SelectionPolicy",
			Reason: fmt.Sprintf("column %s is not among the declared columns", column),
		}
	}

	values := strings.Split(cfg.Options["column_values"], ",")
	quals := make([]Qual, len(values))
	for i, v := range values {
		quals[i] = Qual{Column: column, Operator: "=", Value: v}
	}

	return &SelectionPolicy{
		BasePolicy:     NewBasePolicy(SelectionPolicyName, cfg, logger),
		column:         column,
		columnValues:   values,
		localTable:     localTablePrefix + cfg.TableName,
		selectionQuals: quals,
	}, nil
}

// LocalTableName returns the derived name of the mirror table.
func (p *SelectionPolicy) LocalTableName() string { return p.localTable }

// OnOpen creates the mirror table if it does not exist and populates
// it with every remote row whose column value is in the allow-list.
// An existing mirror is never re-populated; its current count is
// reported as is.
func (p *SelectionPolicy) OnOpen(ctx context.Context, remote, local store.Store) (int64, error) {
	exists, err := local.TableExists(ctx, p.localTable)
	if err != nil {
		return 0, err
	}
	if exists {
		return local.Count(ctx, p.localTable, nil)
	}

	if err := local.CreateTable(ctx, p.localTable, p.Cfg.Columns, false); err != nil {
		return 0, err
	}
	for _, qual := range p.selectionQuals {
		rows, err := remote.Fetch(ctx, p.Cfg.TableName, []Qual{qual}, nil, nil)
		if err != nil {
			return 0, err
		}
		if err := local.BulkInsert(ctx, p.localTable, rows); err != nil {
			return 0, err
		}
	}

	count, err := local.Count(ctx, p.localTable, nil)
	if err != nil {
		return 0, err
	}
	p.Logger.Debug("mirror populated",
		slog.String("table", p.localTable), slog.Int64("rows", count))
	return count, nil
}

// FetchLocally answers from the mirror when one of the query's quals
// already restricts the result to a single allow-listed value of the
// selection column. Any other qual set may match rows outside the
// mirrored subset, so the mirror cannot guarantee completeness and the
// query is deferred to the remote store.
func (p *SelectionPolicy) FetchLocally(ctx context.Context, local store.Store, quals []Qual, columns []string, sortKeys []SortKey) (Rows, bool, error) {
	if !p.qualsCoveredLocally(quals) {
		return nil, false, nil
	}
	rows, err := local.Fetch(ctx, p.localTable, quals, columns, sortKeys)
	if err != nil {
		return nil, false, err
	}
	if rows == nil {
		rows = Rows{}
	}
	return rows, true, nil
}

func (p *SelectionPolicy) qualsCoveredLocally(quals []Qual) bool {
	for _, sel := range p.selectionQuals {
		for _, q := range quals {
			if q.Column == sel.Column && strings.TrimSpace(q.Operator) == "=" && p.eligibleValue(q.Value) {
				return true
			}
		}
	}
	return false
}

// eligibleValue reports whether v is in the allow-list. Values are
// compared by their string rendering, since option values arrive as
// strings while row values keep their declared types.
func (p *SelectionPolicy) eligibleValue(v any) bool {
	if v == nil {
		return false
	}
	rendered := fmt.Sprint(v)
	for _, candidate := range p.columnValues {
		if rendered == candidate {
			return true
		}
	}
	return false
}

func (p *SelectionPolicy) eligibleRow(values Row) bool {
	return p.eligibleValue(values[p.column])
}

// RowIDColumn returns the configured primary_key option.
func (p *SelectionPolicy) RowIDColumn() (string, error) {
	return p.PrimaryKeyOption()
}

// InsertLocally mirrors the row iff it is eligible.
func (p *SelectionPolicy) InsertLocally(ctx context.Context, local store.Store, values Row) (int64, error) {
	if !p.eligibleRow(values) {
		return 0, nil
	}
	return local.Insert(ctx, p.localTable, values)
}

// InsertRemotely inserts the row into the remote store unconditionally.
func (p *SelectionPolicy) InsertRemotely(ctx context.Context, remote store.Store, values Row) (Row, error) {
	if _, err := remote.Insert(ctx, p.Cfg.TableName, values); err != nil {
		return nil, err
	}
	return values, nil
}

// UpdateLocally keeps the mirror consistent as a row crosses the
// allow-list boundary. Four cases by (old eligible, new eligible):
// both update the mirror row in place with delta 0; neither is a
// no-op; eligible to ineligible deletes the mirror row with a negative
// delta; ineligible to eligible inserts the merged row with a positive
// delta. The delta is the store's affected count, so an update
// matching several mirror rows moves the accumulator by the true
// number touched.
func (p *SelectionPolicy) UpdateLocally(ctx context.Context, local store.Store, oldValues, newValues Row) (int64, error) {
	oldEligible := p.eligibleRow(oldValues)
	newEligible := p.eligibleRow(newValues)

	switch {
	case oldEligible && newEligible:
		if _, err := local.Update(ctx, p.localTable, oldValues, newValues); err != nil {
			return 0, err
		}
		return 0, nil
	case oldEligible:
		affected, err := local.Delete(ctx, p.localTable, qualsFromRow(oldValues))
		if err != nil {
			return 0, err
		}
		return -affected, nil
	case newEligible:
		affected, err := local.Insert(ctx, p.localTable, mergeRows(oldValues, newValues))
		if err != nil {
			return 0, err
		}
		return affected, nil
	default:
		return 0, nil
	}
}

// UpdateRemotely updates the remote store unconditionally and returns
// the new values.
func (p *SelectionPolicy) UpdateRemotely(ctx context.Context, remote store.Store, oldValues, newValues Row) (Row, error) {
	if _, err := remote.Update(ctx, p.Cfg.TableName, oldValues, newValues); err != nil {
		return nil, err
	}
	return newValues, nil
}

// DeleteLocally removes the row from the mirror iff it is eligible and
// returns the number of rows actually removed.
func (p *SelectionPolicy) DeleteLocally(ctx context.Context, local store.Store, oldValues Row) (int64, error) {
	if !p.eligibleRow(oldValues) {
		return 0, nil
	}
	return local.Delete(ctx, p.localTable, qualsFromRow(oldValues))
}

// DeleteRemotely deletes from the remote store unconditionally.
func (p *SelectionPolicy) DeleteRemotely(ctx context.Context, remote store.Store, oldValues Row) error {
	_, err := remote.Delete(ctx, p.Cfg.TableName, qualsFromRow(oldValues))
	return err
}

// qualsFromRow turns a value map into equality quals. Nil values are
// skipped; equality against NULL never matches anyway.
func qualsFromRow(values Row) []Qual {
	quals := make([]Qual, 0, len(values))
	for _, name := range sortedRowColumns(values) {
		if values[name] == nil {
			continue
		}
		quals = append(quals, Qual{Column: name, Operator: "=", Value: values[name]})
	}
	return quals
}

func sortedRowColumns(values Row) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mergeRows(oldValues, newValues Row) Row {
	merged := make(Row, len(oldValues))
	for name, v := range oldValues {
		merged[name] = v
	}
	for name, v := range newValues {
		merged[name] = v
	}
	return merged
}
