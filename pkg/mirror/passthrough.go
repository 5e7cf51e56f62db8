package mirror

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/samplemirror/pkg/store"
)

// PassthroughPolicyName is the registry name of PassthroughPolicy.
const PassthroughPolicyName = "passthrough"

func init() {
	RegisterPolicy(PassthroughPolicyName, func(cfg PolicyConfig, logger *slog.Logger) (Policy, error) {
		return NewPassthroughPolicy(cfg, logger)
	})
}

// PassthroughPolicy never caches: every read goes to the remote store
// and nothing is stored in the mirror. Writes are applied to the
// remote store only, and require a primary_key option.
//
// Accepted options:
//
//	primary_key -- the uniqueness-key column in the remote store.
//	               Required for INSERT, UPDATE and DELETE operations.
type PassthroughPolicy struct {
	BasePolicy
}

// NewPassthroughPolicy builds a passthrough policy. No options are
// required for reads.
func NewPassthroughPolicy(cfg PolicyConfig, logger *slog.Logger) (*PassthroughPolicy, error) {
	return &PassthroughPolicy{BasePolicy: NewBasePolicy(PassthroughPolicyName, cfg, logger)}, nil
}

// RowIDColumn returns the configured primary_key option.
func (p *PassthroughPolicy) RowIDColumn() (string, error) {
	return p.PrimaryKeyOption()
}

// InsertRemotely inserts the row into the remote store.
func (p *PassthroughPolicy) InsertRemotely(ctx context.Context, remote store.Store, values Row) (Row, error) {
	if _, err := remote.Insert(ctx, p.Cfg.TableName, values); err != nil {
		return nil, err
	}
	return values, nil
}

// UpdateRemotely updates the remote store and returns the new values.
func (p *PassthroughPolicy) UpdateRemotely(ctx context.Context, remote store.Store, oldValues, newValues Row) (Row, error) {
	if _, err := remote.Update(ctx, p.Cfg.TableName, oldValues, newValues); err != nil {
		return nil, err
	}
	return newValues, nil
}

// DeleteRemotely deletes from the remote store.
func (p *PassthroughPolicy) DeleteRemotely(ctx context.Context, remote store.Store, oldValues Row) error {
	_, err := remote.Delete(ctx, p.Cfg.TableName, qualsFromRow(oldValues))
	return err
}
