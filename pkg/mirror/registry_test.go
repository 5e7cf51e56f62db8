package mirror

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPolicy(t *testing.T) {
	RegisterPolicy("test_registered", func(cfg PolicyConfig, logger *slog.Logger) (Policy, error) {
		return NewPassthroughPolicy(cfg, logger)
	})

	assert.True(t, IsRegistered("test_registered"))
	assert.Contains(t, Policies(), "test_registered")

	p, err := NewPolicy("test_registered", PolicyConfig{TableName: "t"}, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestRegisterPolicy_LastRegistrationWins(t *testing.T) {
	RegisterPolicy("test_overwritten", func(cfg PolicyConfig, logger *slog.Logger) (Policy, error) {
		return NewPassthroughPolicy(cfg, logger)
	})
	RegisterPolicy("test_overwritten", func(cfg PolicyConfig, logger *slog.Logger) (Policy, error) {
		return NewSelectionPolicy(cfg, logger)
	})

	// Selection's constructor validates its options, so the error
	// proves the second registration replaced the first.
	_, err := NewPolicy("test_overwritten", PolicyConfig{TableName: "t"}, nil)
	var missing *MissingOptionError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "column", missing.Option)
}

func TestNewPolicy_Unknown(t *testing.T) {
	_, err := NewPolicy("no_such_policy", PolicyConfig{}, nil)

	var unknown *UnknownPolicyError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "no_such_policy", unknown.Name)
	assert.Contains(t, unknown.Available, SelectionPolicyName)
	assert.Contains(t, unknown.Available, PassthroughPolicyName)
	assert.Contains(t, err.Error(), "no_such_policy")
}

func TestBuiltinPoliciesRegistered(t *testing.T) {
	assert.True(t, IsRegistered(SelectionPolicyName))
	assert.True(t, IsRegistered(PassthroughPolicyName))
}
