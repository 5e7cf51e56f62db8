package mirror

import "fmt"

// MissingOptionError is returned when a required configuration key is
// absent at construction time.
type MissingOptionError struct {
	Component string
	Option    string
}

func (e *MissingOptionError) Error() string {
	return fmt.Sprintf("the options passed to %s should contain a %s field", e.Component, e.Option)
}

// UnknownPolicyError is returned when no policy is registered under
// the requested name.
type UnknownPolicyError struct {
	Name      string
	Available []string
}

func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("no policy registered for %q (available: %v)", e.Name, e.Available)
}

// UnknownMirrorError is returned when a fleet lookup misses.
type UnknownMirrorError struct {
	Name string
}

func (e *UnknownMirrorError) Error() string {
	return fmt.Sprintf("no mirror registered under %q", e.Name)
}

// ConfigurationError is returned when a policy-specific required
// option is missing or invalid.
type ConfigurationError struct {
	Policy string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Policy, e.Reason)
}

// UnsupportedOperationError is returned when an operation is attempted
// against a policy that does not implement it.
type UnsupportedOperationError struct {
	Policy    string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Policy, e.Operation)
}

// ReadOnlyFieldError is returned by the administrative surface when a
// non-mutable field is modified.
type ReadOnlyFieldError struct {
	Field string
}

func (e *ReadOnlyFieldError) Error() string {
	return fmt.Sprintf("field %s is read-only; only rows_stored_locally can be modified", e.Field)
}
