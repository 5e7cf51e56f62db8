package mirror

import (
	"log/slog"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// RegisterPolicy adds a policy constructor to the registry. Called by
// policy implementations in their init() functions. Registering a name
// twice overwrites the earlier entry; the last registration wins and
// the overwrite is logged as a warning.
func RegisterPolicy(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		slog.Warn("overwriting registered policy", slog.String("policy", name))
	}
	registry[name] = ctor
}

// NewPolicy constructs the named policy. It fails with an
// UnknownPolicyError listing the registered names when the name is not
// registered.
func NewPolicy(name string, cfg PolicyConfig, logger *slog.Logger) (Policy, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownPolicyError{Name: name, Available: Policies()}
	}
	return ctor(cfg, logger)
}

// Policies returns all registered policy names (sorted).
func Policies() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a policy name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}
