// Package config loads mirror definitions for the samplemirror CLI.
//
// Configuration is a YAML file of mirror blocks, overlaid with
// SAMPLEMIRROR_-prefixed environment variables. Each block carries the
// engine's required keys (name, table_name, policy), the declared
// column set, and a free-form option bag whose keys flow to the policy
// and the connection layer untouched.
package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/leapstack-labs/samplemirror/pkg/store"
)

// envPrefix namespaces environment overrides, e.g.
// SAMPLEMIRROR_LOG_LEVEL=debug.
const envPrefix = "SAMPLEMIRROR_"

// ColumnDef declares one column of a mirrored table.
type ColumnDef struct {
	Name string `koanf:"name"`
	Type string `koanf:"type"`
}

// MirrorDef is one mirror block.
type MirrorDef struct {
	Name      string            `koanf:"name"`
	TableName string            `koanf:"table_name"`
	Policy    string            `koanf:"policy"`
	Options   map[string]string `koanf:"options"`
	Columns   []ColumnDef       `koanf:"columns"`
}

// Config is the full CLI configuration.
type Config struct {
	LogLevel string      `koanf:"log_level"`
	Mirrors  []MirrorDef `koanf:"mirrors"`
}

// OptionBag flattens a mirror block into the string-keyed option bag
// the engine consumes: the top-level required keys plus every entry of
// the free-form options map.
func (m MirrorDef) OptionBag() map[string]string {
	bag := make(map[string]string, len(m.Options)+3)
	for k, v := range m.Options {
		bag[k] = v
	}
	bag["name"] = m.Name
	bag["table_name"] = m.TableName
	bag["policy"] = m.Policy
	return bag
}

// StoreColumns converts the declared columns to the store's column
// type, preserving declaration order.
func (m MirrorDef) StoreColumns() []store.Column {
	cols := make([]store.Column, len(m.Columns))
	for i, c := range m.Columns {
		cols[i] = store.Column{Name: c.Name, Type: c.Type}
	}
	return cols
}

// Load reads the config file at path and applies environment
// overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return finish(k)
}

// LoadMap builds a config from an in-memory map, primarily for tests
// and embedding hosts.
func LoadMap(values map[string]any) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load config map: %w", err)
	}
	return finish(k)
}

func finish(k *koanf.Koanf) (*Config, error) {
	if err := k.Load(env.Provider(envPrefix, ".", envKeyTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	seen := make(map[string]struct{}, len(cfg.Mirrors))
	for i, m := range cfg.Mirrors {
		if err := m.validate(); err != nil {
			return nil, fmt.Errorf("mirror %d: %w", i, err)
		}
		if _, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("mirror %d: duplicate mirror name %q", i, m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return &cfg, nil
}

func (m MirrorDef) validate() error {
	switch {
	case m.Name == "":
		return fmt.Errorf("a name field is required")
	case m.TableName == "":
		return fmt.Errorf("a table_name field is required")
	case m.Policy == "":
		return fmt.Errorf("a policy field is required")
	case len(m.Columns) == 0:
		return fmt.Errorf("at least one column must be declared")
	}
	return nil
}

// envKeyTransform maps SAMPLEMIRROR_LOG_LEVEL to log_level. Nested
// keys use double underscores: SAMPLEMIRROR_A__B -> a.b.
func envKeyTransform(key string) string {
	key = key[len(envPrefix):]
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == '_' && i+1 < len(key) && key[i+1] == '_' {
			out = append(out, '.')
			i++
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
