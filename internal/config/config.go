// Package config handles the tb configuration file (config.yaml).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/taskbasket/taskbasket/internal/access"
)

// Config is the explicit configuration struct backing config.yaml.
type Config struct {
	// DB is the task database path, or ":memory:" for a transient store.
	DB string `yaml:"db,omitempty"`

	// Actor identifies the acting user when --actor is not given.
	Actor  string   `yaml:"actor,omitempty"`
	Groups []string `yaml:"groups,omitempty"`
	Roles  []string `yaml:"roles,omitempty"`

	// AccessManifest points at the TOML file holding workbasket grants.
	AccessManifest string `yaml:"access_manifest,omitempty"`

	History HistoryConfig `yaml:"history,omitempty"`
	Bulk    BulkConfig    `yaml:"bulk,omitempty"`
}

// HistoryConfig holds audit-trail policy.
type HistoryConfig struct {
	// CascadeDelete removes a task's history events when the task is
	// deleted. Off by default: the trail outlives the task.
	CascadeDelete bool `yaml:"cascade_delete,omitempty"`
}

// BulkConfig tunes bulk operations.
type BulkConfig struct {
	// Workers bounds parallel item processing in bulk calls. Values below
	// 2 keep bulk processing sequential.
	Workers int `yaml:"workers,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{DB: ".taskbasket/tasks.db"}
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) // #nosec G304 - controlled path from caller
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config file at path.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Subject builds the acting subject from the configured identity.
func (c Config) Subject() access.Subject {
	roles := make([]access.Role, 0, len(c.Roles))
	for _, r := range c.Roles {
		roles = append(roles, access.Role(strings.ToUpper(r)))
	}
	return access.Subject{
		UserID:   c.Actor,
		GroupIDs: c.Groups,
		Roles:    roles,
	}
}

// Set maps a string key/value pair onto the typed field it names. This is
// the pure parsing path behind `tb config set`.
func (c *Config) Set(key, value string) error {
	switch key {
	case "db":
		c.DB = value
	case "actor":
		c.Actor = value
	case "groups":
		c.Groups = splitList(value)
	case "roles":
		c.Roles = splitList(value)
	case "access_manifest":
		c.AccessManifest = value
	case "history.cascade_delete":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: expected true or false, got %q", key, value)
		}
		c.History.CascadeDelete = b
	case "bulk.workers":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s: expected a non-negative integer, got %q", key, value)
		}
		c.Bulk.Workers = n
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// Get renders the value for a key in its string form.
func (c Config) Get(key string) (string, error) {
	switch key {
	case "db":
		return c.DB, nil
	case "actor":
		return c.Actor, nil
	case "groups":
		return strings.Join(c.Groups, ","), nil
	case "roles":
		return strings.Join(c.Roles, ","), nil
	case "access_manifest":
		return c.AccessManifest, nil
	case "history.cascade_delete":
		return strconv.FormatBool(c.History.CascadeDelete), nil
	case "bulk.workers":
		return strconv.Itoa(c.Bulk.Workers), nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

// All renders every known key in string form, for `tb config list`.
func (c Config) All() map[string]string {
	keys := []string{
		"db", "actor", "groups", "roles", "access_manifest",
		"history.cascade_delete", "bulk.workers",
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, _ := c.Get(k)
		out[k] = v
	}
	return out
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
