// Package config loads gtgtree settings from YAML, layering a project file
// over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath names an explicit config file, overriding the project lookup.
const EnvPath = "GTGTREE_CONFIG"

// ProjectFile is the config path relative to the working directory.
const ProjectFile = ".gtgtree/config.yaml"

// Config is the full configuration
type Config struct {
	Tasks   TasksConfig   `yaml:"tasks"`
	Filter  FilterConfig  `yaml:"filter"`
	Persist PersistConfig `yaml:"persist"`
	Watch   WatchConfig   `yaml:"watch"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// TasksConfig locates the task file
type TasksConfig struct {
	Path string `yaml:"path"`
}

// FilterConfig is the default view filter
type FilterConfig struct {
	Title    string   `yaml:"title"`
	Fuzzy    bool     `yaml:"fuzzy"`
	Status   string   `yaml:"status"`
	Tags     []string `yaml:"tags,omitempty"`
	Blocking bool     `yaml:"blocking"`
}

// PersistConfig selects the snapshot database
type PersistConfig struct {
	Driver string `yaml:"driver"` // sqlite, sqlite3 or pgx
	DSN    string `yaml:"dsn"`
}

// WatchConfig tunes file watching
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Poll     bool          `yaml:"poll"`
}

// LogConfig sets up slog
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// MetricsConfig enables the Prometheus endpoint when Addr is set
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Tasks:   TasksConfig{Path: ".gtgtree/tasks.jsonl"},
		Filter:  FilterConfig{Blocking: true},
		Persist: PersistConfig{Driver: "sqlite", DSN: ".gtgtree/snapshot.db"},
		Watch:   WatchConfig{Debounce: 250 * time.Millisecond},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load returns the defaults overlaid with the file named by GTGTREE_CONFIG,
// or else with ProjectFile under dir when it exists.
func Load(dir string) (*Config, error) {
	cfg := Default()
	path := os.Getenv(EnvPath)
	if path == "" {
		path = filepath.Join(dir, ProjectFile)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
	}
	if err := LoadFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg and validates the result.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// Validate checks enumerated fields
func (c *Config) Validate() error {
	var errs []error
	switch c.Persist.Driver {
	case "sqlite", "sqlite3", "pgx":
	default:
		errs = append(errs, fmt.Errorf("persist.driver: unsupported %q", c.Persist.Driver))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unsupported %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported %q", c.Log.Format))
	}
	switch c.Filter.Status {
	case "", "active", "done", "dismissed":
	default:
		errs = append(errs, fmt.Errorf("filter.status: unsupported %q", c.Filter.Status))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, errors.New("watch.debounce: must not be negative"))
	}
	return errors.Join(errs...)
}

// Write saves cfg as YAML, creating the directory if needed
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
