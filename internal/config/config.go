package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/dyluth/multitab/pkg/multitab"
	"github.com/dyluth/multitab/pkg/statetree"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "multitab.yml"

// Environment variables that override the file.
const (
	EnvRedisURL = "MULTITAB_REDIS_URL"
	EnvScope    = "MULTITAB_SCOPE"
)

// Defaults applied by Validate.
const (
	DefaultScope    = "default"
	DefaultDriver   = DriverRedis
	DefaultRedisURL = "redis://localhost:6379"
	DefaultPath     = "multitab.db"
)

// Backend drivers.
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

var scopePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Config represents the top-level multitab.yml configuration
type Config struct {
	Version string        `yaml:"version"`
	Scope   string        `yaml:"scope"`
	Backend BackendConfig `yaml:"backend"`
	Sync    SyncConfig    `yaml:"sync"`
	Hooks   HooksConfig   `yaml:"hooks,omitempty"`
	Log     LogConfig     `yaml:"log"`
}

// BackendConfig selects and configures the shared store
type BackendConfig struct {
	Driver   string `yaml:"driver"`
	RedisURL string `yaml:"redis_url,omitempty"`
	Path     string `yaml:"path,omitempty"` // sqlite only
}

// SyncConfig mirrors multitab.Options
type SyncConfig struct {
	Key                   string   `yaml:"key"`
	StatesPaths           []string `yaml:"states_paths"`
	SaveStoreIndividually bool     `yaml:"save_store_individually"`
}

// HooksConfig holds expressions compiled by the hooks package
type HooksConfig struct {
	BeforeSave    string `yaml:"before_save,omitempty"`
	BeforeReplace string `yaml:"before_replace,omitempty"`
}

// LogConfig configures the logging package
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // auto, text or json
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	c := &Config{Version: "1.0"}
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return c
}

// Validate performs strict validation on the configuration and fills in defaults
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if !scopePattern.MatchString(c.Scope) {
		return fmt.Errorf("invalid scope '%s': must contain only letters, digits, '-' and '_'", c.Scope)
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// Validate checks the backend section and applies its defaults
func (b *BackendConfig) Validate() error {
	if b.Driver == "" {
		b.Driver = DefaultDriver
	}

	switch b.Driver {
	case DriverRedis:
		if b.RedisURL == "" {
			b.RedisURL = DefaultRedisURL
		}
		if _, err := redis.ParseURL(b.RedisURL); err != nil {
			return fmt.Errorf("backend.redis_url is invalid: %w", err)
		}
	case DriverSQLite:
		if b.Path == "" {
			b.Path = DefaultPath
		}
	default:
		return fmt.Errorf("invalid backend.driver: %s (must be '%s' or '%s')", b.Driver, DriverRedis, DriverSQLite)
	}
	return nil
}

// RedisOptions parses the redis URL.
func (b *BackendConfig) RedisOptions() (*redis.Options, error) {
	return redis.ParseURL(b.RedisURL)
}

// Validate checks the sync section and applies its defaults
func (s *SyncConfig) Validate() error {
	if s.Key == "" {
		s.Key = multitab.DefaultKey
	}
	if s.StatesPaths == nil {
		s.StatesPaths = []string{}
	}
	for _, sel := range s.StatesPaths {
		if _, err := statetree.ParsePath(sel); err != nil {
			return fmt.Errorf("invalid sync.states_paths entry: %w", err)
		}
	}
	return nil
}

// Validate checks the log section and applies its defaults
func (l *LogConfig) Validate() error {
	if l.Level == "" {
		l.Level = "info"
	}
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level: %s (must be 'debug', 'info', 'warn', or 'error')", l.Level)
	}

	if l.Format == "" {
		l.Format = "auto"
	}
	switch l.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("invalid log.format: %s (must be 'auto', 'text', or 'json')", l.Format)
	}
	return nil
}

// ApplyEnv overrides file values with MULTITAB_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Backend.RedisURL = v
	}
	if v := os.Getenv(EnvScope); v != "" {
		c.Scope = v
	}
}

// Load reads multitab.yml from the specified path, applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults
// (with environment overrides applied).
func LoadOrDefault(path string) (*Config, error) {
	config, err := Load(path)
	if err == nil {
		return config, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	config = &Config{Version: "1.0"}
	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Options converts the sync section to plugin options. Hooks are left unset.
func (c *Config) Options() multitab.Options {
	return multitab.Options{
		Key:                   c.Sync.Key,
		StatesPaths:           append([]string(nil), c.Sync.StatesPaths...),
		SaveStoreIndividually: c.Sync.SaveStoreIndividually,
	}
}
