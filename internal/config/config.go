// Package config loads phonecheck settings from defaults, a YAML file, a .env
// file and PHONECHECK_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rshade/phonecheck/internal/engine/batch"
	"github.com/rshade/phonecheck/internal/engine/cache"
	"github.com/rshade/phonecheck/internal/logging"
	"github.com/rshade/phonecheck/internal/lookup"
	"github.com/rshade/phonecheck/internal/offline"
)

// DefaultAPIKeyEnv is the environment variable holding the provider API key.
const DefaultAPIKeyEnv = "PHONE_VALIDATOR_API_KEY"

// Sentinel errors wrapped by ConfigError.
var (
	ErrMissingAPIKey = errors.New("API key environment variable is not set")
	ErrMissingPath   = errors.New("path is required")
	ErrInvalidValue  = errors.New("invalid value")
	ErrUnreadable    = errors.New("file is not readable")
)

// ConfigError reports a configuration problem detected before any processing starts.
//
//nolint:revive // ConfigError reads better than Error at call sites outside the package.
type ConfigError struct {
	// Field names the setting, flag, file or variable at fault.
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config holds all phonecheck settings.
type Config struct {
	Lookup  LookupConfig  `yaml:"lookup"`
	Offline OfflineConfig `yaml:"offline"`
	Logging LoggingConfig `yaml:"logging"`
}

// LookupConfig configures online validation.
type LookupConfig struct {
	// Endpoint is the provider's phone search URL.
	Endpoint string `yaml:"endpoint"`

	// RateLimit is the provider cap in requests per second.
	RateLimit int `yaml:"rate_limit"`

	// WindowSize is the number of lookups issued concurrently per window.
	WindowSize int `yaml:"window_size"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	// APIKeyEnv names the environment variable carrying the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// Cache configures reuse of earlier lookup results.
	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig configures the on-disk lookup cache. Disabled by default.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl"`
}

// OfflineConfig configures offline validation.
type OfflineConfig struct {
	// Region is the ISO 3166 region assumed for numbers without a country code.
	Region string `yaml:"region"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Lookup: LookupConfig{
			Endpoint:   lookup.DefaultEndpoint,
			RateLimit:  batch.DefaultRate,
			WindowSize: batch.DefaultWindowSize,
			Timeout:    lookup.DefaultTimeout,
			APIKeyEnv:  DefaultAPIKeyEnv,
			Cache: CacheConfig{
				TTL: cache.DefaultTTL,
			},
		},
		Offline: OfflineConfig{
			Region: offline.DefaultRegion,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// Validate checks every setting and returns the first problem as a *ConfigError.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Lookup.Endpoint) == "":
		return invalid("lookup.endpoint", "must not be empty")
	case c.Lookup.RateLimit < 1:
		return invalid("lookup.rate_limit", fmt.Sprintf("must be at least 1, got %d", c.Lookup.RateLimit))
	case c.Lookup.WindowSize < batch.MinWindowSize || c.Lookup.WindowSize > batch.MaxWindowSize:
		return invalid("lookup.window_size", fmt.Sprintf("must be between %d and %d, got %d",
			batch.MinWindowSize, batch.MaxWindowSize, c.Lookup.WindowSize))
	case c.Lookup.Timeout <= 0:
		return invalid("lookup.timeout", fmt.Sprintf("must be positive, got %s", c.Lookup.Timeout))
	case strings.TrimSpace(c.Lookup.APIKeyEnv) == "":
		return invalid("lookup.api_key_env", "must not be empty")
	case c.Lookup.Cache.Enabled && strings.TrimSpace(c.Lookup.Cache.Dir) == "":
		return invalid("lookup.cache.dir", "must not be empty when the cache is enabled")
	case c.Lookup.Cache.Enabled && c.Lookup.Cache.TTL <= 0:
		return invalid("lookup.cache.ttl", fmt.Sprintf("must be positive, got %s", c.Lookup.Cache.TTL))
	case strings.TrimSpace(c.Offline.Region) == "":
		return invalid("offline.region", "must not be empty")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		return invalid("logging.format", fmt.Sprintf("must be %q or %q, got %q",
			logging.FormatConsole, logging.FormatJSON, c.Logging.Format))
	}

	return nil
}

// APIKey reads the provider API key from the configured environment variable.
// A missing or blank value is a *ConfigError wrapping ErrMissingAPIKey.
func (c *Config) APIKey(lookupEnv func(string) (string, bool)) (string, error) {
	name := c.Lookup.APIKeyEnv
	value, ok := lookupEnv(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", &ConfigError{Field: name, Err: ErrMissingAPIKey}
	}
	return strings.TrimSpace(value), nil
}

// ToLoggingConfig converts the logging section for use with internal/logging.
func (lc LoggingConfig) ToLoggingConfig() logging.Config {
	return logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		File:   lc.File,
	}
}

func invalid(field, msg string) error {
	return &ConfigError{Field: field, Err: fmt.Errorf("%w: %s", ErrInvalidValue, msg)}
}
