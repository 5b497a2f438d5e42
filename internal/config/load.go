package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfigFile     = "PHONECHECK_CONFIG"
	EnvHome           = "PHONECHECK_HOME"
	EnvLookupEndpoint = "PHONECHECK_LOOKUP_ENDPOINT"
	EnvRateLimit      = "PHONECHECK_RATE_LIMIT"
	EnvWindowSize     = "PHONECHECK_WINDOW_SIZE"
	EnvLookupTimeout  = "PHONECHECK_LOOKUP_TIMEOUT"
	EnvRegion         = "PHONECHECK_REGION"
	EnvLogLevel       = "PHONECHECK_LOG_LEVEL"
	EnvLogFormat      = "PHONECHECK_LOG_FORMAT"
	EnvLogFile        = "PHONECHECK_LOG_FILE"
	EnvCacheEnabled   = "PHONECHECK_CACHE"
	EnvCacheDir       = "PHONECHECK_CACHE_DIR"
	EnvCacheTTL       = "PHONECHECK_CACHE_TTL"
)

// configFileName is the default config file inside the config directory.
const configFileName = "config.yaml"

// cacheDirName is the default cache directory inside the config directory.
const cacheDirName = "cache"

// defaultDotEnv is the .env file loaded when no explicit path is given.
const defaultDotEnv = ".env"

// Load builds a Config from defaults, the YAML file at path and the
// environment, then validates it.
//
// When path is empty, $PHONECHECK_CONFIG is used, then
// ~/.phonecheck/config.yaml; a missing default file is not an error, a
// missing explicit file is.
func Load(path string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := New()

	explicit := path != ""
	if !explicit {
		if envPath, ok := lookupEnv(EnvConfigFile); ok && envPath != "" {
			path, explicit = envPath, true
		} else if dir, err := ConfigDir(lookupEnv); err == nil {
			path = filepath.Join(dir, configFileName)
		}
	}

	if path != "" {
		if err := mergeYAML(cfg, path); err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				err = nil
			}
			if err != nil {
				return nil, err
			}
		}
	}

	if err := applyEnv(cfg, lookupEnv); err != nil {
		return nil, err
	}

	if cfg.Lookup.Cache.Dir == "" {
		if dir, err := ConfigDir(lookupEnv); err == nil {
			cfg.Lookup.Cache.Dir = filepath.Join(dir, cacheDirName)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigDir returns the phonecheck configuration directory,
// $PHONECHECK_HOME or ~/.phonecheck.
func ConfigDir(lookupEnv func(string) (string, bool)) (string, error) {
	if home, ok := lookupEnv(EnvHome); ok && home != "" {
		return home, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".phonecheck"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set.
// An empty path loads ./.env if it exists.
func LoadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultDotEnv
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &ConfigError{Field: path, Err: fmt.Errorf("%w: %w", ErrUnreadable, err)}
	}

	if err := godotenv.Load(path); err != nil {
		return &ConfigError{Field: path, Err: fmt.Errorf("%w: %w", ErrUnreadable, err)}
	}
	return nil
}

// mergeYAML overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func mergeYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Field: path, Err: fmt.Errorf("%w: %w", ErrUnreadable, err)}
	}

	if err = yaml.Unmarshal(data, cfg); err != nil {
		return &ConfigError{Field: path, Err: fmt.Errorf("%w: parsing YAML: %w", ErrInvalidValue, err)}
	}
	return nil
}

// applyEnv applies PHONECHECK_* overrides.
func applyEnv(cfg *Config, lookupEnv func(string) (string, bool)) error {
	setString := func(name string, target *string) {
		if v, ok := lookupEnv(name); ok && v != "" {
			*target = v
		}
	}
	setInt := func(name string, target *int) error {
		v, ok := lookupEnv(name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: name, Err: fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, v)}
		}
		*target = n
		return nil
	}

	setString(EnvLookupEndpoint, &cfg.Lookup.Endpoint)
	setString(EnvRegion, &cfg.Offline.Region)
	setString(EnvLogLevel, &cfg.Logging.Level)
	setString(EnvLogFormat, &cfg.Logging.Format)
	setString(EnvLogFile, &cfg.Logging.File)

	if err := setInt(EnvRateLimit, &cfg.Lookup.RateLimit); err != nil {
		return err
	}
	if err := setInt(EnvWindowSize, &cfg.Lookup.WindowSize); err != nil {
		return err
	}

	if err := setDuration(lookupEnv, EnvLookupTimeout, &cfg.Lookup.Timeout); err != nil {
		return err
	}

	setString(EnvCacheDir, &cfg.Lookup.Cache.Dir)
	if err := setDuration(lookupEnv, EnvCacheTTL, &cfg.Lookup.Cache.TTL); err != nil {
		return err
	}
	if v, ok := lookupEnv(EnvCacheEnabled); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigError{Field: EnvCacheEnabled, Err: fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, v)}
		}
		cfg.Lookup.Cache.Enabled = enabled
	}

	return nil
}

func setDuration(lookupEnv func(string) (string, bool), name string, target *time.Duration) error {
	v, ok := lookupEnv(name)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return &ConfigError{Field: name, Err: fmt.Errorf("%w: %q is not a duration", ErrInvalidValue, v)}
	}
	*target = d
	return nil
}
