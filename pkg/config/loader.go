package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvAPIKey   = "KLAVIYO_API_KEY"
	EnvTimezone = "KLAVIYO_REPORT_TIMEZONE"
	EnvCacheDB  = "KLAVIYO_REPORT_CACHE_DB"
	EnvLogLevel = "KLAVIYO_REPORT_LOG_LEVEL"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile loads configuration from a specific file.
	LoadFromFile(path string) (*Config, error)

	// Path returns the file Load reads, or "" if none was found.
	Path() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, searches for config file in:
// 1. ./klaviyo-report.yaml (current directory)
// 2. ~/.config/klaviyo-report/config.yaml.
func NewLoader(configPath string) Loader {
	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	if configPath := l.Path(); configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// An explicit file must load; a discovered one may be skipped.
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		} else {
			cfg = l.mergeConfigs(cfg, fileCfg)
		}
	}

	cfg = l.applyEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &cfg, nil
}

// Path implements Loader.Path.
func (l *loader) Path() string {
	if l.configPath != "" {
		return l.configPath
	}
	return l.findConfigFile()
}

// findConfigFile searches for a config file in standard locations.
//
// Returns empty string if no config file is found.
func (l *loader) findConfigFile() string {
	candidates := []string{
		LocalConfigFile,
		DefaultPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// mergeConfigs merges file configuration into default configuration.
//
// File values override defaults, but only if they are non-zero.
func (l *loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	// Klaviyo
	if override.Klaviyo.APIKey != "" {
		result.Klaviyo.APIKey = override.Klaviyo.APIKey
	}
	if override.Klaviyo.BaseURL != "" {
		result.Klaviyo.BaseURL = override.Klaviyo.BaseURL
	}
	if override.Klaviyo.Revision != "" {
		result.Klaviyo.Revision = override.Klaviyo.Revision
	}
	if override.Klaviyo.Timeout > 0 {
		result.Klaviyo.Timeout = override.Klaviyo.Timeout
	}

	// Report
	if override.Report.Timezone != "" {
		result.Report.Timezone = override.Report.Timezone
	}
	if override.Report.PacingDelay > 0 {
		result.Report.PacingDelay = override.Report.PacingDelay
	}
	if override.Report.PageSize > 0 {
		result.Report.PageSize = override.Report.PageSize
	}

	// Cache. Enabled is a bool, so the file value always wins.
	result.Cache.Enabled = override.Cache.Enabled
	if override.Cache.DBPath != "" {
		result.Cache.DBPath = override.Cache.DBPath
	}
	if override.Cache.TTL != 0 {
		result.Cache.TTL = override.Cache.TTL
	}

	if override.Server.Listen != "" {
		result.Server.Listen = override.Server.Listen
	}

	if override.Display.Format != "" {
		result.Display.Format = override.Display.Format
	}

	// Logging
	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Output != "" {
		result.Logging.Output = override.Logging.Output
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	return &result
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - KLAVIYO_API_KEY: Private API key
//   - KLAVIYO_REPORT_TIMEZONE: Report timezone
//   - KLAVIYO_REPORT_CACHE_DB: Path to cache database file
//   - KLAVIYO_REPORT_LOG_LEVEL: Log level
func (l *loader) applyEnvVars(cfg *Config) *Config {
	result := *cfg

	if key := os.Getenv(EnvAPIKey); key != "" {
		result.Klaviyo.APIKey = strings.TrimSpace(key)
	}

	if tz := os.Getenv(EnvTimezone); tz != "" {
		result.Report.Timezone = tz
	}

	if dbPath := os.Getenv(EnvCacheDB); dbPath != "" {
		result.Cache.DBPath = dbPath
	}

	if logLevel := os.Getenv(EnvLogLevel); logLevel != "" {
		result.Logging.Level = strings.ToLower(logLevel)
	}

	return &result
}

// Load is a convenience function that creates a loader and loads configuration.
//
// Equivalent to:
//
//	loader := NewLoader("")
//	return loader.Load()
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
//
// Equivalent to:
//
//	loader := NewLoader(path)
//	return loader.Load()
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
