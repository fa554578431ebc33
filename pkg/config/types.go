// Package config provides configuration management for klaviyo-report.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	loc, err := cfg.Location()
package config

import (
	"strings"
	"time"

	// Embedded zone database so Location works without system tzdata.
	_ "time/tzdata"
)

// Config represents the complete application configuration.
//
// Invariants:
// - Klaviyo.Timeout must be > 0
// - Report.Timezone must name a loadable location
// - Report.PacingDelay must be > 0
// - Report.PageSize must be in [1, 10000]
// - Cache.DBPath must be set when the cache is enabled
// - Cache.TTL must be >= 0.
type Config struct {
	// Klaviyo API settings
	Klaviyo KlaviyoConfig `yaml:"klaviyo"`

	// Report settings
	Report ReportConfig `yaml:"report"`

	// Response cache settings
	Cache CacheConfig `yaml:"cache"`

	// HTTP server settings
	Server ServerConfig `yaml:"server"`

	// Display settings
	Display DisplayConfig `yaml:"display"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// KlaviyoConfig contains API client settings.
type KlaviyoConfig struct {
	// Private API key. An empty key only fails once a client is built.
	APIKey string `yaml:"api_key"`

	// API root URL
	BaseURL string `yaml:"base_url"`

	// Revision header value
	Revision string `yaml:"revision"`

	// Per-request timeout
	Timeout time.Duration `yaml:"timeout"`
}

// ReportConfig contains report settings.
type ReportConfig struct {
	// IANA timezone buckets are computed in
	Timezone string `yaml:"timezone"`

	// Pause between flow-message requests
	PacingDelay time.Duration `yaml:"pacing_delay"`

	// Metric-aggregates page size
	PageSize int `yaml:"page_size"`
}

// CacheConfig contains response cache settings.
type CacheConfig struct {
	// Enable the bbolt response cache
	Enabled bool `yaml:"enabled"`

	// Path to BoltDB database file
	DBPath string `yaml:"db_path"`

	// How long cached responses stay valid, 0 for never
	TTL time.Duration `yaml:"ttl"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Listen address
	Listen string `yaml:"listen"`
}

// DisplayConfig contains display settings.
type DisplayConfig struct {
	// Default output format; empty picks table on a terminal and csv
	// otherwise
	Format string `yaml:"format"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Returns an error if any invariant is violated:
//   - Invalid durations
//   - Unknown timezone
//   - Page size out of range
//   - Cache enabled without a database path
//   - Invalid display format
//   - Invalid log level or format
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if c.Klaviyo.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Report.PacingDelay <= 0 {
		return ErrInvalidPacingDelay
	}
	if c.Report.PageSize < 1 || c.Report.PageSize > maxPageSize {
		return ErrInvalidPageSize
	}

	if c.Cache.Enabled && c.Cache.DBPath == "" {
		return ErrNoCacheDBPath
	}
	if c.Cache.TTL < 0 {
		return ErrInvalidCacheTTL
	}

	validFormats := map[string]bool{
		"":       true,
		"table":  true,
		"simple": true,
		"csv":    true,
		"json":   true,
		"sheets": true,
	}
	if !validFormats[c.Display.Format] {
		return ErrInvalidDisplayFormat
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Location loads the report timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return nil, ErrInvalidTimezone
	}
	return loc, nil
}

// Redacted returns a copy of c whose API key is masked for display.
func (c *Config) Redacted() *Config {
	out := *c
	if key := c.Klaviyo.APIKey; key != "" {
		visible := 4
		if len(key) <= 2*visible {
			visible = 0
		}
		out.Klaviyo.APIKey = key[:visible] + strings.Repeat("*", len(key)-visible)
	}
	return &out
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		Klaviyo: KlaviyoConfig{
			BaseURL:  "https://a.klaviyo.com/api/",
			Revision: "2023-01-24",
			Timeout:  60 * time.Second,
		},
		Report: ReportConfig{
			Timezone:    "UTC",
			PacingDelay: 950 * time.Millisecond,
			PageSize:    maxPageSize,
		},
		Cache: CacheConfig{
			Enabled: false,
			DBPath:  defaultDBPath(),
			TTL:     time.Hour,
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
