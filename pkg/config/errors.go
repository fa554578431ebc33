package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrInvalidTimeout is returned when the API timeout is <= 0.
	ErrInvalidTimeout = errors.New("invalid klaviyo timeout: must be > 0")

	// ErrInvalidTimezone is returned when the report timezone cannot be loaded.
	ErrInvalidTimezone = errors.New("invalid report timezone")

	// ErrInvalidPacingDelay is returned when the pacing delay is <= 0.
	ErrInvalidPacingDelay = errors.New("invalid pacing delay: must be > 0")

	// ErrInvalidPageSize is returned when the page size is outside [1, 10000].
	ErrInvalidPageSize = errors.New("invalid page size: must be between 1 and 10000")

	// ErrNoCacheDBPath is returned when the cache is enabled without a path.
	ErrNoCacheDBPath = errors.New("cache enabled but no db_path specified")

	// ErrInvalidCacheTTL is returned when the cache TTL is negative.
	ErrInvalidCacheTTL = errors.New("invalid cache ttl: must be >= 0")

	// ErrInvalidDisplayFormat is returned when the display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, simple, csv, json, or sheets")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
