package config

import (
	"os"
	"path/filepath"
)

const (
	appDir = "klaviyo-report"

	maxPageSize = 10000

	// LocalConfigFile is looked up in the working directory first.
	LocalConfigFile = "klaviyo-report.yaml"
)

// defaultDBPath returns the default cache database path.
//
// Returns: ~/.config/klaviyo-report/cache.db.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./cache.db"
	}

	return filepath.Join(homeDir, ".config", appDir, "cache.db")
}

// DefaultPath returns the default configuration file path.
//
// Returns: ~/.config/klaviyo-report/config.yaml.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", appDir, "config.yaml")
}
