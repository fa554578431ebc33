// Package cache stores raw API responses with an expiry.
//
// Aggregate windows of closed periods never change, so repeated reports over
// the same range can be served from disk instead of the API. Two stores are
// provided: a BoltDB-backed store for the CLI and server, and an in-memory
// store for tests.
//
// Example usage:
//
//	store, err := cache.Open(cache.Config{DBPath: "~/.config/klaviyo-report/cache.db"}, log)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	if err := store.Put("aggregate/...", body, time.Hour); err != nil {
//	    return err
//	}
//	body, ok, err := store.Get("aggregate/...")
package cache

import "time"

// Store is a key-value store with per-entry expiry.
type Store interface {
	// Get returns the value at key.
	//
	// Returns:
	//   - value and true if present and not expired
	//   - false if absent or expired
	//   - error if the store cannot be read
	Get(key string) ([]byte, bool, error)

	// Put stores value at key for ttl. A ttl <= 0 never expires.
	Put(key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Purge removes every expired entry and returns how many were removed.
	Purge() (int, error)

	// Close releases the store.
	Close() error
}

// Config contains cache store configuration.
type Config struct {
	// DBPath is the BoltDB file. "~" expands to the home directory.
	DBPath string

	// Timeout is the time to wait for the database file lock.
	//
	// Default: 1s.
	Timeout time.Duration
}
