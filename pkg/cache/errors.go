package cache

import "errors"

// Common errors returned by cache stores.
var (
	// ErrClosed is returned when a closed store is used.
	ErrClosed = errors.New("cache store is closed")

	// ErrCorruptEntry is returned when a stored entry cannot be decoded.
	ErrCorruptEntry = errors.New("corrupt cache entry")
)
