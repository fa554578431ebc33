package interval

import "errors"

// Common errors returned by the interval package.
var (
	// ErrUnknownInterval is returned when an interval name is not recognized.
	ErrUnknownInterval = errors.New("unknown interval")

	// ErrNotBucketed is returned when a start-of or step is requested for lifetime.
	ErrNotBucketed = errors.New("interval has no fixed buckets")

	// ErrInvalidTime is returned when a range bound is neither RFC 3339 nor a date.
	ErrInvalidTime = errors.New("invalid time: want RFC 3339 or YYYY-MM-DD")
)
