package aggregator

import "errors"

var (
	// ErrUnsupportedInterval is returned for intervals without fixed buckets.
	ErrUnsupportedInterval = errors.New("unsupported aggregation interval")
)
