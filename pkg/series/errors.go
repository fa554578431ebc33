package series

import "errors"

var (
	// ErrDataShape is returned when a measurement sequence does not have
	// exactly one value per date.
	ErrDataShape = errors.New("series data shape mismatch")

	// ErrInvalidDate is returned when a date cannot be parsed as a bucket key.
	ErrInvalidDate = errors.New("invalid series date")
)
