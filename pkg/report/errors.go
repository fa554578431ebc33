package report

import (
	"errors"

	"github.com/0xmhha/klaviyo-report/pkg/klaviyo"
)

var (
	// ErrMissingAPIKey is returned when no API client is configured.
	ErrMissingAPIKey = klaviyo.ErrMissingAPIKey

	// ErrUnsupportedMetric is returned when events are requested for a
	// metric that has no event listing.
	ErrUnsupportedMetric = errors.New("event listing not supported for metric")

	// ErrUnfetchableInterval is returned by Values for year and lifetime,
	// which only BiggerIntervalValues can synthesize.
	ErrUnfetchableInterval = errors.New("interval cannot be fetched directly")
)
