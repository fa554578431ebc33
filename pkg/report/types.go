// Package report runs the report operations built on top of the Klaviyo
// client: metric values over arbitrary ranges and intervals, flow and
// campaign send counts, and event listings, plus the table helpers that
// turn their results into spreadsheet grids.
//
// Example usage:
//
//	svc, err := report.New(report.Config{Location: loc}, client, log, nil)
//	if err != nil {
//	    return err
//	}
//
//	values, err := svc.BiggerIntervalValues(ctx, report.Query{
//	    Metric:   catalog.PlacedOrder,
//	    From:     from,
//	    To:       to,
//	    Interval: interval.Year,
//	})
//	if err != nil {
//	    return err
//	}
//
//	grid, err := report.BuildTables(values, from, loc, interval.Year)
package report

import (
	"time"

	"github.com/0xmhha/klaviyo-report/pkg/aggregator"
	"github.com/0xmhha/klaviyo-report/pkg/catalog"
	"github.com/0xmhha/klaviyo-report/pkg/interval"
	"github.com/0xmhha/klaviyo-report/pkg/klaviyo"
	"github.com/0xmhha/klaviyo-report/pkg/matrix"
)

// DefaultPacingDelay separates consecutive flow-message fetches.
const DefaultPacingDelay = 950 * time.Millisecond

// Config contains report service configuration.
type Config struct {
	// Location is the report timezone. Buckets start at local midnight
	// and its name is sent as the aggregate timezone.
	//
	// Default: UTC
	Location *time.Location

	// PacingDelay is the pause between two flow-action message fetches.
	//
	// Default: 950ms
	PacingDelay time.Duration
}

// Query selects the values of one metric.
type Query struct {
	Metric catalog.Metric

	// From and To bound the events, [From, To).
	From time.Time

	To time.Time

	Interval interval.Interval

	// Integration restricts the metric lookup to one integration.
	Integration string

	// By lists the dimensions to partition by.
	By []string

	// Filters are applied in addition to the datetime range.
	Filters []klaviyo.Filter

	// Catalog is searched for the metric id. When nil the catalog is
	// fetched from the API.
	Catalog []catalog.Entry
}

// Range is the bucketing of event-derived aggregates. From and To are
// both inclusive.
type Range struct {
	From time.Time

	To time.Time

	Interval interval.Interval

	// Location defaults to UTC.
	Location *time.Location
}

func (r Range) aggregatorConfig() aggregator.Config {
	return aggregator.Config{From: r.From, To: r.To, Interval: r.Interval, Location: r.Location}
}

func (r Range) matrixConfig() matrix.Config {
	return matrix.Config{From: r.From, To: r.To, Interval: r.Interval, Location: r.Location}
}
