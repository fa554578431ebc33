// Package interval provides the bucket granularities used across reports.
//
// Every bucketed interval has a timezone-aware start-of normalization and a
// fixed step. Year and lifetime cannot be fetched from the analytics API
// directly; they are synthesized from month data.
//
// Example usage:
//
//	loc, _ := time.LoadLocation("America/New_York")
//	start := interval.Month.StartOf(t, loc)
//	key := interval.Key(start) // "2024-01-01T00:00:00-05:00"
//	axis, err := interval.Month.Axis(from, to, loc)
package interval

import "time"

// Interval is a bucket granularity.
type Interval string

const (
	// Hour buckets by clock hour.
	Hour Interval = "hour"

	// Day buckets by calendar day.
	Day Interval = "day"

	// Week buckets by ISO week, starting on Monday.
	Week Interval = "week"

	// Month buckets by calendar month.
	Month Interval = "month"

	// Year buckets by calendar year.
	Year Interval = "year"

	// Lifetime collapses a whole range into one bucket.
	Lifetime Interval = "lifetime"
)

// KeyLayout is the layout of bucket keys and rendered dates.
const KeyLayout = "2006-01-02T15:04:05-07:00"

// LifetimeBucket is the single date label of a lifetime series.
const LifetimeBucket = "lifetime"

// All lists every interval in ascending granularity.
var All = []Interval{Hour, Day, Week, Month, Year, Lifetime}

// Key formats a bucket start as an ISO-8601 bucket key.
//
// Keys keep the offset of t's location, so two bucket starts produced in
// the same location compare equal as strings.
func Key(t time.Time) string {
	return t.Format(KeyLayout)
}

// ParseKey parses a bucket key or any RFC 3339 timestamp.
func ParseKey(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
