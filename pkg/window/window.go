// Package window splits report ranges into windows the analytics API
// accepts in a single call.
//
// Month-granularity requests spanning more than about a year are rejected
// upstream, so coarse intervals are fetched one year at a time and stitched
// back together by the series package.
package window

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xmhha/klaviyo-report/pkg/interval"
)

// ErrInvalidRange is returned when from is after to.
var ErrInvalidRange = errors.New("invalid range: from is after to")

// Window is a half-open range [From, To) dispatched as one fetch.
type Window struct {
	From time.Time

	To time.Time

	// Interval is the granularity to request for this window.
	Interval interval.Interval
}

// String implements fmt.Stringer.
func (w Window) String() string {
	return fmt.Sprintf("[%s, %s) %s", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339), w.Interval)
}

// Split divides [from, to) into fetchable windows for requested.
//
// Fetchable intervals produce a single window. Year and lifetime produce
// consecutive yearly windows fetched by month; window i starts at
// from + i years and ends one second before the next one starts, or at to.
//
// An empty range returns no windows and no error.
func Split(from, to time.Time, requested interval.Interval) ([]Window, error) {
	if !requested.Valid() {
		return nil, fmt.Errorf("%w: %q", interval.ErrUnknownInterval, requested)
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if from.Equal(to) {
		return nil, nil
	}

	if requested.Fetchable() {
		return []Window{{From: from, To: to, Interval: requested}}, nil
	}

	fetch := requested.FetchInterval()

	var windows []Window
	for i := 0; ; i++ {
		start := from.AddDate(i, 0, 0)
		if !start.Before(to) {
			break
		}

		end := from.AddDate(i+1, 0, 0).Add(-time.Second)
		if !end.Before(to) {
			end = to
		}

		windows = append(windows, Window{From: start, To: end, Interval: fetch})
		if end.Equal(to) {
			break
		}
	}

	return windows, nil
}
