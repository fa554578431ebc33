package series

import (
	"fmt"
	"time"

	"github.com/0xmhha/klaviyo-report/pkg/interval"
)

// ToYearly re-buckets s into calendar years in loc.
//
// Each date is mapped to the start of its year; year keys keep the order in
// which they are first seen. Values that fall into the same year are summed
// per row and measurement. A nil loc means UTC.
func ToYearly(s Series, loc *time.Location) (Series, error) {
	keys := make([]string, len(s.Dates))
	position := make(map[string]int, len(s.Dates))
	out := Series{Dates: []string{}, Rows: make([]Row, 0, len(s.Rows))}

	for i, date := range s.Dates {
		t, err := interval.ParseKey(date)
		if err != nil {
			return Series{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, date, err)
		}
		key := interval.Year.BucketKey(t, loc)
		if _, ok := position[key]; !ok {
			position[key] = len(out.Dates)
			out.Dates = append(out.Dates, key)
		}
		keys[i] = key
	}

	for _, row := range s.Rows {
		reduced := Row{
			Dimensions:   append([]string(nil), row.Dimensions...),
			Measurements: make(map[Measurement][]float64, len(row.Measurements)),
		}
		for m, values := range row.Measurements {
			if len(values) != len(s.Dates) {
				return Series{}, fmt.Errorf("%w: row %q measurement %s has %d values for %d dates",
					ErrDataShape, row.Dimensions, m, len(values), len(s.Dates))
			}
			sums := make([]accumulator, len(out.Dates))
			for i, v := range values {
				sums[position[keys[i]]].add(v)
			}
			reduced.Measurements[m] = make([]float64, len(sums))
			for i := range sums {
				reduced.Measurements[m][i] = sums[i].value()
			}
		}
		out.Rows = append(out.Rows, reduced)
	}

	return out, nil
}

// ToLifetime collapses every measurement of every row of s into a single
// value under the date "lifetime".
func ToLifetime(s Series) Series {
	out := Series{
		Dates: []string{interval.LifetimeBucket},
		Rows:  make([]Row, 0, len(s.Rows)),
	}
	for _, row := range s.Rows {
		reduced := Row{
			Dimensions:   append([]string(nil), row.Dimensions...),
			Measurements: make(map[Measurement][]float64, len(row.Measurements)),
		}
		for m, values := range row.Measurements {
			reduced.Measurements[m] = []float64{Sum(values)}
		}
		out.Rows = append(out.Rows, reduced)
	}
	return out
}

// Downsample reduces a month series to requested. Fetchable intervals are
// returned unchanged.
func Downsample(s Series, requested interval.Interval, loc *time.Location) (Series, error) {
	switch requested {
	case interval.Hour, interval.Day, interval.Week, interval.Month:
		return s, nil
	case interval.Year:
		return ToYearly(s, loc)
	case interval.Lifetime:
		return ToLifetime(s), nil
	default:
		return Series{}, fmt.Errorf("%w: %q", interval.ErrUnknownInterval, requested)
	}
}
