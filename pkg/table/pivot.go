package table

import (
	"fmt"
	"strings"
	"time"

	"github.com/0xmhha/klaviyo-report/pkg/interval"
	"github.com/0xmhha/klaviyo-report/pkg/series"
)

// column is one measurement of one row laid out as a grid column.
type column struct {
	row  int
	kind series.Measurement
}

// ToGrid pivots s into a grid with one row per date.
//
// Each series row contributes one column per known measurement it carries,
// in count, sum_value, unique order. At a date index where a row has no
// value for any of its measurements, its columns are left blank; a single
// measurement missing at that index is written as 0.
func ToGrid(s series.Series, cfg Config) (Grid, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	s, err := carryLeadingBucket(s, cfg, loc)
	if err != nil {
		return nil, err
	}

	header := []Cell{Text(dimensionsHeader)}
	labels := []Cell{Text(datesHeader)}
	var columns []column
	spans := make([][]series.Measurement, len(s.Rows))

	for i, row := range s.Rows {
		for _, m := range row.Kinds() {
			if !m.Valid() {
				continue
			}
			if len(spans[i]) == 0 {
				header = append(header, Text(strings.Join(row.Dimensions, dimensionSep)))
			} else {
				header = append(header, Blank())
			}
			labels = append(labels, Text(m.Label()))
			spans[i] = append(spans[i], m)
			columns = append(columns, column{row: i, kind: m})
		}
	}

	grid := Grid{header, labels}
	for d, date := range s.Dates {
		label, err := dateLabel(date, loc)
		if err != nil {
			return nil, err
		}

		line := make([]Cell, 0, len(columns)+1)
		line = append(line, Text(label))
		for i, row := range s.Rows {
			if !present(row, spans[i], d) {
				for range spans[i] {
					line = append(line, Blank())
				}
				continue
			}
			for _, m := range spans[i] {
				values := row.Measurements[m]
				if d < len(values) {
					line = append(line, Num(values[d]))
				} else {
					line = append(line, Num(0))
				}
			}
		}
		grid = append(grid, line)
	}

	return grid, nil
}

// carryLeadingBucket drops a first bucket that starts before the bucket of
// cfg.From and adds its values to the following bucket.
func carryLeadingBucket(s series.Series, cfg Config, loc *time.Location) (series.Series, error) {
	if len(s.Dates) < 2 || s.Dates[0] == interval.LifetimeBucket || cfg.From.IsZero() {
		return s, nil
	}

	first, err := interval.ParseKey(s.Dates[0])
	if err != nil {
		return series.Series{}, fmt.Errorf("%w: %q: %v", series.ErrInvalidDate, s.Dates[0], err)
	}

	boundary := cfg.From
	iv := cfg.Interval
	if iv == "" {
		second, err := interval.ParseKey(s.Dates[1])
		if err != nil {
			return series.Series{}, fmt.Errorf("%w: %q: %v", series.ErrInvalidDate, s.Dates[1], err)
		}
		iv, _ = interval.Infer(first, second)
	}
	if iv.Bucketed() {
		boundary = iv.StartOf(cfg.From, loc)
	}

	if !first.Before(boundary) {
		return s, nil
	}

	out := s.Clone()
	out.Dates = out.Dates[1:]
	for _, row := range out.Rows {
		for m, values := range row.Measurements {
			if len(values) > len(out.Dates) {
				values[1] += values[0]
				row.Measurements[m] = values[1:]
			}
		}
	}
	return out, nil
}

func present(row series.Row, kinds []series.Measurement, d int) bool {
	for _, m := range kinds {
		if d < len(row.Measurements[m]) {
			return true
		}
	}
	return false
}

func dateLabel(date string, loc *time.Location) (string, error) {
	if date == interval.LifetimeBucket {
		return date, nil
	}
	t, err := interval.ParseKey(date)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", series.ErrInvalidDate, date, err)
	}
	return interval.Key(t.In(loc)), nil
}
