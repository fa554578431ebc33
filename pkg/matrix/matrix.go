// Package matrix turns sparse grouped counters into dense series.
//
// The date axis is generated from the range and interval rather than taken
// from the counter, so buckets without events appear as explicit zeros.
package matrix

import (
	"time"

	"github.com/0xmhha/klaviyo-report/pkg/aggregator"
	"github.com/0xmhha/klaviyo-report/pkg/interval"
	"github.com/0xmhha/klaviyo-report/pkg/series"
)

// Config describes the axis to lay a counter out on.
type Config struct {
	From time.Time

	To time.Time

	Interval interval.Interval

	// Location defaults to UTC.
	Location *time.Location
}

// Result holds both layouts of one counter.
type Result struct {
	// Total is a single ungrouped row.
	Total series.Series `json:"total"`

	// Partitioned has one row per group.
	Partitioned series.Series `json:"partitioned"`
}

// Format lays counter out as both a total and a partitioned series.
func Format(counter *aggregator.Counter, cfg Config) (Result, error) {
	total, err := Total(counter, cfg)
	if err != nil {
		return Result{}, err
	}
	partitioned, err := Partitioned(counter, cfg)
	if err != nil {
		return Result{}, err
	}
	return Result{Total: total, Partitioned: partitioned}, nil
}

// Total lays out counter's ungrouped buckets as one row with dimensions
// [""] and a single count measurement.
func Total(counter *aggregator.Counter, cfg Config) (series.Series, error) {
	dates, err := axis(cfg)
	if err != nil {
		return series.Series{}, err
	}

	var buckets *aggregator.Buckets
	if counter != nil {
		buckets = counter.Total
	}

	return series.Series{
		Dates: dates,
		Rows:  []series.Row{dense([]string{""}, buckets, dates)},
	}, nil
}

// Partitioned lays out one row per group of counter, dimensions [groupID],
// in the order groups were first seen.
func Partitioned(counter *aggregator.Counter, cfg Config) (series.Series, error) {
	dates, err := axis(cfg)
	if err != nil {
		return series.Series{}, err
	}

	out := series.Series{Dates: dates, Rows: []series.Row{}}
	if counter == nil {
		return out, nil
	}
	for _, id := range counter.Groups() {
		buckets, _ := counter.Lookup(id)
		out.Rows = append(out.Rows, dense([]string{id}, buckets, dates))
	}
	return out, nil
}

func axis(cfg Config) ([]string, error) {
	starts, err := cfg.Interval.Axis(cfg.From, cfg.To, cfg.Location)
	if err != nil {
		return nil, err
	}
	dates := make([]string, len(starts))
	for i, t := range starts {
		dates[i] = interval.Key(t)
	}
	return dates, nil
}

func dense(dims []string, buckets *aggregator.Buckets, dates []string) series.Row {
	values := make([]float64, len(dates))
	for i, d := range dates {
		values[i] = buckets.Get(d)
	}
	return series.Row{
		Dimensions:   dims,
		Measurements: map[series.Measurement][]float64{series.Count: values},
	}
}
