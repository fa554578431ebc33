// Package series provides the canonical dense time-series representation
// shared by every report stage, together with the operations that keep it
// dense: cross-window merging and coarse-interval downsampling.
//
// A Series holds one date axis and any number of dimension rows. Every
// measurement sequence of every row has exactly one value per date.
//
// Example usage:
//
//	var acc series.Series
//	for _, resp := range responses {
//	    next := resp.Series()
//	    acc, err = series.Merge(acc, next)
//	    if err != nil {
//	        return err
//	    }
//	}
//	yearly, err := series.ToYearly(acc, loc)
package series

import "slices"

// Measurement is a named numeric signal tracked per bucket.
type Measurement string

const (
	// Count is the number of events.
	Count Measurement = "count"

	// Unique is the number of distinct customers.
	Unique Measurement = "unique"

	// SumValue is the summed event value (revenue).
	SumValue Measurement = "sum_value"
)

// Order is the fixed order in which measurements are laid out in tables.
var Order = []Measurement{Count, SumValue, Unique}

// Label returns the display label of m.
func (m Measurement) Label() string {
	switch m {
	case Count:
		return "Count events"
	case Unique:
		return "Unique customers"
	case SumValue:
		return "Sum Value"
	default:
		return string(m)
	}
}

// Valid reports whether m is a known measurement.
func (m Measurement) Valid() bool {
	switch m {
	case Count, Unique, SumValue:
		return true
	default:
		return false
	}
}

// Series is a dense, date-aligned set of dimension rows.
type Series struct {
	// Dates holds one bucket key per column, strictly increasing.
	// A lifetime series has the single date "lifetime".
	Dates []string `json:"dates"`

	// Rows holds the dimension rows in first-seen order.
	Rows []Row `json:"data"`
}

// Row is one dimension combination and its measurement sequences.
type Row struct {
	// Dimensions is the composite grouping key. The ungrouped row is [""].
	Dimensions []string `json:"dimensions"`

	// Measurements maps each measurement to one value per date.
	Measurements map[Measurement][]float64 `json:"measurements"`
}

// IsEmpty reports whether s has neither dates nor rows.
func (s Series) IsEmpty() bool {
	return len(s.Dates) == 0 && len(s.Rows) == 0
}

// Find returns the index of the row whose dimensions equal dims, or -1.
func (s Series) Find(dims []string) int {
	for i, row := range s.Rows {
		if sameDimensions(row.Dimensions, dims) {
			return i
		}
	}
	return -1
}

// Kinds returns the measurements present on r in table order, followed by
// any unknown kinds in lexical order.
func (r Row) Kinds() []Measurement {
	kinds := make([]Measurement, 0, len(r.Measurements))
	for _, m := range Order {
		if _, ok := r.Measurements[m]; ok {
			kinds = append(kinds, m)
		}
	}
	var extra []Measurement
	for m := range r.Measurements {
		if !m.Valid() {
			extra = append(extra, m)
		}
	}
	slices.Sort(extra)
	return append(kinds, extra...)
}

// Clone returns a deep copy of s.
func (s Series) Clone() Series {
	out := Series{
		Dates: append([]string(nil), s.Dates...),
		Rows:  make([]Row, len(s.Rows)),
	}
	for i, row := range s.Rows {
		out.Rows[i] = row.Clone()
	}
	return out
}

// Clone returns a deep copy of r.
func (r Row) Clone() Row {
	out := Row{
		Dimensions:   append([]string(nil), r.Dimensions...),
		Measurements: make(map[Measurement][]float64, len(r.Measurements)),
	}
	for m, values := range r.Measurements {
		out.Measurements[m] = append([]float64(nil), values...)
	}
	return out
}

// sameDimensions compares two dimension keys element-wise.
func sameDimensions(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
