// Package table pivots dense series into spreadsheet grids.
//
// A grid has two header rows followed by one row per date:
//
//	Dimensions | email / flow-1 |                  | email / flow-2
//	Dates      | Count events   | Unique customers | Count events
//	2024-01-01 | 12             | 9                | 4
//
// Grids can be joined side by side, and every cell of a joined grid is
// typed as a number, a formula or a string for spreadsheet export.
package table

import (
	"strconv"
	"time"

	"github.com/0xmhha/klaviyo-report/pkg/interval"
)

// Kind is the spreadsheet type of a cell.
type Kind int

const (
	// String is literal text.
	String Kind = iota

	// Number is a numeric literal.
	Number

	// Formula is text starting with "=".
	Formula
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case Formula:
		return "formula"
	default:
		return "string"
	}
}

// Cell is one grid value.
type Cell struct {
	Kind Kind

	// Num holds the value of a Number cell.
	Num float64

	// Str holds the text of a String or Formula cell.
	Str string
}

// Num returns a numeric cell.
func Num(v float64) Cell {
	return Cell{Kind: Number, Num: v}
}

// Text returns a string cell. Use Classify to detect formulas and numbers.
func Text(s string) Cell {
	return Cell{Kind: String, Str: s}
}

// Blank returns an empty string cell.
func Blank() Cell {
	return Cell{Kind: String}
}

// String returns the cell as text; numbers use the shortest exact form.
func (c Cell) String() string {
	if c.Kind == Number {
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	}
	return c.Str
}

// Grid is a rectangular table of cells.
type Grid [][]Cell

// Strings returns the grid as text.
func (g Grid) Strings() [][]string {
	out := make([][]string, len(g))
	for i, row := range g {
		out[i] = make([]string, len(row))
		for j, c := range row {
			out[i][j] = c.String()
		}
	}
	return out
}

// Width returns the length of the longest row.
func (g Grid) Width() int {
	w := 0
	for _, row := range g {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// Labeled is a grid paired with an optional header label used by Join.
type Labeled struct {
	Grid Grid

	// Header, if set, replaces the grid's dimension labels in the joined
	// header row.
	Header *string
}

// WithHeader returns g labeled by header.
func WithHeader(g Grid, header string) Labeled {
	return Labeled{Grid: g, Header: &header}
}

// Config contains pivot configuration.
type Config struct {
	// From is the start of the reported range. A leading bucket that
	// starts before From's bucket is folded into the next one.
	From time.Time

	// Location is the timezone dates are rendered in.
	//
	// Default: UTC.
	Location *time.Location

	// Interval is the bucket granularity of the series.
	//
	// Default: inferred from the first two dates.
	Interval interval.Interval
}

const (
	dimensionsHeader = "Dimensions"
	datesHeader      = "Dates"
	dimensionSep     = " / "
)
