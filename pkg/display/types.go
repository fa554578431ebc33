// Package display renders report grids and listings.
//
// It supports multiple output formats: an aligned text table, tab-separated
// text, CSV, a JSON grid, and Google Sheets rows whose cells carry a
// userEnteredValue of the matching type.
package display

import (
	"errors"
	"io"

	"github.com/0xmhha/klaviyo-report/pkg/table"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays grids as an aligned text table.
	FormatTable Format = "table"

	// FormatSimple displays grids as tab-separated text.
	FormatSimple Format = "simple"

	// FormatCSV displays grids as CSV.
	FormatCSV Format = "csv"

	// FormatJSON displays grids as a JSON array of rows.
	FormatJSON Format = "json"

	// FormatSheets displays grids as Google Sheets row data.
	FormatSheets Format = "sheets"
)

// Formats lists every supported format.
var Formats = []Format{FormatTable, FormatSimple, FormatCSV, FormatJSON, FormatSheets}

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown output format")

// Formatter renders grids and listings.
type Formatter interface {
	// FormatGrid renders a report grid.
	//
	// Parameters:
	//   - w: Output writer
	//   - g: Grid to render; row 0 and 1 are the header rows
	//
	// Returns error if writing fails.
	FormatGrid(w io.Writer, g table.Grid) error

	// FormatRecords renders a flat listing such as the metric catalog.
	//
	// Parameters:
	//   - w: Output writer
	//   - header: Column names
	//   - rows: One slice per record, aligned with header
	//
	// Returns error if writing fails.
	FormatRecords(w io.Writer, header []string, rows [][]string) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Title, if set, is written above text tables.
	Title string

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool
}
