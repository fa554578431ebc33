package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/0xmhha/klaviyo-report/pkg/table"
)

// tableFormatter formats output as aligned text tables.
type tableFormatter struct {
	config Config
}

// FormatGrid implements Formatter.FormatGrid.
//
// The two header rows are separated from the body by a dashed line.
func (f *tableFormatter) FormatGrid(w io.Writer, g table.Grid) error {
	if err := writeHeader(w, f.config.Title, f.config.Compact); err != nil {
		return err
	}

	rows := g.Strings()
	headerRows := 2
	if len(rows) < headerRows {
		headerRows = len(rows)
	}
	return f.writeTable(w, rows[:headerRows], rows[headerRows:])
}

// FormatRecords implements Formatter.FormatRecords.
func (f *tableFormatter) FormatRecords(w io.Writer, header []string, rows [][]string) error {
	if err := writeHeader(w, f.config.Title, f.config.Compact); err != nil {
		return err
	}
	return f.writeTable(w, [][]string{header}, rows)
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header [][]string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths.
	var widths []int
	measure := func(row []string) {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}
	for _, row := range header {
		measure(row)
	}
	for _, row := range rows {
		measure(row)
	}

	for _, row := range header {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		separator := make([]string, len(widths))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row padded to display width. Trailing
// padding is trimmed.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(gap)
		}
		b.WriteString(runewidth.FillRight(cell, widths[i]))
	}

	_, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	return err
}
