package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/klaviyo-report/pkg/table"
)

// simpleFormatter formats output as tab-separated text.
type simpleFormatter struct{}

// FormatGrid implements Formatter.FormatGrid.
func (f *simpleFormatter) FormatGrid(w io.Writer, g table.Grid) error {
	return writeLines(w, g.Strings())
}

// FormatRecords implements Formatter.FormatRecords.
func (f *simpleFormatter) FormatRecords(w io.Writer, header []string, rows [][]string) error {
	return writeLines(w, append([][]string{header}, rows...))
}

func writeLines(w io.Writer, rows [][]string) error {
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}
