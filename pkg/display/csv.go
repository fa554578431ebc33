package display

import (
	"encoding/csv"
	"io"

	"github.com/0xmhha/klaviyo-report/pkg/table"
)

// csvFormatter formats output as RFC 4180 CSV.
type csvFormatter struct{}

// FormatGrid implements Formatter.FormatGrid.
func (f *csvFormatter) FormatGrid(w io.Writer, g table.Grid) error {
	return writeCSV(w, g.Strings())
}

// FormatRecords implements Formatter.FormatRecords.
func (f *csvFormatter) FormatRecords(w io.Writer, header []string, rows [][]string) error {
	return writeCSV(w, append([][]string{header}, rows...))
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
