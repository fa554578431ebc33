package display

import (
	"io"

	"github.com/bytedance/sonic"

	"github.com/0xmhha/klaviyo-report/pkg/table"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// FormatGrid implements Formatter.FormatGrid.
//
// Each row is an array; number cells are JSON numbers, every other cell is
// a string.
func (f *jsonFormatter) FormatGrid(w io.Writer, g table.Grid) error {
	return encode(w, Values(g), f.config.Compact)
}

// Values converts g to plain JSON rows.
func Values(g table.Grid) [][]any {
	rows := make([][]any, len(g))
	for r, row := range g {
		rows[r] = make([]any, len(row))
		for c, cell := range row {
			if cell.Kind == table.Number {
				rows[r][c] = cell.Num
			} else {
				rows[r][c] = cell.Str
			}
		}
	}
	return rows
}

// FormatRecords implements Formatter.FormatRecords.
//
// Records are written as objects keyed by header.
func (f *jsonFormatter) FormatRecords(w io.Writer, header []string, rows [][]string) error {
	records := make([]map[string]string, len(rows))
	for i, row := range rows {
		rec := make(map[string]string, len(header))
		for c, name := range header {
			if c < len(row) {
				rec[name] = row[c]
			}
		}
		records[i] = rec
	}
	return encode(w, records, f.config.Compact)
}

// encode writes v followed by a newline. Map keys are sorted.
func encode(w io.Writer, v any, compact bool) error {
	var (
		data []byte
		err  error
	)
	if compact {
		data, err = sonic.ConfigStd.Marshal(v)
	} else {
		data, err = sonic.ConfigStd.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return err
	}

	_, err = w.Write(append(data, '\n'))
	return err
}
