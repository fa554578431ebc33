package display

import (
	"io"

	"github.com/0xmhha/klaviyo-report/pkg/table"
)

// SheetRow is one row of Google Sheets RowData.
type SheetRow struct {
	Values []SheetCell `json:"values"`
}

// SheetCell is one Google Sheets CellData.
type SheetCell struct {
	UserEnteredValue ExtendedValue `json:"userEnteredValue"`
}

// ExtendedValue holds exactly one typed value.
type ExtendedValue struct {
	NumberValue *float64 `json:"numberValue,omitempty"`

	FormulaValue *string `json:"formulaValue,omitempty"`

	StringValue *string `json:"stringValue,omitempty"`
}

// Sheets types every cell of g and converts it to Sheets row data.
func Sheets(g table.Grid) []SheetRow {
	typed := table.Classify(g)

	rows := make([]SheetRow, len(typed))
	for r, row := range typed {
		rows[r].Values = make([]SheetCell, len(row))
		for c, cell := range row {
			rows[r].Values[c] = SheetCell{UserEnteredValue: extendedValue(cell)}
		}
	}
	return rows
}

func extendedValue(cell table.Cell) ExtendedValue {
	switch cell.Kind {
	case table.Number:
		v := cell.Num
		return ExtendedValue{NumberValue: &v}
	case table.Formula:
		s := cell.Str
		return ExtendedValue{FormulaValue: &s}
	default:
		s := cell.Str
		return ExtendedValue{StringValue: &s}
	}
}

// sheetsFormatter formats output as Sheets row data.
type sheetsFormatter struct {
	config Config
}

// FormatGrid implements Formatter.FormatGrid.
func (f *sheetsFormatter) FormatGrid(w io.Writer, g table.Grid) error {
	return encode(w, Sheets(g), f.config.Compact)
}

// FormatRecords implements Formatter.FormatRecords.
func (f *sheetsFormatter) FormatRecords(w io.Writer, header []string, rows [][]string) error {
	g := make(table.Grid, 0, len(rows)+1)
	for _, row := range append([][]string{header}, rows...) {
		line := make([]table.Cell, len(row))
		for i, s := range row {
			line[i] = table.Text(s)
		}
		g = append(g, line)
	}
	return f.FormatGrid(w, g)
}
