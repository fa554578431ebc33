package table

import (
	"math"
	"strconv"
	"strings"
)

// Join concatenates grids horizontally and types every cell with Classify.
//
// The first grid defines the row count and its header label, if any,
// replaces header cell [0][1]. Each following grid contributes its label
// plus blank padding to the header row, or its own dimension labels when it
// has none, and every later row gains the incoming row without its leading
// date cell. Rows the incoming grid lacks are padded with blanks.
func Join(grids []Labeled) Grid {
	if len(grids) == 0 {
		return nil
	}

	joined := clone(grids[0].Grid)
	if h := grids[0].Header; h != nil && len(joined) > 0 {
		if len(joined[0]) > 1 {
			joined[0][1] = Text(*h)
		} else {
			joined[0] = append(joined[0], Text(*h))
		}
	}

	for _, next := range grids[1:] {
		g := next.Grid
		width := g.Width() - 1
		if width < 0 {
			width = 0
		}

		if len(joined) > 0 {
			var head []Cell
			switch {
			case next.Header != nil:
				head = append(head, Text(*next.Header))
				if len(g) > 0 {
					for i := 0; i < len(g[0])-2; i++ {
						head = append(head, Blank())
					}
				}
			case len(g) > 0 && len(g[0]) > 0:
				head = append(head, g[0][1:]...)
			}
			joined[0] = append(joined[0], pad(head, width)...)
		}

		for r := 1; r < len(joined); r++ {
			var tail []Cell
			if r < len(g) && len(g[r]) > 0 {
				tail = g[r][1:]
			}
			joined[r] = append(joined[r], pad(tail, width)...)
		}
	}

	return Classify(joined)
}

// Classify returns a copy of g with every cell typed for spreadsheets.
//
// Numeric literals below the header rows and right of the date column are
// numbers, text starting with "=" is a formula, and everything else is text.
func Classify(g Grid) Grid {
	out := make(Grid, len(g))
	for r, row := range g {
		out[r] = make([]Cell, len(row))
		for c, cell := range row {
			out[r][c] = classify(cell, r > 1 && c > 0)
		}
	}
	return out
}

func classify(cell Cell, body bool) Cell {
	text := cell.String()
	if body {
		if cell.Kind == Number {
			return cell
		}
		if v, ok := numeric(text); ok {
			return Num(v)
		}
	}
	if strings.HasPrefix(text, "=") {
		return Cell{Kind: Formula, Str: text}
	}
	return Text(text)
}

// numeric parses decimal literals; NaN, Inf and hex forms are text.
func numeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xXnNiI_") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func pad(cells []Cell, width int) []Cell {
	out := make([]Cell, 0, width)
	out = append(out, cells...)
	for len(out) < width {
		out = append(out, Blank())
	}
	return out
}

func clone(g Grid) Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]Cell(nil), row...)
	}
	return out
}
