package series

// Collapse sums every row that has at least one non-empty dimension into a
// single ungrouped row. Ungrouped rows of s are dropped from the result, and
// the date axis is kept as is.
func Collapse(s Series) Series {
	var rows []Row
	width := make(map[Measurement]int)
	var kinds []Measurement
	for _, row := range s.Rows {
		if !grouped(row.Dimensions) {
			continue
		}
		rows = append(rows, row)
		for _, m := range row.Kinds() {
			n, seen := width[m]
			if !seen {
				kinds = append(kinds, m)
			}
			if len(row.Measurements[m]) > n {
				width[m] = len(row.Measurements[m])
			} else {
				width[m] = n
			}
		}
	}

	merged := Row{
		Dimensions:   []string{""},
		Measurements: make(map[Measurement][]float64, len(kinds)),
	}
	for _, m := range kinds {
		values := make([]float64, width[m])
		column := make([]float64, 0, len(rows))
		for i := range values {
			column = column[:0]
			for _, row := range rows {
				if i < len(row.Measurements[m]) {
					column = append(column, row.Measurements[m][i])
				}
			}
			values[i] = Sum(column)
		}
		merged.Measurements[m] = values
	}

	return Series{
		Dates: append([]string(nil), s.Dates...),
		Rows:  []Row{merged},
	}
}

func grouped(dims []string) bool {
	for _, d := range dims {
		if d != "" {
			return true
		}
	}
	return false
}
