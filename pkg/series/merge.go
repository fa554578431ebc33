package series

import "fmt"

// Merge stitches next onto the end of acc and returns the combined series.
//
// The date axes are concatenated; next's dates always follow acc's since
// windows are disjoint and increasing. Rows are matched by dimensions.
// A row first seen in next is left-padded with zeros for every earlier date,
// and a row absent from next is right-padded with zeros, so every
// measurement keeps exactly one value per date.
//
// Neither acc nor next is modified.
func Merge(acc, next Series) (Series, error) {
	if acc.IsEmpty() {
		out := normalize(next)
		if err := Validate(out); err != nil {
			return Series{}, err
		}
		return out, nil
	}

	out := acc.Clone()
	incoming := normalize(next)

	before := len(out.Dates)
	out.Dates = append(out.Dates, incoming.Dates...)
	total := len(out.Dates)

	for _, row := range incoming.Rows {
		if idx := out.Find(row.Dimensions); idx >= 0 {
			existing := out.Rows[idx]
			for m, values := range row.Measurements {
				prior, ok := existing.Measurements[m]
				if !ok {
					prior = make([]float64, before)
				}
				existing.Measurements[m] = append(prior, values...)
			}
			continue
		}

		added := Row{
			Dimensions:   row.Dimensions,
			Measurements: make(map[Measurement][]float64, len(row.Measurements)),
		}
		for m, values := range row.Measurements {
			added.Measurements[m] = append(make([]float64, before), values...)
		}
		out.Rows = append(out.Rows, added)
	}

	for _, row := range out.Rows {
		for m, values := range row.Measurements {
			if len(values) < total {
				row.Measurements[m] = append(values, make([]float64, total-len(values))...)
			}
		}
	}

	if err := Validate(out); err != nil {
		return Series{}, err
	}
	return out, nil
}

// Validate checks that every measurement of every row has one value per date.
func Validate(s Series) error {
	for _, row := range s.Rows {
		for m, values := range row.Measurements {
			if len(values) != len(s.Dates) {
				return fmt.Errorf("%w: row %q measurement %s has %d values for %d dates",
					ErrDataShape, row.Dimensions, m, len(values), len(s.Dates))
			}
		}
	}
	return nil
}

// normalize returns a copy of s in which ungrouped rows carry the single
// empty dimension [""] rather than no dimensions at all.
func normalize(s Series) Series {
	out := s.Clone()
	for i := range out.Rows {
		if len(out.Rows[i].Dimensions) == 0 {
			out.Rows[i].Dimensions = []string{""}
		}
	}
	return out
}
