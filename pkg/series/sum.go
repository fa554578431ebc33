package series

import (
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

var decimalContext = apd.BaseContext.WithPrecision(34)

// accumulator sums float64 values as decimals so that revenue totals do not
// pick up binary rounding noise.
type accumulator struct {
	total apd.Decimal
}

func (a *accumulator) add(v float64) {
	var d apd.Decimal
	if _, _, err := d.SetString(strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		// NaN and Inf have no decimal form; fall back to the float path.
		f, _ := a.total.Float64()
		a.total.SetFloat64(f + v)
		return
	}
	decimalContext.Add(&a.total, &a.total, &d)
}

func (a *accumulator) value() float64 {
	f, _ := a.total.Float64()
	return f
}

// Sum returns the exact decimal sum of values as a float64.
func Sum(values []float64) float64 {
	var acc accumulator
	for _, v := range values {
		acc.add(v)
	}
	return acc.value()
}
