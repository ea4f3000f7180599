package outlier

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"tidyframe/domain/frame"

	"github.com/montanaflynn/stats"
)

var (
	ErrTooFewValues  = errors.New("not enough data points")
	ErrZeroVariance  = errors.New("standard deviation is zero or too small")
	ErrInvalidSpread = errors.New("could not calculate (IQR invalid)")
)

const (
	// MinIQRValues is the smallest sample quartiles are computed for
	MinIQRValues = 4
	// MinZScoreValues is the smallest sample a standard deviation is computed for
	MinZScoreValues = 2
	// MinStdDev is the spread below which z-scores are meaningless
	MinStdDev = 1e-9
)

// Method selects how bounds are derived
type Method string

const (
	MethodIQR    Method = "iqr"
	MethodZScore Method = "zscore"
)

// Bounds is an inclusive [Lower, Upper] interval
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies inside the bounds
func (b Bounds) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// Rounded returns the bounds rounded to 4 decimal places for display
func (b Bounds) Rounded() Bounds {
	return Bounds{Lower: round4(b.Lower), Upper: round4(b.Upper)}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Quantile returns the q-th quantile of sorted data using linear interpolation between the
// closest ranks: h = (n-1)q, result = x[floor(h)] + (h-floor(h))(x[floor(h)+1]-x[floor(h)]).
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * q
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= n {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Quartiles returns Q1 and Q3 of values (order does not matter)
func Quartiles(values []float64) (q1, q3 float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return Quantile(sorted, 0.25), Quantile(sorted, 0.75)
}

// IQRBounds computes Q1 - factor*IQR .. Q3 + factor*IQR
func IQRBounds(values []float64, factor float64) (Bounds, error) {
	if len(values) < MinIQRValues {
		return Bounds{}, fmt.Errorf("%w (need at least %d, have %d)", ErrTooFewValues, MinIQRValues, len(values))
	}
	q1, q3 := Quartiles(values)
	iqr := q3 - q1
	if math.IsNaN(iqr) || iqr < 0 {
		return Bounds{}, ErrInvalidSpread
	}
	return Bounds{Lower: q1 - factor*iqr, Upper: q3 + factor*iqr}, nil
}

// ZScoreBounds computes mean ± threshold*σ with the population standard deviation
func ZScoreBounds(values []float64, threshold float64) (Bounds, error) {
	if len(values) < MinZScoreValues {
		return Bounds{}, fmt.Errorf("%w (need at least %d, have %d)", ErrTooFewValues, MinZScoreValues, len(values))
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return Bounds{}, err
	}
	std, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return Bounds{}, err
	}
	if std <= MinStdDev {
		return Bounds{}, ErrZeroVariance
	}
	return Bounds{Lower: mean - threshold*std, Upper: mean + threshold*std}, nil
}

// BoundsFor dispatches on method
func BoundsFor(values []float64, method Method, param float64) (Bounds, error) {
	switch method {
	case MethodIQR:
		return IQRBounds(values, param)
	case MethodZScore:
		return ZScoreBounds(values, param)
	}
	return Bounds{}, fmt.Errorf("unknown outlier method %q", method)
}

// CountOutside counts non-missing numeric cells outside b
func CountOutside(col *frame.Column, b Bounds) int {
	n := 0
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		if v.IsNumeric() && !b.Contains(v.Num) {
			n++
		}
	}
	return n
}

// Clip caps cells at the bounds and returns the new column with the number of cells changed.
// Integer columns become float when a capped value is fractional.
func Clip(col *frame.Column, b Bounds) (*frame.Column, int) {
	out := make([]frame.Value, col.Len())
	changed := 0
	integral := true
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		if v.IsNumeric() {
			switch {
			case v.Num < b.Lower:
				v = frame.NewNumericValue(b.Lower)
				changed++
			case v.Num > b.Upper:
				v = frame.NewNumericValue(b.Upper)
				changed++
			}
			if v.Num != math.Trunc(v.Num) {
				integral = false
			}
		}
		out[i] = v
	}
	if changed == 0 {
		return col, 0
	}
	dtype := col.DType()
	if dtype == frame.DTypeInteger && !integral {
		dtype = frame.DTypeFloat
	}
	return frame.NewColumn(col.Name(), dtype, out), changed
}

// OutsideRows flags rows whose cell is numeric and outside b. Missing cells are never flagged.
func OutsideRows(col *frame.Column, b Bounds) []bool {
	flags := make([]bool, col.Len())
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		flags[i] = v.IsNumeric() && !b.Contains(v.Num)
	}
	return flags
}
