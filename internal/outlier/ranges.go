package outlier

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"runtime"
	"sort"
	"strconv"

	"tidyframe/domain/frame"

	"golang.org/x/sync/errgroup"
)

var (
	StandardIQRFactors  = []float64{0.5, 1.0, 1.5, 2.0, 2.5, 3.0}
	StandardZThresholds = []float64{1.0, 1.5, 2.0, 2.5, 3.0}
)

const (
	DefaultIQRFactor       = 1.5
	DefaultZScoreThreshold = 3.0
)

// MethodRanges is either a label -> bounds table or an Error/Info marker
type MethodRanges struct {
	Bounds map[string]Bounds
	Error  string
	Info   string
}

// MarshalJSON emits the marker object when set, otherwise the bounds table
func (m MethodRanges) MarshalJSON() ([]byte, error) {
	switch {
	case m.Error != "":
		return json.Marshal(map[string]string{"Error": m.Error})
	case m.Info != "":
		return json.Marshal(map[string]string{"Info": m.Info})
	}
	if m.Bounds == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.Bounds)
}

// ColumnRanges holds both methods for one column
type ColumnRanges struct {
	IQR    MethodRanges `json:"iqr"`
	ZScore MethodRanges `json:"zscore"`
}

// IQRLabel formats a factor the way the client keys its dropdown, e.g. "1.5x IQR"
func IQRLabel(factor float64) string {
	return formatParam(factor) + "x IQR"
}

// ZScoreLabel formats a threshold, e.g. "3.0"
func ZScoreLabel(threshold float64) string {
	return formatParam(threshold)
}

func formatParam(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// withConfigured returns standard plus configured (when positive and absent), sorted
func withConfigured(standard []float64, configured float64) []float64 {
	out := append([]float64(nil), standard...)
	if configured > 0 {
		found := false
		for _, v := range out {
			if v == configured {
				found = true
				break
			}
		}
		if !found {
			out = append(out, configured)
		}
	}
	sort.Float64s(out)
	return out
}

// EligibleColumns returns the numeric columns of f in display order
func EligibleColumns(f *frame.Frame) []*frame.Column {
	var cols []*frame.Column
	for _, col := range f.Columns() {
		if col.DType().IsNumeric() {
			cols = append(cols, col)
		}
	}
	return cols
}

// ComputeRanges builds the range table for every numeric column. Columns are processed
// concurrently; a column that cannot produce bounds gets a marker, never an error.
func ComputeRanges(ctx context.Context, f *frame.Frame, iqrFactor, zThreshold float64) (map[string]ColumnRanges, error) {
	cols := EligibleColumns(f)
	if len(cols) == 0 {
		return nil, nil
	}
	factors := withConfigured(StandardIQRFactors, iqrFactor)
	thresholds := withConfigured(StandardZThresholds, zThreshold)

	results := make([]ColumnRanges, len(cols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, col := range cols {
		i, col := i, col
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = columnRanges(col.Floats(), factors, thresholds)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]ColumnRanges, len(cols))
	for i, col := range cols {
		out[col.Name()] = results[i]
	}
	return out, nil
}

func columnRanges(values []float64, factors, thresholds []float64) ColumnRanges {
	if constant(values) {
		return ColumnRanges{
			IQR:    MethodRanges{Error: "Could not calculate (IQR invalid or zero variance)"},
			ZScore: MethodRanges{Error: "Standard deviation is zero or too small"},
		}
	}

	var result ColumnRanges
	if len(values) < MinIQRValues {
		result.IQR = MethodRanges{Info: "Not enough data points"}
	} else {
		result.IQR = MethodRanges{Bounds: make(map[string]Bounds, len(factors))}
		for _, factor := range factors {
			b, err := IQRBounds(values, factor)
			if err != nil {
				result.IQR = MethodRanges{Error: "Could not calculate (IQR invalid or zero)"}
				break
			}
			result.IQR.Bounds[IQRLabel(factor)] = b.Rounded()
		}
	}

	if len(values) < MinZScoreValues {
		result.ZScore = MethodRanges{Info: "Not enough data points"}
		return result
	}
	result.ZScore = MethodRanges{Bounds: make(map[string]Bounds, len(thresholds))}
	for _, threshold := range thresholds {
		b, err := ZScoreBounds(values, threshold)
		if err != nil {
			if errors.Is(err, ErrZeroVariance) {
				result.ZScore = MethodRanges{Error: "Standard deviation is zero or too small"}
			} else {
				result.ZScore = MethodRanges{Error: err.Error()}
			}
			break
		}
		result.ZScore.Bounds[ZScoreLabel(threshold)] = b.Rounded()
	}
	return result
}

// constant reports whether there are at least two values and all are equal
func constant(values []float64) bool {
	if len(values) < 2 {
		return false
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
