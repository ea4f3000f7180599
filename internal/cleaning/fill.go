package cleaning

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"

	"github.com/montanaflynn/stats"
	"github.com/tidwall/gjson"
)

// Fill methods
const (
	FillValue           = "value"
	FillMean            = "mean"
	FillMedian          = "median"
	FillMode            = "mode"
	FillForward         = "ffill"
	FillBackward        = "bfill"
	FillForwardBackward = "ffill_bfill"
)

// FillMissing replaces missing cells in Column, or in every column when Column is empty
type FillMissing struct {
	Method string
	Value  gjson.Result
	Column string
}

func (FillMissing) Name() string { return OpFillMissing }

func (op FillMissing) apply(e *Engine, f *frame.Frame) (Result, error) {
	targets := f.Columns()
	single := op.Column != ""
	if single {
		col, err := f.Lookup(op.Column)
		if err != nil {
			return Result{}, err
		}
		if (op.Method == FillMean || op.Method == FillMedian) && !col.DType().IsNumeric() {
			return Result{}, core.NewInvalidParameterError("cannot fill non-numeric column '%s' with the %s", col.Name(), op.Method)
		}
		targets = []*frame.Column{col}
	}

	var replaced []*frame.Column
	var skipped []string
	total := 0
	for _, col := range targets {
		if col.MissingCount() == 0 {
			continue
		}
		filled, n, err := e.fillColumn(col, op.Method, op.Value)
		if err != nil {
			if single {
				return Result{}, err
			}
			skipped = append(skipped, col.Name())
			continue
		}
		if n > 0 {
			replaced = append(replaced, filled)
			total += n
		}
	}

	scope := "the dataset"
	if single {
		scope = fmt.Sprintf("column '%s'", op.Column)
	}
	if total == 0 {
		msg := fmt.Sprintf("No missing values were filled in %s.", scope)
		if len(skipped) > 0 {
			msg += fmt.Sprintf(" Skipped: %s.", strings.Join(skipped, ", "))
		}
		return unchanged(f, msg), nil
	}
	out, err := f.ReplaceColumns(replaced...)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Filled %d missing value(s) in %s using %s.", total, scope, op.describe())
	if len(skipped) > 0 {
		msg += fmt.Sprintf(" Skipped incompatible column(s): %s.", strings.Join(skipped, ", "))
	}
	return changed(out, msg), nil
}

func (op FillMissing) describe() string {
	if op.Method == FillValue {
		return fmt.Sprintf("value '%s'", op.Value.String())
	}
	return op.Method
}

// FillColumn fills missing cells of col with a statistic or by propagation (any method but "value")
func (e *Engine) FillColumn(col *frame.Column, method string) (*frame.Column, int, error) {
	if method == FillValue {
		return nil, 0, core.NewInvalidParameterError("fill method 'value' needs a value")
	}
	return e.fillColumn(col, method, gjson.Result{})
}

// fillColumn returns the filled column and the number of cells filled
func (e *Engine) fillColumn(col *frame.Column, method string, value gjson.Result) (*frame.Column, int, error) {
	values := col.Values()
	dtype := col.DType()

	switch method {
	case FillForward, FillBackward, FillForwardBackward:
		n := 0
		if method != FillBackward {
			n += propagate(values, false)
		}
		if method != FillForward {
			n += propagate(values, true)
		}
		return col.WithValues(values), n, nil
	}

	var fill frame.Value
	switch method {
	case FillValue:
		v, err := e.paramValue(value, col)
		if err != nil {
			return nil, 0, err
		}
		fill = v
	case FillMean, FillMedian:
		if !dtype.IsNumeric() {
			return nil, 0, core.NewInvalidParameterError("cannot fill non-numeric column '%s' with the %s", col.Name(), method)
		}
		data := stats.Float64Data(col.Floats())
		if data.Len() == 0 {
			return col, 0, nil
		}
		var x float64
		var err error
		if method == FillMean {
			x, err = data.Mean()
		} else {
			x, err = data.Median()
		}
		if err != nil {
			return nil, 0, fmt.Errorf("computing %s of '%s': %w", method, col.Name(), err)
		}
		fill = frame.NewNumericValue(x)
	case FillMode:
		m, ok := modeOf(col)
		if !ok {
			return col, 0, nil
		}
		fill = m
	default:
		return nil, 0, core.NewInvalidParameterError("unknown fill method '%s'", method)
	}

	if fill.IsMissing() {
		return col, 0, nil
	}
	n := 0
	for i, v := range values {
		if v.IsMissing() {
			values[i] = fill
			n++
		}
	}
	if dtype == frame.DTypeInteger && fill.IsNumeric() && fill.Num != math.Trunc(fill.Num) {
		dtype = frame.DTypeFloat
	}
	return frame.NewColumn(col.Name(), dtype, values), n, nil
}

// propagate carries the last seen value over missing cells, walking backwards when reverse is set
func propagate(values []frame.Value, reverse bool) int {
	n := 0
	last := frame.Missing()
	for k := range values {
		i := k
		if reverse {
			i = len(values) - 1 - k
		}
		if values[i].IsMissing() {
			if !last.IsMissing() {
				values[i] = last
				n++
			}
			continue
		}
		last = values[i]
	}
	return n
}

// modeOf returns the most frequent non-missing value; ties go to the smallest value
func modeOf(col *frame.Column) (frame.Value, bool) {
	counts := make(map[string]int)
	first := make(map[string]frame.Value)
	for _, v := range col.NonMissing() {
		k := v.Key()
		if _, ok := first[k]; !ok {
			first[k] = v
		}
		counts[k]++
	}
	if len(counts) == 0 {
		return frame.Value{}, false
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if counts[keys[a]] != counts[keys[b]] {
			return counts[keys[a]] > counts[keys[b]]
		}
		return frame.Compare(first[keys[a]], first[keys[b]]) < 0
	})
	return first[keys[0]], true
}
