package formula

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"
)

// Category groups formulas by the column kind they accept
type Category string

const (
	CategoryNumeric  Category = "numeric"
	CategoryGeneral  Category = "general"
	CategoryText     Category = "text"
	CategoryDatetime Category = "datetime"
	CategoryBoolean  Category = "boolean"
)

var catalog = map[Category][]string{
	CategoryNumeric:  {"SUM", "AVG", "MIN", "MAX", "STDEV", "VAR", "MEDIAN", "SUMSQ", "RANGE", "PERCENTILE", "IQR", "SKEW", "KURT", "CV"},
	CategoryGeneral:  {"COUNT", "COUNTUNIQUE", "MODE"},
	CategoryText:     {"CONCAT_ROWS", "LEN_AVG", "COUNTEMPTY", "COUNTNONEMPTY", "COUNT_REGEX", "LONGEST_STR_LEN", "SHORTEST_STR_LEN"},
	CategoryDatetime: {"DATE_RANGE_DAYS", "COMMON_YEAR", "COMMON_MONTH_NAME"},
	CategoryBoolean:  {"COUNT_TRUE", "COUNT_FALSE", "ALL_TRUE", "ANY_TRUE"},
}

var categoryOrder = []Category{CategoryNumeric, CategoryGeneral, CategoryText, CategoryDatetime, CategoryBoolean}

// formulas that still produce a value on an empty row range
var emptySliceAllowed = map[string]bool{
	"COUNT": true, "COUNTUNIQUE": true, "COUNTEMPTY": true, "COUNTNONEMPTY": true, "COUNT_TRUE": true, "COUNT_FALSE": true,
}

const (
	notAvailable = "N/A"
	concatLimit  = 100
)

// Names lists every formula grouped by category
func Names() []string {
	var out []string
	for _, c := range categoryOrder {
		out = append(out, catalog[c]...)
	}
	return out
}

// CategoryOf returns the category of a formula name (case-insensitive)
func CategoryOf(name string) (Category, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for c, names := range catalog {
		for _, n := range names {
			if n == name {
				return c, true
			}
		}
	}
	return "", false
}

func accepts(c Category, dtype frame.DType) bool {
	switch c {
	case CategoryNumeric:
		return dtype.IsNumeric()
	case CategoryText:
		return dtype.IsTextLike()
	case CategoryDatetime:
		return dtype == frame.DTypeDatetime
	case CategoryBoolean:
		return dtype == frame.DTypeBoolean
	}
	return true
}

// ValidColumns lists the columns of f a formula can be applied to, in frame order
func ValidColumns(f *frame.Frame, name string) ([]string, error) {
	c, ok := CategoryOf(name)
	if !ok {
		return nil, unsupported(name)
	}
	cols := make([]string, 0)
	for _, col := range f.Columns() {
		if accepts(c, col.DType()) {
			cols = append(cols, col.Name())
		}
	}
	return cols, nil
}

// Request describes one formula evaluation. RowStart and RowEnd are 1-based and inclusive;
// nil means the first or last row.
type Request struct {
	Formula   string
	Column    string
	Parameter string
	RowStart  *int
	RowEnd    *int
}

// Result is the formatted outcome of a formula
type Result struct {
	Formula  string `json:"formula"`
	Column   string `json:"column"`
	Value    string `json:"result"`
	RowsUsed int    `json:"rows_used"`
}

// Apply evaluates req against f
func Apply(f *frame.Frame, req Request) (Result, error) {
	name := strings.ToUpper(strings.TrimSpace(req.Formula))
	if name == "" || req.Column == "" {
		return Result{}, core.NewInvalidParameterError("formula and column name are required")
	}
	c, ok := CategoryOf(name)
	if !ok {
		return Result{}, unsupported(req.Formula)
	}
	col, err := f.Lookup(req.Column)
	if err != nil {
		return Result{}, err
	}
	slice, err := rowRange(col, req.RowStart, req.RowEnd)
	if err != nil {
		return Result{}, err
	}

	res := Result{Formula: name, Column: req.Column, RowsUsed: slice.Len()}
	if slice.Len() == 0 && !emptySliceAllowed[name] {
		res.Value = notAvailable + " (empty slice)"
		return res, nil
	}
	if !accepts(c, col.DType()) && !lenient(name, col.DType()) {
		return Result{}, core.NewInvalidParameterError("%s requires a %s column, '%s' is %s", name, c, req.Column, col.DType())
	}

	v, err := evaluate(name, slice, req.Parameter)
	if err != nil {
		return Result{}, err
	}
	res.Value = format(v)
	if name == "CONCAT_ROWS" && len(res.Value) > concatLimit {
		res.Value = res.Value[:concatLimit] + "..."
	}
	log.Printf("[FormulaEngine] %s(%s) over %d row(s) = %s", name, req.Column, res.RowsUsed, res.Value)
	return res, nil
}

// lenient allows MIN and MAX on ordered non-numeric columns
func lenient(name string, dtype frame.DType) bool {
	return (name == "MIN" || name == "MAX") && (dtype.IsTextLike() || dtype == frame.DTypeDatetime)
}

func rowRange(col *frame.Column, start, end *int) (*frame.Column, error) {
	from, to := 0, col.Len()
	if start != nil {
		if *start < 1 {
			return nil, core.NewInvalidParameterError("start row must be a positive integer")
		}
		from = *start - 1
		if from >= col.Len() {
			return nil, core.NewInvalidParameterError("start row %d is out of bounds (%d rows)", *start, col.Len())
		}
	}
	if end != nil {
		if *end < 1 {
			return nil, core.NewInvalidParameterError("end row must be a positive integer")
		}
		to = min(*end, col.Len())
		if start != nil && from >= to {
			return nil, core.NewInvalidParameterError("end row must not be before start row")
		}
	}
	return col.Slice(from, to), nil
}

func unsupported(name string) error {
	return core.NewInvalidParameterError("unsupported formula '%s'", name)
}

// format renders a result the way the UI displays it
func format(v frame.Value) string {
	switch v.Type {
	case frame.ValueTypeMissing:
		return notAvailable
	case frame.ValueTypeNumeric:
		n := v.Num
		switch {
		case n == math.Trunc(n) && math.Abs(n) < 1e15:
			return strconv.FormatInt(int64(n), 10)
		case math.Abs(n) > 1e-4:
			return fmt.Sprintf("%.4g", n)
		}
		return fmt.Sprintf("%.4e", n)
	case frame.ValueTypeTimestamp:
		return v.Time.Format("2006-01-02T15:04:05")
	}
	return v.String()
}

// modes returns every most frequent non-missing value in ascending order
func modes(values []frame.Value) []frame.Value {
	counts := make(map[string]int)
	first := make(map[string]frame.Value)
	best := 0
	for _, v := range values {
		k := v.Key()
		counts[k]++
		if _, ok := first[k]; !ok {
			first[k] = v
		}
		best = max(best, counts[k])
	}
	var out []frame.Value
	for k, n := range counts {
		if n == best {
			out = append(out, first[k])
		}
	}
	sort.Slice(out, func(a, b int) bool { return frame.Compare(out[a], out[b]) < 0 })
	return out
}
