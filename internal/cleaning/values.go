package cleaning

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"tidyframe/adapters/datareadiness/coercer"
	"tidyframe/domain/core"
	"tidyframe/domain/frame"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Case conversions
const (
	CaseLower = "lower"
	CaseUpper = "upper"
	CaseTitle = "title"
)

// RemoveSpaces trims leading and trailing whitespace from a text column
type RemoveSpaces struct {
	Column string
}

func (RemoveSpaces) Name() string { return OpRemoveSpaces }

func (op RemoveSpaces) apply(_ *Engine, f *frame.Frame) (Result, error) {
	col, err := f.Lookup(op.Column)
	if err != nil {
		return Result{}, err
	}
	if !col.DType().IsTextLike() {
		return unchanged(f, fmt.Sprintf("Column '%s' is %s, not text; nothing to trim.", op.Column, col.DType())), nil
	}
	out, n := TrimColumn(col)
	if n == 0 {
		return unchanged(f, fmt.Sprintf("No surrounding whitespace found in '%s'.", op.Column)), nil
	}
	next, err := f.ReplaceColumns(out)
	if err != nil {
		return Result{}, err
	}
	return changed(next, fmt.Sprintf("Trimmed whitespace in %d value(s) of '%s'.", n, op.Column)), nil
}

// TrimColumn trims every string cell and reports how many changed
func TrimColumn(col *frame.Column) (*frame.Column, int) {
	return mapStrings(col, strings.TrimSpace)
}

// mapStrings applies fn to every string cell, returning col itself when nothing changed
func mapStrings(col *frame.Column, fn func(string) string) (*frame.Column, int) {
	values := col.Values()
	n := 0
	for i, v := range values {
		if v.Type != frame.ValueTypeString {
			continue
		}
		if s := fn(v.Str); s != v.Str {
			values[i] = frame.NewStringValue(s)
			n++
		}
	}
	if n == 0 {
		return col, 0
	}
	return col.WithValues(values), n
}

// ChangeDType converts a column to TargetType. Any cell that cannot convert aborts the operation.
type ChangeDType struct {
	Column     string
	TargetType string
}

func (ChangeDType) Name() string { return OpChangeDType }

func (op ChangeDType) apply(e *Engine, f *frame.Frame) (Result, error) {
	col, err := f.Lookup(op.Column)
	if err != nil {
		return Result{}, err
	}
	target, ok := e.coercer.NormalizeTarget(op.TargetType)
	if !ok {
		return Result{}, core.NewInvalidParameterError(
			"unsupported target type '%s' (use int, float, string, datetime, bool or category)", op.TargetType)
	}
	if col.DType() == target {
		return unchanged(f, fmt.Sprintf("Column '%s' is already %s.", op.Column, target)), nil
	}
	conv := e.coercer.Convert(col, target)
	if conv.Failed > 0 {
		return Result{}, core.NewTypeConversionError(op.Column, string(target), conv.Failed, conv.Example)
	}
	out, err := f.ReplaceColumns(conv.Column)
	if err != nil {
		return Result{}, err
	}
	return changed(out, fmt.Sprintf("Converted column '%s' from %s to %s.", op.Column, col.DType(), target)), nil
}

// FixDatetime parses a column as dates, with an optional strftime Format. Unparseable cells become missing.
type FixDatetime struct {
	Column string
	Format string
}

func (FixDatetime) Name() string { return OpFixDatetime }

func (op FixDatetime) apply(e *Engine, f *frame.Frame) (Result, error) {
	col, err := f.Lookup(op.Column)
	if err != nil {
		return Result{}, err
	}
	if col.DType().IsNumeric() || col.DType() == frame.DTypeBoolean {
		return Result{}, core.NewInvalidParameterError("column '%s' is %s and cannot hold dates", op.Column, col.DType())
	}
	var conv coercer.Conversion
	if op.Format != "" {
		conv = e.coercer.ConvertWithFormat(col, op.Format)
	} else {
		conv = e.coercer.Convert(col, frame.DTypeDatetime)
	}
	present := col.Len() - col.MissingCount()
	if present > 0 && conv.Failed == present {
		return Result{}, core.NewTypeConversionError(op.Column, "datetime", conv.Failed, conv.Example)
	}
	if col.DType() == frame.DTypeDatetime && conv.Failed == 0 && conv.Column.Equal(col) {
		return unchanged(f, fmt.Sprintf("Column '%s' already holds valid dates.", op.Column)), nil
	}
	out, err := f.ReplaceColumns(conv.Column)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Converted '%s' to datetime.", op.Column)
	if conv.Failed > 0 {
		msg += fmt.Sprintf(" %d value(s) could not be parsed and were set to missing (e.g. '%s').", conv.Failed, conv.Example)
	}
	return changed(out, msg), nil
}

// ReplaceText substitutes Find with Replace in the display string of every cell
type ReplaceText struct {
	Column   string
	Find     string
	Replace  string
	UseRegex bool
}

func (ReplaceText) Name() string { return OpReplaceText }

var backrefPattern = regexp.MustCompile(`\\(\d+)`)

func (op ReplaceText) apply(_ *Engine, f *frame.Frame) (Result, error) {
	col, err := f.Lookup(op.Column)
	if err != nil {
		return Result{}, err
	}
	replace := func(s string) string { return strings.ReplaceAll(s, op.Find, op.Replace) }
	if op.UseRegex {
		re, err := regexp.Compile(op.Find)
		if err != nil {
			return Result{}, core.NewPatternError(op.Find, err)
		}
		// accept \1 style group references as well as $1
		template := backrefPattern.ReplaceAllString(op.Replace, "$${$1}")
		replace = func(s string) string { return re.ReplaceAllString(s, template) }
	}

	values := col.Values()
	n := 0
	for i, v := range values {
		if v.IsMissing() {
			continue
		}
		s := v.String()
		if r := replace(s); r != s {
			values[i] = frame.NewStringValue(r)
			n++
		}
	}
	if n == 0 {
		return unchanged(f, fmt.Sprintf("No occurrences of '%s' found in '%s'.", op.Find, op.Column)), nil
	}
	dtype := col.DType()
	if !dtype.IsTextLike() {
		for i, v := range values {
			if !v.IsMissing() && v.Type != frame.ValueTypeString {
				values[i] = frame.NewStringValue(v.String())
			}
		}
		dtype = frame.DTypeText
	}
	out, err := f.ReplaceColumns(frame.NewColumn(col.Name(), dtype, values))
	if err != nil {
		return Result{}, err
	}
	return changed(out, fmt.Sprintf("Replaced text in %d value(s) of '%s'.", n, op.Column)), nil
}

// ChangeCase converts a text column to lower, upper or title case
type ChangeCase struct {
	Column string
	Case   string
}

func (ChangeCase) Name() string { return OpChangeCase }

func (op ChangeCase) apply(_ *Engine, f *frame.Frame) (Result, error) {
	col, err := f.Lookup(op.Column)
	if err != nil {
		return Result{}, err
	}
	if !col.DType().IsTextLike() {
		return Result{}, core.NewInvalidParameterError("column '%s' is %s; case can only be changed on text", op.Column, col.DType())
	}
	out, n := ApplyCase(col, op.Case)
	if n == 0 {
		return unchanged(f, fmt.Sprintf("Values in '%s' are already %s case.", op.Column, op.Case)), nil
	}
	next, err := f.ReplaceColumns(out)
	if err != nil {
		return Result{}, err
	}
	return changed(next, fmt.Sprintf("Changed %d value(s) in '%s' to %s case.", n, op.Column, op.Case)), nil
}

// ApplyCase converts string cells of col to the given case
func ApplyCase(col *frame.Column, caseType string) (*frame.Column, int) {
	var fn func(string) string
	switch caseType {
	case CaseLower:
		fn = strings.ToLower
	case CaseUpper:
		fn = strings.ToUpper
	case CaseTitle:
		caser := cases.Title(language.Und)
		fn = caser.String
	default:
		return col, 0
	}
	return mapStrings(col, fn)
}

// Mapping is one old -> new pair of a map_values call
type Mapping struct {
	From string
	To   gjson.Result
}

// MapValues replaces cells whose display string equals a mapping key
type MapValues struct {
	Column  string
	Mapping []Mapping
}

func (MapValues) Name() string { return OpMapValues }

func (op MapValues) apply(_ *Engine, f *frame.Frame) (Result, error) {
	col, err := f.Lookup(op.Column)
	if err != nil {
		return Result{}, err
	}
	lookup := make(map[string]frame.Value, len(op.Mapping))
	for _, m := range op.Mapping {
		lookup[m.From] = jsonValue(m.To)
	}
	values := col.Values()
	n := 0
	for i, v := range values {
		if v.IsMissing() {
			continue
		}
		if to, ok := lookup[v.String()]; ok {
			values[i] = to
			n++
		}
	}
	if n == 0 {
		return unchanged(f, fmt.Sprintf("No values in '%s' matched the mapping.", op.Column)), nil
	}
	out, err := f.ReplaceColumns(settle(col.Name(), col.DType(), values))
	if err != nil {
		return Result{}, err
	}
	return changed(out, fmt.Sprintf("Mapped %d value(s) in '%s'.", n, op.Column)), nil
}

func jsonValue(r gjson.Result) frame.Value {
	switch r.Type {
	case gjson.Null:
		return frame.Missing()
	case gjson.Number:
		return frame.NewNumericValue(r.Num)
	case gjson.True, gjson.False:
		return frame.NewBooleanValue(r.Bool())
	}
	return frame.NewStringValue(r.String())
}

// settle picks a dtype for a column whose cells may now be of mixed kinds. A single kind keeps
// (or infers) its dtype; anything mixed becomes text.
func settle(name string, previous frame.DType, values []frame.Value) *frame.Column {
	kinds := make(map[frame.ValueType]bool)
	integral := true
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		kinds[v.Type] = true
		if v.IsNumeric() && v.Num != math.Trunc(v.Num) {
			integral = false
		}
	}
	if len(kinds) == 1 {
		for kind := range kinds {
			switch kind {
			case frame.ValueTypeNumeric:
				if integral && previous != frame.DTypeFloat {
					return frame.NewColumn(name, frame.DTypeInteger, values)
				}
				return frame.NewColumn(name, frame.DTypeFloat, values)
			case frame.ValueTypeBoolean:
				return frame.NewColumn(name, frame.DTypeBoolean, values)
			case frame.ValueTypeTimestamp:
				return frame.NewColumn(name, frame.DTypeDatetime, values)
			case frame.ValueTypeString:
				if previous == frame.DTypeCategory {
					return frame.NewColumn(name, frame.DTypeCategory, values)
				}
				return frame.NewColumn(name, frame.DTypeText, values)
			}
		}
	}
	if len(kinds) == 0 {
		return frame.NewColumn(name, previous, values)
	}
	for i, v := range values {
		if !v.IsMissing() && v.Type != frame.ValueTypeString {
			values[i] = frame.NewStringValue(v.String())
		}
	}
	return frame.NewColumn(name, frame.DTypeText, values)
}

// OptimizeCategories turns low-cardinality text columns into categories
type OptimizeCategories struct{}

func (OptimizeCategories) Name() string { return OpOptimizeCategories }

const (
	maxCategoryDistinct = 1000
	maxCategoryRatio    = 0.5
)

func (OptimizeCategories) apply(_ *Engine, f *frame.Frame) (Result, error) {
	if f.NumRows() == 0 {
		return unchanged(f, "No rows to optimize."), nil
	}
	var converted []*frame.Column
	var names []string
	for _, col := range f.Columns() {
		if col.DType() != frame.DTypeText {
			continue
		}
		distinct := col.Distinct()
		if distinct == 0 || distinct >= maxCategoryDistinct {
			continue
		}
		if float64(distinct)/float64(f.NumRows()) >= maxCategoryRatio {
			continue
		}
		converted = append(converted, col.WithDType(frame.DTypeCategory))
		names = append(names, col.Name())
	}
	if len(converted) == 0 {
		return unchanged(f, "No text columns qualified for category optimization."), nil
	}
	out, err := f.ReplaceColumns(converted...)
	if err != nil {
		return Result{}, err
	}
	return changed(out, fmt.Sprintf("Converted %d column(s) to category: %s.", len(names), strings.Join(names, ", "))), nil
}
