package cleaning

import (
	"fmt"
	"regexp"
	"strings"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"
)

const maxExamples = 5

// CheckIDUniqueness reports duplicated values in an identifier column. It never changes data.
type CheckIDUniqueness struct {
	Column string
}

func (CheckIDUniqueness) Name() string { return OpCheckIDUniqueness }

func (op CheckIDUniqueness) apply(_ *Engine, f *frame.Frame) (Result, error) {
	col, err := f.Lookup(op.Column)
	if err != nil {
		return Result{}, err
	}
	counts := make(map[string]int)
	var order []frame.Value
	for _, v := range col.NonMissing() {
		k := v.Key()
		if counts[k] == 0 {
			order = append(order, v)
		}
		counts[k]++
	}

	dupRows := 0
	var examples []string
	for _, v := range order {
		if c := counts[v.Key()]; c > 1 {
			dupRows += c
			if len(examples) < maxExamples {
				examples = append(examples, v.String())
			}
		}
	}

	var b strings.Builder
	if dupRows == 0 {
		fmt.Fprintf(&b, "All %d non-missing value(s) in '%s' are unique.", col.Len()-col.MissingCount(), op.Column)
	} else {
		fmt.Fprintf(&b, "Column '%s' is not unique: %d row(s) share a duplicated value. Examples: %s.",
			op.Column, dupRows, strings.Join(examples, ", "))
	}
	if missing := col.MissingCount(); missing > 0 {
		fmt.Fprintf(&b, " %d row(s) have no value.", missing)
	}
	return unchanged(f, b.String()), nil
}

// CheckIDFormat reports cells whose display string does not fully match Pattern. It never changes data.
type CheckIDFormat struct {
	Column  string
	Pattern string
}

func (CheckIDFormat) Name() string { return OpCheckIDFormat }

func (op CheckIDFormat) apply(_ *Engine, f *frame.Frame) (Result, error) {
	col, err := f.Lookup(op.Column)
	if err != nil {
		return Result{}, err
	}
	if _, err := regexp.Compile(op.Pattern); err != nil {
		return Result{}, core.NewPatternError(op.Pattern, err)
	}
	re, err := regexp.Compile(`^(?:` + op.Pattern + `)$`)
	if err != nil {
		return Result{}, core.NewPatternError(op.Pattern, err)
	}

	bad := 0
	var examples []string
	for _, v := range col.NonMissing() {
		s := v.String()
		if re.MatchString(s) {
			continue
		}
		bad++
		if len(examples) < maxExamples {
			examples = append(examples, s)
		}
	}
	if bad == 0 {
		return unchanged(f, fmt.Sprintf("All non-missing values in '%s' match the pattern '%s'.", op.Column, op.Pattern)), nil
	}
	return unchanged(f, fmt.Sprintf("%d value(s) in '%s' do not match the pattern '%s'. Examples: %s.",
		bad, op.Column, op.Pattern, strings.Join(examples, ", "))), nil
}
