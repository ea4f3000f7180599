package cleaning

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"
	"tidyframe/internal/history"

	"github.com/tidwall/gjson"
)

// RemoveDuplicates keeps the first occurrence of each row, compared on Subset (all columns when empty)
type RemoveDuplicates struct {
	Subset []string
}

func (RemoveDuplicates) Name() string { return OpRemoveDuplicates }

func (op RemoveDuplicates) apply(_ *Engine, f *frame.Frame) (Result, error) {
	cols, err := lookupAll(f, op.Subset)
	if err != nil {
		return Result{}, err
	}
	seen := make(map[string]struct{}, f.NumRows())
	var b strings.Builder
	out := f.Filter(func(row int) bool {
		b.Reset()
		for _, col := range cols {
			b.WriteString(col.At(row).Key())
			b.WriteByte(0)
		}
		key := b.String()
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		return true
	})
	removed := f.NumRows() - out.NumRows()
	if removed == 0 {
		return unchanged(f, "No duplicate rows found."), nil
	}
	return changed(out, fmt.Sprintf("Removed %d duplicate row(s).", removed)), nil
}

// RemoveMissing drops rows with missing cells in Subset. How is "any" or "all".
type RemoveMissing struct {
	How    string
	Subset []string
}

func (RemoveMissing) Name() string { return OpRemoveMissing }

func (op RemoveMissing) apply(_ *Engine, f *frame.Frame) (Result, error) {
	cols, err := lookupAll(f, op.Subset)
	if err != nil {
		return Result{}, err
	}
	all := op.How == "all"
	out := f.Filter(func(row int) bool {
		missing := 0
		for _, col := range cols {
			if col.At(row).IsMissing() {
				missing++
			}
		}
		if all {
			return len(cols) == 0 || missing < len(cols)
		}
		return missing == 0
	})
	removed := f.NumRows() - out.NumRows()
	if removed == 0 {
		return unchanged(f, "No rows with missing values found."), nil
	}
	return changed(out, fmt.Sprintf("Removed %d row(s) with missing values (how='%s').", removed, op.How)), nil
}

// Condition is a normalized filter comparison
type Condition string

const (
	CondEq         Condition = "eq"
	CondNeq        Condition = "neq"
	CondGt         Condition = "gt"
	CondLt         Condition = "lt"
	CondGte        Condition = "gte"
	CondLte        Condition = "lte"
	CondContains   Condition = "contains"
	CondStartsWith Condition = "startswith"
	CondEndsWith   Condition = "endswith"
	CondIsNull     Condition = "isnull"
	CondNotNull    Condition = "notnull"
)

func normalizeCondition(s string) (Condition, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eq", "==", "=":
		return CondEq, true
	case "neq", "!=", "ne":
		return CondNeq, true
	case "gt", ">":
		return CondGt, true
	case "lt", "<":
		return CondLt, true
	case "gte", ">=", "ge":
		return CondGte, true
	case "lte", "<=", "le":
		return CondLte, true
	case "contains":
		return CondContains, true
	case "startswith":
		return CondStartsWith, true
	case "endswith":
		return CondEndsWith, true
	case "isnull", "is_null":
		return CondIsNull, true
	case "notnull", "not_null":
		return CondNotNull, true
	}
	return "", false
}

func (c Condition) needsValue() bool {
	return c != CondIsNull && c != CondNotNull
}

func (c Condition) isText() bool {
	return c == CondContains || c == CondStartsWith || c == CondEndsWith
}

// FilterRows keeps (or with Drop, removes) the rows whose Column cell matches Condition.
// Contains is a literal substring test unless Pattern is set.
type FilterRows struct {
	Column    string
	Condition Condition
	Value     gjson.Result
	Pattern   *regexp.Regexp
	Drop      bool
}

func (FilterRows) Name() string { return OpFilterRows }

func (op FilterRows) apply(e *Engine, f *frame.Frame) (Result, error) {
	col, err := f.Lookup(op.Column)
	if err != nil {
		return Result{}, err
	}

	var target frame.Value
	var needle string
	switch {
	case op.Condition.isText():
		needle = op.Value.String()
	case op.Condition.needsValue():
		target, err = e.paramValue(op.Value, col)
		if err != nil {
			return Result{}, err
		}
	}

	match := func(v frame.Value) bool {
		switch op.Condition {
		case CondIsNull:
			return v.IsMissing()
		case CondNotNull:
			return !v.IsMissing()
		case CondNeq:
			return v.IsMissing() || !v.Equal(target)
		}
		if v.IsMissing() {
			return false
		}
		switch op.Condition {
		case CondEq:
			return v.Equal(target)
		case CondContains:
			if op.Pattern != nil {
				return op.Pattern.MatchString(v.String())
			}
			return strings.Contains(v.String(), needle)
		case CondStartsWith:
			return strings.HasPrefix(v.String(), needle)
		case CondEndsWith:
			return strings.HasSuffix(v.String(), needle)
		}
		if v.Type != target.Type {
			return false
		}
		c := frame.Compare(v, target)
		switch op.Condition {
		case CondGt:
			return c > 0
		case CondLt:
			return c < 0
		case CondGte:
			return c >= 0
		case CondLte:
			return c <= 0
		}
		return false
	}

	out := f.Filter(func(row int) bool {
		return match(col.At(row)) != op.Drop
	})
	removed := f.NumRows() - out.NumRows()
	verb := "Kept"
	if op.Drop {
		verb = "Removed"
	}
	desc := fmt.Sprintf("'%s' %s", op.Column, op.Condition)
	if op.Condition.needsValue() {
		desc += " " + op.Value.String()
	}
	if removed == 0 {
		return unchanged(f, fmt.Sprintf("Filter %s matched no rows to remove; data unchanged.", desc)), nil
	}
	if op.Drop {
		return changed(out, fmt.Sprintf("%s %d row(s) where %s; %d remain.", verb, removed, desc, out.NumRows())), nil
	}
	return changed(out, fmt.Sprintf("%s %d of %d rows where %s.", verb, out.NumRows(), f.NumRows(), desc)), nil
}

// SortValues orders rows by Columns. Missing cells sort last in either direction.
type SortValues struct {
	Columns   []string
	Ascending []bool
}

func (SortValues) Name() string { return OpSortValues }

func (op SortValues) apply(_ *Engine, f *frame.Frame) (Result, error) {
	cols, err := lookupAll(f, op.Columns)
	if err != nil {
		return Result{}, err
	}
	order := make([]int, f.NumRows())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		for k, col := range cols {
			va, vb := col.At(order[a]), col.At(order[b])
			if va.IsMissing() || vb.IsMissing() {
				if va.IsMissing() == vb.IsMissing() {
					continue
				}
				return vb.IsMissing()
			}
			c := frame.Compare(va, vb)
			if c == 0 {
				continue
			}
			if k < len(op.Ascending) && !op.Ascending[k] {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	identity := true
	for i, r := range order {
		if i != r {
			identity = false
			break
		}
	}
	label := strings.Join(op.Columns, ", ")
	if identity {
		return unchanged(f, fmt.Sprintf("Data is already sorted by %s.", label)), nil
	}
	res := changed(f.Take(order), fmt.Sprintf("Sorted data by %s.", label))
	res.Change = history.Permutation{Order: order}
	return res, nil
}

// lookupAll resolves names to columns; an empty list means every column
func lookupAll(f *frame.Frame, names []string) ([]*frame.Column, error) {
	if len(names) == 0 {
		return f.Columns(), nil
	}
	cols := make([]*frame.Column, 0, len(names))
	for _, name := range names {
		col, err := f.Lookup(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// paramValue converts a client-supplied value to the representation of col's dtype
func (e *Engine) paramValue(r gjson.Result, col *frame.Column) (frame.Value, error) {
	var raw frame.Value
	switch r.Type {
	case gjson.Number:
		raw = frame.NewNumericValue(r.Num)
	case gjson.True, gjson.False:
		raw = frame.NewBooleanValue(r.Bool())
	case gjson.Null:
		return frame.Missing(), nil
	default:
		raw = frame.NewStringValue(r.String())
	}
	target := col.DType()
	if target == frame.DTypeInteger {
		target = frame.DTypeFloat
	}
	v, ok := e.coercer.ConvertValue(raw, target)
	if !ok {
		return frame.Value{}, core.NewInvalidParameterError("value '%s' is not compatible with %s column '%s'", r.String(), col.DType(), col.Name())
	}
	return v, nil
}
