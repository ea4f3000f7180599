package cleaning

import (
	"fmt"
	"strings"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"
	"tidyframe/internal/history"
)

// RenameColumn gives OldName the name NewName
type RenameColumn struct {
	OldName string
	NewName string
}

func (RenameColumn) Name() string { return OpRenameColumn }

func (op RenameColumn) apply(_ *Engine, f *frame.Frame) (Result, error) {
	if _, err := f.Lookup(op.OldName); err != nil {
		return Result{}, err
	}
	if op.NewName == "" {
		return Result{}, core.NewInvalidParameterError("new column name cannot be empty")
	}
	if op.NewName == op.OldName {
		return unchanged(f, fmt.Sprintf("Column '%s' already has that name.", op.OldName)), nil
	}
	if f.HasColumn(op.NewName) {
		return Result{}, core.NewInvalidParameterError("column '%s' already exists", op.NewName)
	}
	out, err := f.RenameColumn(op.OldName, op.NewName)
	if err != nil {
		return Result{}, err
	}
	res := changed(out, fmt.Sprintf("Renamed column '%s' to '%s'.", op.OldName, op.NewName))
	res.Change = history.Rename{Old: op.OldName, New: op.NewName}
	return res, nil
}

// DropColumns removes every named column
type DropColumns struct {
	Columns []string
}

func (DropColumns) Name() string { return OpDropColumns }

func (op DropColumns) apply(_ *Engine, f *frame.Frame) (Result, error) {
	names := dedupe(op.Columns)
	change, err := history.NewDropColumns(f, names)
	if err != nil {
		return Result{}, err
	}
	out, err := f.DropColumns(names...)
	if err != nil {
		return Result{}, err
	}
	res := changed(out, fmt.Sprintf("Dropped %d column(s): %s.", len(names), strings.Join(names, ", ")))
	res.Change = change
	return res, nil
}

// SplitColumn splits a text column on Delimiter into new columns appended at the end
type SplitColumn struct {
	Column    string
	Delimiter string
	NewNames  []string
}

func (SplitColumn) Name() string { return OpSplitColumn }

func (op SplitColumn) apply(_ *Engine, f *frame.Frame) (Result, error) {
	col, err := f.Lookup(op.Column)
	if err != nil {
		return Result{}, err
	}
	if !col.DType().IsTextLike() {
		return Result{}, core.NewInvalidParameterError("column '%s' is %s, only text columns can be split", op.Column, col.DType())
	}

	parts := make([][]string, col.Len())
	width := 0
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		if v.IsMissing() {
			continue
		}
		parts[i] = strings.Split(v.Str, op.Delimiter)
		if len(parts[i]) > width {
			width = len(parts[i])
		}
	}
	if width == 0 {
		return unchanged(f, fmt.Sprintf("Column '%s' has no values to split.", op.Column)), nil
	}

	names := op.NewNames
	if len(names) == 0 {
		names = make([]string, width)
		for i := range names {
			names[i] = fmt.Sprintf("%s_split_%d", op.Column, i+1)
		}
	} else if len(names) != width {
		return Result{}, core.NewInvalidParameterError("splitting '%s' on '%s' yields %d part(s) but %d name(s) were given",
			op.Column, op.Delimiter, width, len(names))
	}
	if err := checkNewNames(f, names); err != nil {
		return Result{}, err
	}

	cols := make([]*frame.Column, width)
	for k := range cols {
		values := make([]frame.Value, col.Len())
		for i := range values {
			if k < len(parts[i]) {
				values[i] = frame.NewStringValue(parts[i][k])
			} else {
				values[i] = frame.Missing()
			}
		}
		cols[k] = frame.NewColumn(names[k], frame.DTypeText, values)
	}
	out, err := f.AppendColumns(cols...)
	if err != nil {
		return Result{}, err
	}
	return changed(out, fmt.Sprintf("Split '%s' into %d column(s): %s.", op.Column, width, strings.Join(names, ", "))), nil
}

// CombineColumns joins the display strings of Columns into a new text column
type CombineColumns struct {
	Columns   []string
	NewName   string
	Separator string
}

func (CombineColumns) Name() string { return OpCombineColumns }

func (op CombineColumns) apply(_ *Engine, f *frame.Frame) (Result, error) {
	cols, err := lookupAll(f, op.Columns)
	if err != nil {
		return Result{}, err
	}
	if err := checkNewNames(f, []string{op.NewName}); err != nil {
		return Result{}, err
	}
	values := make([]frame.Value, f.NumRows())
	parts := make([]string, len(cols))
	for row := range values {
		allMissing := true
		for k, col := range cols {
			v := col.At(row)
			if !v.IsMissing() {
				allMissing = false
			}
			parts[k] = v.String()
		}
		if allMissing {
			values[row] = frame.Missing()
			continue
		}
		values[row] = frame.NewStringValue(strings.Join(parts, op.Separator))
	}
	out, err := f.AppendColumns(frame.NewColumn(op.NewName, frame.DTypeText, values))
	if err != nil {
		return Result{}, err
	}
	return changed(out, fmt.Sprintf("Combined %s into new column '%s'.", strings.Join(op.Columns, ", "), op.NewName)), nil
}

func checkNewNames(f *frame.Frame, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return core.NewInvalidParameterError("new column names cannot be empty")
		}
		if f.HasColumn(name) {
			return core.NewInvalidParameterError("column '%s' already exists", name)
		}
		if seen[name] {
			return core.NewInvalidParameterError("column name '%s' given twice", name)
		}
		seen[name] = true
	}
	return nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
