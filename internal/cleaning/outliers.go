package cleaning

import (
	"errors"
	"fmt"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"
	"tidyframe/internal/outlier"
)

// Outliers removes or clips the cells of a numeric column that fall outside IQR or z-score bounds
type Outliers struct {
	Column string
	Method outlier.Method
	// Param is the IQR factor or the z-score threshold
	Param float64
	Clip  bool
}

func (op Outliers) Name() string {
	switch {
	case op.Method == outlier.MethodIQR && op.Clip:
		return OpClipOutliersIQR
	case op.Method == outlier.MethodIQR:
		return OpRemoveOutliersIQR
	case op.Clip:
		return OpClipOutliersZScore
	}
	return OpRemoveOutliersZScore
}

func (op Outliers) describe() string {
	if op.Method == outlier.MethodIQR {
		return outlier.IQRLabel(op.Param)
	}
	return fmt.Sprintf("z-score %s", outlier.ZScoreLabel(op.Param))
}

func (op Outliers) apply(_ *Engine, f *frame.Frame) (Result, error) {
	col, err := f.Lookup(op.Column)
	if err != nil {
		return Result{}, err
	}
	if !col.DType().IsNumeric() {
		return Result{}, core.NewInvalidParameterError("column '%s' is %s; outlier handling needs a numeric column", op.Column, col.DType())
	}
	if op.Param <= 0 {
		return Result{}, core.NewInvalidParameterError("outlier parameter must be greater than zero")
	}

	b, err := outlier.BoundsFor(col.Floats(), op.Method, op.Param)
	if err != nil {
		if errors.Is(err, outlier.ErrTooFewValues) || errors.Is(err, outlier.ErrZeroVariance) || errors.Is(err, outlier.ErrInvalidSpread) {
			return unchanged(f, fmt.Sprintf("Skipped outlier handling on '%s': %v.", op.Column, err)), nil
		}
		return Result{}, err
	}

	if op.Clip {
		clipped, n := outlier.Clip(col, b)
		if n == 0 {
			return unchanged(f, fmt.Sprintf("No outliers found in '%s' (%s).", op.Column, op.describe())), nil
		}
		out, err := f.ReplaceColumns(clipped)
		if err != nil {
			return Result{}, err
		}
		return changed(out, fmt.Sprintf("Clipped %d outlier(s) in '%s' to [%s, %s] (%s).",
			n, op.Column, frame.FormatNumber(b.Rounded().Lower), frame.FormatNumber(b.Rounded().Upper), op.describe())), nil
	}

	flags := outlier.OutsideRows(col, b)
	out := f.Filter(func(row int) bool { return !flags[row] })
	removed := f.NumRows() - out.NumRows()
	if removed == 0 {
		return unchanged(f, fmt.Sprintf("No outliers found in '%s' (%s).", op.Column, op.describe())), nil
	}
	return changed(out, fmt.Sprintf("Removed %d row(s) with outliers in '%s' (%s).", removed, op.Column, op.describe())), nil
}
