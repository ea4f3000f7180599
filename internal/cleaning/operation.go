package cleaning

import (
	"log"
	"time"

	"tidyframe/adapters/datareadiness/coercer"
	"tidyframe/domain/frame"
	"tidyframe/internal/history"
)

// Operation names accepted by the engine
const (
	OpRemoveDuplicates     = "remove_duplicates"
	OpRemoveMissing        = "remove_missing"
	OpFilterRows           = "filter_rows"
	OpSortValues           = "sort_values"
	OpRenameColumn         = "rename_column"
	OpDropColumns          = "drop_columns"
	OpSplitColumn          = "split_column"
	OpCombineColumns       = "combine_columns"
	OpFillMissing          = "fill_missing"
	OpRemoveSpaces         = "remove_spaces"
	OpChangeDType          = "change_dtype"
	OpFixDatetime          = "fix_datetime"
	OpReplaceText          = "replace_text"
	OpChangeCase           = "change_case"
	OpMapValues            = "map_values"
	OpCheckIDUniqueness    = "check_id_uniqueness"
	OpCheckIDFormat        = "check_id_format"
	OpRemoveOutliersIQR    = "remove_outliers_iqr"
	OpClipOutliersIQR      = "clip_outliers_iqr"
	OpRemoveOutliersZScore = "remove_outliers_zscore"
	OpClipOutliersZScore   = "clip_outliers_zscore"
	OpOptimizeCategories   = "optimize_categories"
)

// Names lists every operation Decode understands
func Names() []string {
	return []string{
		OpRemoveDuplicates, OpRemoveMissing, OpFilterRows, OpSortValues,
		OpRenameColumn, OpDropColumns, OpSplitColumn, OpCombineColumns,
		OpFillMissing, OpRemoveSpaces, OpChangeDType, OpFixDatetime,
		OpReplaceText, OpChangeCase, OpMapValues,
		OpCheckIDUniqueness, OpCheckIDFormat,
		OpRemoveOutliersIQR, OpClipOutliersIQR, OpRemoveOutliersZScore, OpClipOutliersZScore,
		OpOptimizeCategories,
	}
}

// Operation is one validated, ready-to-run transform. The set is closed: only this package
// can implement it, and Decode switches over every variant.
type Operation interface {
	Name() string
	apply(e *Engine, f *frame.Frame) (Result, error)
}

// Result is what applying an operation produced. Frame is the input frame when Modified is false.
type Result struct {
	Frame    *frame.Frame
	Message  string
	Modified bool
	// Change is set by invertible operations; nil means record a snapshot
	Change history.Change
}

func unchanged(f *frame.Frame, message string) Result {
	return Result{Frame: f, Message: message}
}

func changed(f *frame.Frame, message string) Result {
	return Result{Frame: f, Message: message, Modified: true}
}

// Engine applies operations to frames. It holds no per-session state.
type Engine struct {
	coercer *coercer.TypeCoercer
}

// NewEngine creates an engine using c for all value conversions
func NewEngine(c *coercer.TypeCoercer) *Engine {
	if c == nil {
		c = coercer.Default()
	}
	return &Engine{coercer: c}
}

// Coercer exposes the conversion rules the engine uses
func (e *Engine) Coercer() *coercer.TypeCoercer {
	return e.coercer
}

// Apply runs op against f. On error f is untouched and the error wraps a core sentinel.
func (e *Engine) Apply(f *frame.Frame, op Operation) (Result, error) {
	start := time.Now()
	res, err := op.apply(e, f)
	if err != nil {
		log.Printf("[OperationEngine] %s rejected: %v", op.Name(), err)
		return Result{}, err
	}
	if !res.Modified || res.Frame == nil {
		res.Frame = f
		res.Modified = false
		res.Change = nil
	}
	log.Printf("[OperationEngine] %s finished in %s (modified=%t, %d rows x %d cols)",
		op.Name(), time.Since(start).Round(time.Microsecond), res.Modified, res.Frame.NumRows(), res.Frame.NumCols())
	return res, nil
}

// Run decodes name/params and applies the operation
func (e *Engine) Run(f *frame.Frame, name string, params []byte) (Result, error) {
	op, err := Decode(name, params)
	if err != nil {
		return Result{}, err
	}
	return e.Apply(f, op)
}
