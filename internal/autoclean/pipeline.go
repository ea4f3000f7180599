package autoclean

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tidyframe/adapters/datareadiness/coercer"
	"tidyframe/domain/frame"
	"tidyframe/internal/cleaning"
	"tidyframe/internal/outlier"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Step names, in execution order
const (
	StepTrim            = "trim_whitespace"
	StepConvertNumeric  = "convert_numeric"
	StepConvertDatetime = "convert_datetime"
	StepConvertCategory = "convert_category"
	StepFillMissing     = "fill_missing"
	StepChangeCase      = "change_case"
	StepOutliers        = "outliers"
)

// StepResult records one attempted step on one column
type StepResult struct {
	Column  string `json:"column"`
	Step    string `json:"step"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason"`
}

// Report is the outcome of a pipeline run
type Report struct {
	Frame       *frame.Frame
	Steps       []StepResult
	RowsRemoved int
	Modified    bool
	// Summary is markdown; Message is the same summary rendered as HTML
	Summary string
	Message string
}

// Applied returns only the steps that changed data
func (r Report) Applied() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Applied {
			out = append(out, s)
		}
	}
	return out
}

// Pipeline runs the fixed auto-clean sequence. Each step is attempted per column and a failure
// is recorded as a skipped step, never returned as an error.
type Pipeline struct {
	engine  *cleaning.Engine
	coercer *coercer.TypeCoercer
}

// NewPipeline builds a pipeline sharing the engine's conversion rules
func NewPipeline(engine *cleaning.Engine) *Pipeline {
	return &Pipeline{engine: engine, coercer: engine.Coercer()}
}

// Run applies cfg to f and returns the cleaned frame. f itself is never modified.
func (p *Pipeline) Run(f *frame.Frame, cfg Config) (Report, error) {
	start := time.Now()
	cols := f.Columns()
	before := make([]frame.DType, len(cols))
	var steps []StepResult
	record := func(column, step string, applied bool, format string, args ...interface{}) {
		steps = append(steps, StepResult{Column: column, Step: step, Applied: applied, Reason: fmt.Sprintf(format, args...)})
	}

	for i, col := range cols {
		before[i] = col.DType()

		// 1. whitespace
		if cfg.TrimWhitespace && col.DType().IsTextLike() {
			if trimmed, n := cleaning.TrimColumn(col); n > 0 {
				col = trimmed
				record(col.Name(), StepTrim, true, "trimmed whitespace in %d value(s)", n)
			}
		}

		// 2. conversions, numeric then datetime then category
		col = p.convert(col, cfg, record)

		// 3. missing values
		if missing := col.MissingCount(); missing > 0 && missing < col.Len() {
			method := cfg.MissingOtherMethod
			if col.DType().IsNumeric() {
				method = cfg.MissingNumericMethod
			}
			if method != MissingNone {
				filled, n, err := p.engine.FillColumn(col, method)
				switch {
				case err != nil:
					record(col.Name(), StepFillMissing, false, "%s fill skipped: %v", method, err)
				case n > 0:
					col = filled
					record(col.Name(), StepFillMissing, true, "filled %d missing value(s) using %s", n, method)
				}
			}
		}

		// 4. case
		if cfg.CaseChangeMethod != CaseNone && col.DType().IsTextLike() {
			if cased, n := cleaning.ApplyCase(col, cfg.CaseChangeMethod); n > 0 {
				col = cased
				record(col.Name(), StepChangeCase, true, "converted %d value(s) to %s case", n, cfg.CaseChangeMethod)
			}
		}

		cols[i] = col
	}

	// 5. outliers, with row removal applied once across all columns
	var drop []bool
	if cfg.OutlierHandling != OutlierNone {
		method, param, clip := outlierMode(cfg)
		for i, col := range cols {
			if !col.DType().IsNumeric() {
				continue
			}
			b, err := outlier.BoundsFor(col.Floats(), method, param)
			if err != nil {
				if errors.Is(err, outlier.ErrTooFewValues) || errors.Is(err, outlier.ErrZeroVariance) || errors.Is(err, outlier.ErrInvalidSpread) {
					record(col.Name(), StepOutliers, false, "outlier detection skipped: %v", err)
					continue
				}
				return Report{}, err
			}
			if clip {
				if clipped, n := outlier.Clip(col, b); n > 0 {
					cols[i] = clipped
					record(col.Name(), StepOutliers, true, "clipped %d outlier(s) to [%s, %s]",
						n, frame.FormatNumber(b.Rounded().Lower), frame.FormatNumber(b.Rounded().Upper))
				}
				continue
			}
			flags := outlier.OutsideRows(col, b)
			flagged := 0
			if drop == nil {
				drop = make([]bool, f.NumRows())
			}
			for r, out := range flags {
				if out {
					flagged++
					drop[r] = true
				}
			}
			if flagged > 0 {
				record(col.Name(), StepOutliers, true, "flagged %d row(s) with outliers for removal", flagged)
			}
		}
	}

	out, err := frame.New(cols...)
	if err != nil {
		return Report{}, err
	}
	removed := 0
	if drop != nil {
		filtered := out.Filter(func(row int) bool { return !drop[row] })
		removed = out.NumRows() - filtered.NumRows()
		out = filtered
	}

	report := Report{Frame: out, Steps: steps, RowsRemoved: removed}
	report.Modified = removed > 0 || len(report.Applied()) > 0
	if !report.Modified {
		report.Frame = f
	}
	report.Summary = summarize(report, f, before)
	report.Message = renderSummary(report.Summary)

	log.Printf("[AutoClean] Finished in %s: %d step(s) applied, %d skipped, %d row(s) removed",
		time.Since(start).Round(time.Millisecond), len(report.Applied()), len(steps)-len(report.Applied()), removed)
	return report, nil
}

// convert attempts the type conversions on a text column
func (p *Pipeline) convert(col *frame.Column, cfg Config, record func(string, string, bool, string, ...interface{})) *frame.Column {
	if col.DType() != frame.DTypeText {
		return col
	}
	present := col.Len() - col.MissingCount()
	if present == 0 {
		return col
	}

	if cfg.ConvertNumeric {
		if numeric, ok := p.coercer.InferNumeric(col); ok {
			record(col.Name(), StepConvertNumeric, true, "converted to %s", numeric.DType())
			return numeric
		}
		conv := p.coercer.Convert(col, frame.DTypeFloat)
		record(col.Name(), StepConvertNumeric, false, "%d value(s) are not numeric (e.g. '%s')", conv.Failed, conv.Example)
	}

	if cfg.ConvertDatetime {
		conv := p.coercer.Convert(col, frame.DTypeDatetime)
		parsed := present - conv.Failed
		ratio := float64(parsed) / float64(present)
		if parsed > 0 && ratio >= p.coercer.Config().DatetimeThreshold {
			if conv.Failed > 0 {
				record(col.Name(), StepConvertDatetime, true, "converted to datetime; %d unparseable value(s) set to missing", conv.Failed)
			} else {
				record(col.Name(), StepConvertDatetime, true, "converted to datetime")
			}
			return conv.Column
		}
		record(col.Name(), StepConvertDatetime, false, "only %.0f%% of values parse as dates", ratio*100)
	}

	if cfg.ConvertCategory {
		if p.coercer.ShouldCategorize(col) {
			record(col.Name(), StepConvertCategory, true, "converted to category (%d distinct values)", col.Distinct())
			return col.WithDType(frame.DTypeCategory)
		}
		record(col.Name(), StepConvertCategory, false, "%d distinct values is too many for a category", col.Distinct())
	}
	return col
}

func outlierMode(cfg Config) (outlier.Method, float64, bool) {
	switch cfg.OutlierHandling {
	case OutlierClipIQR:
		return outlier.MethodIQR, cfg.OutlierIQRFactor, true
	case OutlierRemoveIQR:
		return outlier.MethodIQR, cfg.OutlierIQRFactor, false
	case OutlierClipZScore:
		return outlier.MethodZScore, cfg.OutlierZScoreThreshold, true
	}
	return outlier.MethodZScore, cfg.OutlierZScoreThreshold, false
}

// summarize groups applied steps per column in column order, then lists skipped steps
func summarize(r Report, original *frame.Frame, before []frame.DType) string {
	var b strings.Builder
	if !r.Modified {
		b.WriteString("**Auto Clean complete.** No cleaning actions were needed for the current configuration.\n")
	} else {
		b.WriteString("**Auto Clean complete.** Actions performed:\n\n")
		for i, col := range original.Columns() {
			var actions []string
			for _, s := range r.Steps {
				if s.Applied && s.Column == col.Name() {
					actions = append(actions, s.Reason)
				}
			}
			if len(actions) == 0 {
				continue
			}
			after := before[i]
			if c, ok := r.Frame.Column(col.Name()); ok {
				after = c.DType()
			}
			fmt.Fprintf(&b, "- **%s** (%s → %s): %s\n", escapeMarkdown(col.Name()), before[i], after, escapeMarkdown(strings.Join(actions, "; ")))
		}
		if r.RowsRemoved > 0 {
			fmt.Fprintf(&b, "- Removed %d row(s) containing outliers.\n", r.RowsRemoved)
		}
	}

	var skipped []StepResult
	for _, s := range r.Steps {
		if !s.Applied {
			skipped = append(skipped, s)
		}
	}
	if len(skipped) > 0 {
		b.WriteString("\nSkipped:\n\n")
		for _, s := range skipped {
			fmt.Fprintf(&b, "- **%s** %s: %s\n", escapeMarkdown(s.Column), strings.ReplaceAll(s.Step, "_", " "), escapeMarkdown(s.Reason))
		}
	}
	return b.String()
}

// escapeMarkdown backslash-escapes markdown and HTML metacharacters in column names and cell values
func escapeMarkdown(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if bytes.IndexByte(parser.EscapeChars, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func renderSummary(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML})
	return strings.TrimSpace(string(markdown.ToHTML([]byte(md), p, renderer)))
}
