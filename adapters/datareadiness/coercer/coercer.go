package coercer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tidyframe/domain/frame"

	"github.com/ncruces/go-strftime"
)

// TypeCoercer handles deterministic cell parsing and column dtype conversion
type TypeCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines the coercion thresholds and rules
type CoercionConfig struct {
	DatetimeThreshold float64  `json:"datetime_threshold"`  // share of non-missing cells that must parse as timestamps
	CategoryMaxRatio  float64  `json:"category_max_ratio"`  // distinct/rows below which text becomes categorical
	CategoryMaxUnique int      `json:"category_max_unique"` // distinct count at or below which text becomes categorical
	MissingTokens     []string `json:"missing_tokens"`      // raw cell spellings read as missing
	TimestampFormats  []string `json:"timestamp_formats"`
}

// DefaultCoercionConfig returns sensible defaults
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		DatetimeThreshold: 0.8,
		CategoryMaxRatio:  0.02,
		CategoryMaxUnique: 10,
		MissingTokens:     []string{"", "na", "n/a", "nan", "null", "none", "#n/a", "-nan", "<na>", "nat"},
		TimestampFormats: []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"2006-01-02 15:04",
			"2006-01-02",
			"01/02/2006 15:04:05",
			"01/02/2006",
			"2006/01/02",
			"02-Jan-2006",
			"2 Jan 2006",
			"Jan 2, 2006",
			"January 2, 2006",
		},
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	return &TypeCoercer{config: config}
}

// Default returns a coercer with DefaultCoercionConfig
func Default() *TypeCoercer {
	return NewTypeCoercer(DefaultCoercionConfig())
}

// Config exposes the thresholds in use
func (c *TypeCoercer) Config() CoercionConfig {
	return c.config
}

var thousandsPattern = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// IsMissingToken reports whether a raw cell spells a missing value
func (c *TypeCoercer) IsMissingToken(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, token := range c.config.MissingTokens {
		if lower == token {
			return true
		}
	}
	return false
}

// ParseNumeric parses a number, accepting thousands separators, currency symbols and
// accounting-style negatives like (123)
func (c *TypeCoercer) ParseNumeric(s string) (float64, bool) {
	cleanVal := strings.TrimSpace(s)
	if cleanVal == "" {
		return 0, false
	}

	isNegative := false
	if strings.HasPrefix(cleanVal, "(") && strings.HasSuffix(cleanVal, ")") {
		cleanVal = strings.TrimSuffix(strings.TrimPrefix(cleanVal, "("), ")")
		isNegative = true
	}

	for _, symbol := range []string{"$", "€", "£", "¥"} {
		cleanVal = strings.TrimPrefix(cleanVal, symbol)
		cleanVal = strings.TrimSuffix(cleanVal, symbol)
	}
	cleanVal = strings.TrimSpace(cleanVal)

	if thousandsPattern.MatchString(cleanVal) {
		cleanVal = strings.ReplaceAll(cleanVal, ",", "")
	}

	val, ok := parsePlainFloat(cleanVal)
	if !ok {
		return 0, false
	}
	if isNegative {
		val = -val
	}
	return val, true
}

// parsePlainFloat accepts only decimal and scientific notation
func parsePlainFloat(s string) (float64, bool) {
	if s == "" || strings.ContainsAny(s, "xXpP_") {
		return 0, false
	}
	val, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

// ParseBoolean accepts the usual spellings of true/false
func (c *TypeCoercer) ParseBoolean(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "1", "yes", "y", "on":
		return true, true
	case "false", "f", "0", "no", "n", "off":
		return false, true
	}
	return false, false
}

// ParseTimestamp tries each configured layout in order
func (c *TypeCoercer) ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range c.config.TimestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTimestampFormat parses s with an explicit strftime format such as "%d/%m/%Y"
func (c *TypeCoercer) ParseTimestampFormat(s, format string) (time.Time, bool) {
	t, err := strftime.Parse(format, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CoerceCell converts a raw file cell the way a reader infers it: missing tokens, then plain
// numbers, then true/false literals, otherwise the raw string.
func (c *TypeCoercer) CoerceCell(raw string) frame.Value {
	if c.IsMissingToken(raw) {
		return frame.Missing()
	}
	trimmed := strings.TrimSpace(raw)
	if val, ok := parsePlainFloat(trimmed); ok {
		return frame.NewNumericValue(val)
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return frame.NewBooleanValue(true)
	case "false":
		return frame.NewBooleanValue(false)
	}
	return frame.NewStringValue(raw)
}

// InferColumn builds a typed column from raw strings. A column is numeric or boolean only when
// every non-missing cell agrees; anything mixed stays text with the raw strings preserved.
func (c *TypeCoercer) InferColumn(name string, raw []string) *frame.Column {
	cells := make([]frame.Value, len(raw))
	numeric, boolean, present := 0, 0, 0
	integral := true
	for i, s := range raw {
		v := c.CoerceCell(s)
		cells[i] = v
		switch v.Type {
		case frame.ValueTypeMissing:
			continue
		case frame.ValueTypeNumeric:
			numeric++
			if v.Num != math.Trunc(v.Num) {
				integral = false
			}
		case frame.ValueTypeBoolean:
			boolean++
		}
		present++
	}

	switch {
	case present == 0:
		return frame.NewColumn(name, frame.DTypeFloat, cells)
	case numeric == present:
		if integral {
			return frame.NewColumn(name, frame.DTypeInteger, cells)
		}
		return frame.NewColumn(name, frame.DTypeFloat, cells)
	case boolean == present:
		return frame.NewColumn(name, frame.DTypeBoolean, cells)
	}

	for i, s := range raw {
		if !cells[i].IsMissing() {
			cells[i] = frame.NewStringValue(s)
		}
	}
	return frame.NewColumn(name, frame.DTypeText, cells)
}

// NormalizeTarget maps user-facing dtype names onto column dtypes
func (c *TypeCoercer) NormalizeTarget(name string) (frame.DType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "integer", "int64", "int32":
		return frame.DTypeInteger, true
	case "float", "double", "number", "numeric", "float64":
		return frame.DTypeFloat, true
	case "str", "string", "text", "object":
		return frame.DTypeText, true
	case "datetime", "date", "datetime64", "timestamp":
		return frame.DTypeDatetime, true
	case "bool", "boolean":
		return frame.DTypeBoolean, true
	case "category", "categorical":
		return frame.DTypeCategory, true
	}
	return "", false
}

// ConvertValue converts a single cell to the representation used by target
func (c *TypeCoercer) ConvertValue(v frame.Value, target frame.DType) (frame.Value, bool) {
	if v.IsMissing() {
		return v, true
	}
	switch target {
	case frame.DTypeText, frame.DTypeCategory:
		if v.Type == frame.ValueTypeString {
			return v, true
		}
		return frame.NewStringValue(v.String()), true

	case frame.DTypeFloat, frame.DTypeInteger:
		var n float64
		switch v.Type {
		case frame.ValueTypeNumeric:
			n = v.Num
		case frame.ValueTypeBoolean:
			if v.Bool {
				n = 1
			}
		case frame.ValueTypeString:
			parsed, ok := c.ParseNumeric(v.Str)
			if !ok {
				return frame.Value{}, false
			}
			n = parsed
		default:
			return frame.Value{}, false
		}
		if target == frame.DTypeInteger && n != math.Trunc(n) {
			return frame.Value{}, false
		}
		return frame.NewNumericValue(n), true

	case frame.DTypeDatetime:
		switch v.Type {
		case frame.ValueTypeTimestamp:
			return v, true
		case frame.ValueTypeString:
			if t, ok := c.ParseTimestamp(v.Str); ok {
				return frame.NewTimestampValue(t), true
			}
		}
		return frame.Value{}, false

	case frame.DTypeBoolean:
		switch v.Type {
		case frame.ValueTypeBoolean:
			return v, true
		case frame.ValueTypeNumeric:
			if v.Num == 0 || v.Num == 1 {
				return frame.NewBooleanValue(v.Num == 1), true
			}
		case frame.ValueTypeString:
			if b, ok := c.ParseBoolean(v.Str); ok {
				return frame.NewBooleanValue(b), true
			}
		}
		return frame.Value{}, false
	}
	return frame.Value{}, false
}

// Conversion is the outcome of converting a whole column. Cells that failed are missing in Column.
type Conversion struct {
	Column  *frame.Column
	Failed  int
	Example string
}

// Convert converts every cell of col to target
func (c *TypeCoercer) Convert(col *frame.Column, target frame.DType) Conversion {
	out := make([]frame.Value, col.Len())
	result := Conversion{}
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		converted, ok := c.ConvertValue(v, target)
		if !ok {
			result.Failed++
			if result.Example == "" {
				result.Example = v.String()
			}
			out[i] = frame.Missing()
			continue
		}
		out[i] = converted
	}
	result.Column = frame.NewColumn(col.Name(), target, out)
	return result
}

// ConvertWithFormat parses a column as timestamps using an explicit strftime format;
// cells already holding timestamps are kept.
func (c *TypeCoercer) ConvertWithFormat(col *frame.Column, format string) Conversion {
	out := make([]frame.Value, col.Len())
	result := Conversion{}
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		switch {
		case v.IsMissing():
			out[i] = v
		case v.Type == frame.ValueTypeTimestamp:
			out[i] = v
		default:
			t, ok := c.ParseTimestampFormat(v.String(), format)
			if !ok {
				result.Failed++
				if result.Example == "" {
					result.Example = v.String()
				}
				out[i] = frame.Missing()
				continue
			}
			out[i] = frame.NewTimestampValue(t)
		}
	}
	result.Column = frame.NewColumn(col.Name(), frame.DTypeDatetime, out)
	return result
}

// InferNumeric converts a text column to integer or float when every non-missing cell parses
func (c *TypeCoercer) InferNumeric(col *frame.Column) (*frame.Column, bool) {
	conv := c.Convert(col, frame.DTypeFloat)
	if conv.Failed > 0 || conv.Column.MissingCount() == conv.Column.Len() {
		return nil, false
	}
	for _, n := range conv.Column.Floats() {
		if n != math.Trunc(n) {
			return conv.Column, true
		}
	}
	return conv.Column.WithDType(frame.DTypeInteger), true
}

// ShouldCategorize applies the low-cardinality rule used when optimizing text columns
func (c *TypeCoercer) ShouldCategorize(col *frame.Column) bool {
	if !col.DType().IsTextLike() || col.DType() == frame.DTypeCategory || col.Len() == 0 {
		return false
	}
	distinct := col.Distinct()
	if distinct == 0 {
		return false
	}
	return float64(distinct)/float64(col.Len()) < c.config.CategoryMaxRatio || distinct <= c.config.CategoryMaxUnique
}

// TypeAnalysis contains the results of type distribution analysis
type TypeAnalysis struct {
	TotalCount     int     `json:"total_count"`
	ValidCount     int     `json:"valid_count"`
	NumericCount   int     `json:"numeric_count"`
	BooleanCount   int     `json:"boolean_count"`
	TimestampCount int     `json:"timestamp_count"`
	NumericRatio   float64 `json:"numeric_ratio"`
	BooleanRatio   float64 `json:"boolean_ratio"`
	TimestampRatio float64 `json:"timestamp_ratio"`
}

// AnalyzeTypeDistribution counts how many non-missing cells parse as each type
func (c *TypeCoercer) AnalyzeTypeDistribution(col *frame.Column) TypeAnalysis {
	analysis := TypeAnalysis{TotalCount: col.Len()}
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		if v.IsMissing() {
			continue
		}
		analysis.ValidCount++
		if _, ok := c.ConvertValue(v, frame.DTypeFloat); ok {
			analysis.NumericCount++
		}
		if _, ok := c.ConvertValue(v, frame.DTypeBoolean); ok {
			analysis.BooleanCount++
		}
		if _, ok := c.ConvertValue(v, frame.DTypeDatetime); ok {
			analysis.TimestampCount++
		}
	}
	if analysis.ValidCount > 0 {
		valid := float64(analysis.ValidCount)
		analysis.NumericRatio = float64(analysis.NumericCount) / valid
		analysis.BooleanRatio = float64(analysis.BooleanCount) / valid
		analysis.TimestampRatio = float64(analysis.TimestampCount) / valid
	}
	return analysis
}
