package cleaning

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"tidyframe/domain/core"
	"tidyframe/internal/outlier"

	"github.com/tidwall/gjson"
)

// Decode validates the parameters of a named operation. Parameters arrive as loose JSON
// from the client: lists may be arrays or comma-separated strings, booleans may be strings.
func Decode(name string, raw []byte) (Operation, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = []byte("{}")
	}
	if !gjson.ValidBytes(raw) {
		return nil, core.NewInvalidParameterError("parameters for '%s' are not valid JSON", name)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, core.NewInvalidParameterError("parameters for '%s' must be an object", name)
	}
	p := params{op: name, root: root}

	switch name {
	case OpRemoveDuplicates:
		subset, err := p.optionalList("subset")
		if err != nil {
			return nil, err
		}
		return RemoveDuplicates{Subset: subset}, nil

	case OpRemoveMissing:
		how := strings.ToLower(p.stringOr("how", "any"))
		if how != "any" && how != "all" {
			return nil, core.NewInvalidParameterError("'how' must be 'any' or 'all', got '%s'", how)
		}
		subset, err := p.optionalList("subset")
		if err != nil {
			return nil, err
		}
		return RemoveMissing{How: how, Subset: subset}, nil

	case OpFilterRows:
		return decodeFilter(p)

	case OpSortValues:
		columns, err := p.requiredList("columns_to_sort_by")
		if err != nil {
			return nil, err
		}
		ascending, err := p.ascending(len(columns))
		if err != nil {
			return nil, err
		}
		return SortValues{Columns: columns, Ascending: ascending}, nil

	case OpRenameColumn:
		oldName, err := p.requiredString("old_name")
		if err != nil {
			return nil, err
		}
		newName, err := p.requiredString("new_name")
		if err != nil {
			return nil, err
		}
		return RenameColumn{OldName: oldName, NewName: strings.TrimSpace(newName)}, nil

	case OpDropColumns:
		columns, err := p.requiredList("columns_to_drop")
		if err != nil {
			return nil, err
		}
		return DropColumns{Columns: columns}, nil

	case OpSplitColumn:
		column, err := p.requiredString("column")
		if err != nil {
			return nil, err
		}
		delimiter := p.root.Get("delimiter").String()
		if delimiter == "" {
			return nil, core.NewInvalidParameterError("missing required parameter 'delimiter' for %s", name)
		}
		names, err := p.optionalList("new_column_names")
		if err != nil {
			return nil, err
		}
		return SplitColumn{Column: column, Delimiter: delimiter, NewNames: names}, nil

	case OpCombineColumns:
		columns, err := p.requiredList("columns_to_combine")
		if err != nil {
			return nil, err
		}
		if len(columns) < 2 {
			return nil, core.NewInvalidParameterError("select at least two columns to combine")
		}
		newName, err := p.requiredString("new_column_name")
		if err != nil {
			return nil, err
		}
		return CombineColumns{Columns: columns, NewName: strings.TrimSpace(newName), Separator: p.root.Get("separator").String()}, nil

	case OpFillMissing:
		return decodeFill(p)

	case OpRemoveSpaces:
		column, err := p.requiredString("column")
		if err != nil {
			return nil, err
		}
		return RemoveSpaces{Column: column}, nil

	case OpChangeDType:
		column, err := p.requiredString("column")
		if err != nil {
			return nil, err
		}
		target, err := p.requiredString("target_type")
		if err != nil {
			return nil, err
		}
		return ChangeDType{Column: column, TargetType: target}, nil

	case OpFixDatetime:
		column, err := p.requiredString("column")
		if err != nil {
			return nil, err
		}
		return FixDatetime{Column: column, Format: strings.TrimSpace(p.root.Get("format").String())}, nil

	case OpReplaceText:
		column, err := p.requiredString("column")
		if err != nil {
			return nil, err
		}
		find := p.root.Get("text_to_find").String()
		if find == "" {
			return nil, core.NewInvalidParameterError("missing required parameter 'text_to_find' for %s", name)
		}
		useRegex, err := p.optionalBool("use_regex", false)
		if err != nil {
			return nil, err
		}
		return ReplaceText{Column: column, Find: find, Replace: p.root.Get("replace_with").String(), UseRegex: useRegex}, nil

	case OpChangeCase:
		column, err := p.requiredString("column")
		if err != nil {
			return nil, err
		}
		caseType := strings.ToLower(p.stringOr("case_type", ""))
		switch caseType {
		case CaseLower, CaseUpper, CaseTitle:
		default:
			return nil, core.NewInvalidParameterError("case_type must be one of lower, upper, title; got '%s'", caseType)
		}
		return ChangeCase{Column: column, Case: caseType}, nil

	case OpMapValues:
		return decodeMapValues(p)

	case OpCheckIDUniqueness:
		column, err := p.requiredString("column")
		if err != nil {
			return nil, err
		}
		return CheckIDUniqueness{Column: column}, nil

	case OpCheckIDFormat:
		column, err := p.requiredString("column")
		if err != nil {
			return nil, err
		}
		pattern := p.root.Get("pattern").String()
		if pattern == "" {
			return nil, core.NewInvalidParameterError("missing required parameter 'pattern' for %s", name)
		}
		return CheckIDFormat{Column: column, Pattern: pattern}, nil

	case OpRemoveOutliersIQR, OpClipOutliersIQR:
		return decodeOutlier(p, outlier.MethodIQR, "factor", outlier.DefaultIQRFactor, name == OpClipOutliersIQR)

	case OpRemoveOutliersZScore, OpClipOutliersZScore:
		return decodeOutlier(p, outlier.MethodZScore, "threshold", outlier.DefaultZScoreThreshold, name == OpClipOutliersZScore)

	case OpOptimizeCategories:
		return OptimizeCategories{}, nil
	}
	return nil, core.NewInvalidParameterError("unknown operation '%s'", name)
}

func decodeFilter(p params) (Operation, error) {
	column, err := p.requiredString("column")
	if err != nil {
		return nil, err
	}
	cond, ok := normalizeCondition(p.stringOr("condition", ""))
	if !ok {
		return nil, core.NewInvalidParameterError("unknown filter condition '%s'", p.root.Get("condition").String())
	}
	value := p.root.Get("value")
	if cond.needsValue() && !present(value) {
		return nil, core.NewInvalidParameterError("filter condition '%s' needs a value", cond)
	}
	action := strings.ToLower(p.stringOr("action", "keep"))
	var drop bool
	switch action {
	case "keep":
	case "drop", "remove":
		drop = true
	default:
		return nil, core.NewInvalidParameterError("filter action must be 'keep' or 'drop', got '%s'", action)
	}
	useRegex, err := p.optionalBool("use_regex", false)
	if err != nil {
		return nil, err
	}
	op := FilterRows{Column: column, Condition: cond, Value: value, Drop: drop}
	if useRegex {
		if cond != CondContains {
			return nil, core.NewInvalidParameterError("'use_regex' only applies to the contains condition")
		}
		if op.Pattern, err = regexp.Compile(value.String()); err != nil {
			return nil, core.NewPatternError(value.String(), err)
		}
	}
	return op, nil
}

func decodeFill(p params) (Operation, error) {
	method := strings.ToLower(p.stringOr("method", ""))
	switch method {
	case FillValue, FillMean, FillMedian, FillMode, FillForward, FillBackward, FillForwardBackward:
	default:
		return nil, core.NewInvalidParameterError("fill method must be one of value, mean, median, mode, ffill, bfill, ffill_bfill; got '%s'", method)
	}
	value := p.root.Get("value")
	if method == FillValue && (!present(value) || value.String() == "") {
		return nil, core.NewInvalidParameterError("fill method 'value' needs a non-empty 'value'")
	}
	return FillMissing{Method: method, Value: value, Column: p.root.Get("column").String()}, nil
}

func decodeMapValues(p params) (Operation, error) {
	column, err := p.requiredString("column")
	if err != nil {
		return nil, err
	}
	mapping := p.root.Get("mapping_dict")
	if mapping.Type == gjson.String {
		// clients sometimes send the object JSON-encoded
		mapping = gjson.Parse(mapping.Str)
	}
	if !mapping.IsObject() {
		return nil, core.NewInvalidParameterError("'mapping_dict' must be an object of old -> new values")
	}
	var pairs []Mapping
	mapping.ForEach(func(key, value gjson.Result) bool {
		pairs = append(pairs, Mapping{From: key.String(), To: value})
		return true
	})
	if len(pairs) == 0 {
		return nil, core.NewInvalidParameterError("'mapping_dict' is empty")
	}
	return MapValues{Column: column, Mapping: pairs}, nil
}

func decodeOutlier(p params, method outlier.Method, key string, def float64, clip bool) (Operation, error) {
	column, err := p.requiredString("column")
	if err != nil {
		return nil, err
	}
	param, err := p.positiveFloat(key, def)
	if err != nil {
		return nil, err
	}
	return Outliers{Column: column, Method: method, Param: param, Clip: clip}, nil
}

// params wraps the raw JSON object of one call
type params struct {
	op   string
	root gjson.Result
}

func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

func (p params) stringOr(key, def string) string {
	r := p.root.Get(key)
	if !present(r) || strings.TrimSpace(r.String()) == "" {
		return def
	}
	return strings.TrimSpace(r.String())
}

func (p params) requiredString(key string) (string, error) {
	r := p.root.Get(key)
	if !present(r) || strings.TrimSpace(r.String()) == "" {
		return "", core.NewInvalidParameterError("missing required parameter '%s' for %s", key, p.op)
	}
	return r.String(), nil
}

// optionalList accepts a JSON array of strings or a comma-separated string
func (p params) optionalList(key string) ([]string, error) {
	r := p.root.Get(key)
	if !present(r) {
		return nil, nil
	}
	var out []string
	switch {
	case r.IsArray():
		for _, item := range r.Array() {
			if item.Type != gjson.String && item.Type != gjson.Number {
				return nil, core.NewInvalidParameterError("'%s' must be a list of column names", key)
			}
			if s := item.String(); s != "" {
				out = append(out, s)
			}
		}
	case r.Type == gjson.String:
		for _, part := range strings.Split(r.Str, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	default:
		return nil, core.NewInvalidParameterError("'%s' must be a list of column names", key)
	}
	return out, nil
}

func (p params) requiredList(key string) ([]string, error) {
	out, err := p.optionalList(key)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, core.NewInvalidParameterError("missing required parameter '%s' for %s", key, p.op)
	}
	return out, nil
}

func (p params) optionalBool(key string, def bool) (bool, error) {
	r := p.root.Get(key)
	if !present(r) {
		return def, nil
	}
	b, ok := parseLooseBool(r)
	if !ok {
		return false, core.NewInvalidParameterError("'%s' must be true or false, got '%s'", key, r.String())
	}
	return b, nil
}

func parseLooseBool(r gjson.Result) (bool, bool) {
	switch r.Type {
	case gjson.True:
		return true, true
	case gjson.False:
		return false, true
	case gjson.Number:
		return r.Num != 0, r.Num == 0 || r.Num == 1
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(r.Str)) {
		case "true", "on", "yes", "1":
			return true, true
		case "false", "off", "no", "0", "":
			return false, true
		}
	}
	return false, false
}

// ascending accepts a single bool or one bool per sort column
func (p params) ascending(n int) ([]bool, error) {
	r := p.root.Get("ascending")
	out := make([]bool, n)
	if !present(r) {
		for i := range out {
			out[i] = true
		}
		return out, nil
	}
	if r.IsArray() {
		items := r.Array()
		if len(items) != n {
			return nil, core.NewInvalidParameterError("'ascending' has %d entries for %d sort columns", len(items), n)
		}
		for i, item := range items {
			b, ok := parseLooseBool(item)
			if !ok {
				return nil, core.NewInvalidParameterError("'ascending' entries must be true or false")
			}
			out[i] = b
		}
		return out, nil
	}
	b, ok := parseLooseBool(r)
	if !ok {
		return nil, core.NewInvalidParameterError("'ascending' must be true or false, got '%s'", r.String())
	}
	for i := range out {
		out[i] = b
	}
	return out, nil
}

func (p params) positiveFloat(key string, def float64) (float64, error) {
	r := p.root.Get(key)
	if !present(r) || (r.Type == gjson.String && strings.TrimSpace(r.Str) == "") {
		return def, nil
	}
	var v float64
	switch r.Type {
	case gjson.Number:
		v = r.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0, core.NewInvalidParameterError("'%s' must be a number, got '%s'", key, r.Str)
		}
		v = parsed
	default:
		return 0, core.NewInvalidParameterError("'%s' must be a number", key)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, core.NewInvalidParameterError("'%s' must be a finite number", key)
	}
	if v <= 0 {
		return 0, core.NewInvalidParameterError("'%s' must be greater than zero", key)
	}
	return v, nil
}
