package formula

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"
	"tidyframe/internal/outlier"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

func number(n float64) frame.Value { return frame.NewNumericValue(n) }
func count(n int) frame.Value      { return frame.NewNumericValue(float64(n)) }

// fromStats maps a montanaflynn result onto a cell; empty input or NaN becomes missing
func fromStats(n float64, err error) frame.Value {
	if err != nil {
		return frame.Missing()
	}
	return number(n)
}

func evaluate(name string, col *frame.Column, param string) (frame.Value, error) {
	if name == "MIN" || name == "MAX" {
		return extreme(col, name == "MAX"), nil
	}
	switch c, _ := CategoryOf(name); c {
	case CategoryNumeric:
		return numeric(name, col.Floats(), param)
	case CategoryText:
		return text(name, col, param)
	case CategoryDatetime:
		return datetime(name, col), nil
	case CategoryBoolean:
		return boolean(name, col), nil
	}
	return general(name, col), nil
}

func extreme(col *frame.Column, largest bool) frame.Value {
	var best frame.Value
	for _, v := range col.NonMissing() {
		cmp := frame.Compare(v, best)
		if best.IsMissing() || (largest && cmp > 0) || (!largest && cmp < 0) {
			best = v
		}
	}
	return best
}

func numeric(name string, data stats.Float64Data, param string) (frame.Value, error) {
	switch name {
	case "SUM":
		if len(data) == 0 {
			return count(0), nil
		}
		return fromStats(data.Sum()), nil
	case "AVG":
		return fromStats(data.Mean()), nil
	case "MEDIAN":
		return fromStats(data.Median()), nil
	case "STDEV":
		if len(data) < 2 {
			return frame.Missing(), nil
		}
		return fromStats(data.StandardDeviationSample()), nil
	case "VAR":
		if len(data) < 2 {
			return frame.Missing(), nil
		}
		return fromStats(data.SampleVariance()), nil
	case "SUMSQ":
		total := 0.0
		for _, v := range data {
			total += v * v
		}
		return number(total), nil
	case "RANGE":
		lo, err := data.Min()
		if err != nil {
			return frame.Missing(), nil
		}
		hi, _ := data.Max()
		return number(hi - lo), nil
	case "PERCENTILE":
		p, err := strconv.ParseFloat(strings.TrimSpace(param), 64)
		if err != nil {
			return frame.Missing(), core.NewInvalidParameterError("PERCENTILE requires a numeric P value between 0 and 100, got '%s'", param)
		}
		if p < 0 || p > 100 {
			return frame.Missing(), core.NewInvalidParameterError("PERCENTILE P value must be between 0 and 100, got %g", p)
		}
		if len(data) == 0 {
			return frame.Missing(), nil
		}
		return number(outlier.Quantile(sorted(data), p/100)), nil
	case "IQR":
		if len(data) < 2 {
			return frame.Missing(), nil
		}
		q1, q3 := outlier.Quartiles(data)
		return number(q3 - q1), nil
	case "SKEW":
		if len(data) < 3 {
			return frame.Missing(), nil
		}
		return number(stat.Skew(data, nil)), nil
	case "KURT":
		if len(data) < 4 {
			return frame.Missing(), nil
		}
		return number(stat.ExKurtosis(data, nil)), nil
	case "CV":
		if len(data) < 2 {
			return frame.Missing(), nil
		}
		mean, _ := data.Mean()
		std, _ := data.StandardDeviationSample()
		if mean == 0 {
			return frame.Missing(), nil
		}
		return number(std / mean), nil
	}
	return frame.Missing(), unsupported(name)
}

func general(name string, col *frame.Column) frame.Value {
	switch name {
	case "COUNT":
		return count(col.Len() - col.MissingCount())
	case "COUNTUNIQUE":
		return count(col.Distinct())
	}
	m := modes(col.NonMissing())
	switch len(m) {
	case 0:
		return frame.Missing()
	case 1:
		return m[0]
	}
	labels := make([]string, len(m))
	for i, v := range m {
		labels[i] = format(v)
	}
	return frame.NewStringValue(strings.Join(labels, ", "))
}

func text(name string, col *frame.Column, param string) (frame.Value, error) {
	values := col.NonMissing()
	switch name {
	case "CONCAT_ROWS":
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = v.String()
		}
		return frame.NewStringValue(strings.Join(parts, " ")), nil
	case "LEN_AVG":
		if len(values) == 0 {
			return frame.Missing(), nil
		}
		total := 0
		for _, v := range values {
			total += utf8.RuneCountInString(v.String())
		}
		return number(float64(total) / float64(len(values))), nil
	case "COUNTEMPTY", "COUNTNONEMPTY":
		empty := col.MissingCount()
		for _, v := range values {
			if strings.TrimSpace(v.String()) == "" {
				empty++
			}
		}
		if name == "COUNTEMPTY" {
			return count(empty), nil
		}
		return count(col.Len() - empty), nil
	case "COUNT_REGEX":
		if strings.TrimSpace(param) == "" {
			return frame.Missing(), core.NewInvalidParameterError("COUNT_REGEX requires a regex pattern")
		}
		re, err := regexp.Compile(param)
		if err != nil {
			return frame.Missing(), core.NewPatternError(param, err)
		}
		n := 0
		for _, v := range values {
			if re.MatchString(v.String()) {
				n++
			}
		}
		return count(n), nil
	case "LONGEST_STR_LEN":
		if len(values) == 0 {
			return frame.Missing(), nil
		}
		longest := 0
		for _, v := range values {
			longest = max(longest, utf8.RuneCountInString(v.String()))
		}
		return count(longest), nil
	case "SHORTEST_STR_LEN":
		shortest := -1
		for _, v := range values {
			s := strings.TrimSpace(v.String())
			if s == "" {
				continue
			}
			if n := utf8.RuneCountInString(s); shortest < 0 || n < shortest {
				shortest = n
			}
		}
		if shortest < 0 {
			return frame.Missing(), nil
		}
		return count(shortest), nil
	}
	return frame.Missing(), unsupported(name)
}

func datetime(name string, col *frame.Column) frame.Value {
	values := col.NonMissing()
	switch name {
	case "DATE_RANGE_DAYS":
		if len(values) < 2 {
			return frame.Missing()
		}
		lo, hi := extreme(col, false), extreme(col, true)
		return count(int(hi.Time.Sub(lo.Time).Hours() / 24))
	case "COMMON_YEAR":
		years := make([]frame.Value, len(values))
		for i, v := range values {
			years[i] = count(v.Time.Year())
		}
		if m := modes(years); len(m) > 0 {
			return m[0]
		}
	case "COMMON_MONTH_NAME":
		months := make([]frame.Value, len(values))
		for i, v := range values {
			months[i] = frame.NewStringValue(v.Time.Month().String())
		}
		if m := modes(months); len(m) > 0 {
			return m[0]
		}
	}
	return frame.Missing()
}

func boolean(name string, col *frame.Column) frame.Value {
	trues, falses := 0, 0
	for _, v := range col.NonMissing() {
		if v.Bool {
			trues++
		} else {
			falses++
		}
	}
	switch name {
	case "COUNT_TRUE":
		return count(trues)
	case "COUNT_FALSE":
		return count(falses)
	case "ALL_TRUE":
		return frame.NewBooleanValue(falses == 0)
	}
	return frame.NewBooleanValue(trues > 0)
}

func sorted(data []float64) []float64 {
	out := append([]float64(nil), data...)
	sort.Float64s(out)
	return out
}
