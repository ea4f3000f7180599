package profiling

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"tidyframe/domain/frame"
	"tidyframe/internal/outlier"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
)

// DefaultSampleCap bounds the unique and duplicate value samples
const DefaultSampleCap = 50

// NullLabel is how missing cells appear in samples
const NullLabel = "NULL"

// ColumnStats is the statistics panel for one column. Type-specific sections are nil when they
// do not apply and flatten into the same JSON object otherwise.
type ColumnStats struct {
	DataType             string `json:"Data Type"`
	TotalRows            int    `json:"Total Rows (DataFrame)"`
	NonMissing           int    `json:"Non-Missing Values"`
	Missing              int    `json:"Missing Values"`
	MissingPercent       string `json:"Missing (%)"`
	UniqueWithMissing    int    `json:"Unique Values (Incl. NaN)"`
	UniqueWithMissingPct string `json:"Unique (%) (Incl. NaN)"`
	Unique               int    `json:"Unique Values (Excl. NaN)"`
	MemoryUsage          string `json:"Memory Usage"`

	*NumericStats
	*DatetimeStats
	*TextStats
	*BooleanStats

	UniqueSample         []string         `json:"unique_values_sample"`
	UniqueTotal          int              `json:"unique_values_total_count"`
	DuplicateSample      []DuplicateValue `json:"duplicate_values_sample"`
	DuplicateDistinct    int              `json:"duplicate_values_distinct_count"`
	DuplicateOccurrences int              `json:"duplicate_occurrences_total"`
	DuplicatePercent     string           `json:"duplicate_occurrences_percentage"`
}

// NumericStats is filled for integer and float columns
type NumericStats struct {
	Mean            *float64    `json:"Mean"`
	StdDev          *float64    `json:"Std Dev"`
	Min             *float64    `json:"Min"`
	Q1              *float64    `json:"25% (Q1)"`
	Median          *float64    `json:"Median (50%)"`
	Q3              *float64    `json:"75% (Q3)"`
	Max             *float64    `json:"Max"`
	ZeroCount       int         `json:"Zero Count"`
	NegativeCount   int         `json:"Negative Count"`
	Outliers        interface{} `json:"Outliers (IQR, 1.5x)"`
	OutliersPercent string      `json:"Outliers (%)"`
}

// DatetimeStats is filled for datetime columns
type DatetimeStats struct {
	FirstDate string `json:"First Date,omitempty"`
	LastDate  string `json:"Last Date,omitempty"`
}

// TextStats is filled for text and category columns
type TextStats struct {
	MostFrequent string   `json:"Most Frequent Value,omitempty"`
	Frequency    int      `json:"Frequency (Most Freq.),omitempty"`
	MinLength    *int     `json:"Min Length,omitempty"`
	MaxLength    *int     `json:"Max Length,omitempty"`
	AvgLength    *float64 `json:"Avg Length,omitempty"`
}

// BooleanStats is filled for boolean columns
type BooleanStats struct {
	ValueCounts map[string]int `json:"Value Counts (Boolean)"`
}

// DuplicateValue is a repeated value with its count and share of all rows
type DuplicateValue struct {
	Value   string
	Count   int
	Percent string
}

// MarshalJSON encodes the triple as [value, count, percent]
func (d DuplicateValue) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{d.Value, d.Count, d.Percent})
}

// ComputeFor looks up column in f and computes its statistics
func ComputeFor(f *frame.Frame, column string, sampleCap int) (ColumnStats, error) {
	col, err := f.Lookup(column)
	if err != nil {
		return ColumnStats{}, err
	}
	return Compute(col, sampleCap), nil
}

// Compute builds the statistics for col. sampleCap <= 0 uses DefaultSampleCap.
func Compute(col *frame.Column, sampleCap int) ColumnStats {
	if sampleCap <= 0 {
		sampleCap = DefaultSampleCap
	}
	total := col.Len()
	missing := col.MissingCount()
	present := total - missing
	counts := countValues(col)

	s := ColumnStats{
		DataType:       col.DType().String(),
		TotalRows:      total,
		NonMissing:     present,
		Missing:        missing,
		MissingPercent: percent(missing, total),
		Unique:         col.Distinct(),
		MemoryUsage:    humanize.IBytes(uint64(memoryEstimate(col))),
	}
	s.UniqueWithMissing = s.Unique
	if missing > 0 {
		s.UniqueWithMissing++
	}
	s.UniqueWithMissingPct = percent(s.UniqueWithMissing, total)

	switch dtype := col.DType(); {
	case dtype.IsNumeric():
		s.NumericStats = numericStats(col, total)
	case dtype == frame.DTypeDatetime:
		s.DatetimeStats = datetimeStats(col)
	case dtype.IsTextLike():
		s.TextStats = textStats(col, counts)
	case dtype == frame.DTypeBoolean:
		s.BooleanStats = booleanStats(col)
	}

	s.UniqueSample = []string{}
	s.DuplicateSample = []DuplicateValue{}
	for _, vc := range counts {
		if vc.count == 1 {
			if len(s.UniqueSample) < sampleCap {
				s.UniqueSample = append(s.UniqueSample, vc.label)
			}
			s.UniqueTotal++
			continue
		}
		if len(s.DuplicateSample) < sampleCap {
			s.DuplicateSample = append(s.DuplicateSample, DuplicateValue{Value: vc.label, Count: vc.count, Percent: percent(vc.count, total)})
		}
		s.DuplicateDistinct++
		s.DuplicateOccurrences += vc.count
	}
	s.DuplicatePercent = percent(s.DuplicateOccurrences, total)
	return s
}

type valueCount struct {
	label   string
	count   int
	missing bool
}

// countValues counts every value including missing, most frequent first, ties in order of appearance
func countValues(col *frame.Column) []valueCount {
	index := make(map[string]int)
	var out []valueCount
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		k := v.Key()
		if j, ok := index[k]; ok {
			out[j].count++
			continue
		}
		label := v.String()
		if v.IsMissing() {
			label = NullLabel
		}
		index[k] = len(out)
		out = append(out, valueCount{label: label, count: 1, missing: v.IsMissing()})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].count > out[b].count })
	return out
}

func numericStats(col *frame.Column, total int) *NumericStats {
	values := col.Floats()
	ns := &NumericStats{}
	for _, v := range values {
		if v == 0 {
			ns.ZeroCount++
		}
		if v < 0 {
			ns.NegativeCount++
		}
	}
	if len(values) == 0 {
		ns.Outliers = "N/A (Too Few Non-NA Values)"
		ns.OutliersPercent = "N/A"
		return ns
	}

	if mean, err := stats.Mean(values); err == nil {
		ns.Mean = ptr(mean)
	}
	if len(values) > 1 {
		if std, err := stats.StandardDeviationSample(values); err == nil {
			ns.StdDev = ptr(std)
		}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	ns.Min = ptr(sorted[0])
	ns.Max = ptr(sorted[len(sorted)-1])
	ns.Q1 = ptr(outlier.Quantile(sorted, 0.25))
	ns.Median = ptr(outlier.Quantile(sorted, 0.5))
	ns.Q3 = ptr(outlier.Quantile(sorted, 0.75))

	b, err := outlier.IQRBounds(values, outlier.DefaultIQRFactor)
	switch {
	case err != nil:
		ns.Outliers = "N/A (Too Few Non-NA Values)"
		ns.OutliersPercent = "N/A"
	default:
		n := 0
		for _, v := range values {
			if !b.Contains(v) {
				n++
			}
		}
		ns.Outliers = n
		ns.OutliersPercent = percent(n, total)
		if n == 0 && *ns.Q1 == *ns.Q3 {
			ns.Outliers = "0 (No Spread in Non-NA Data)"
		}
	}
	return ns
}

func datetimeStats(col *frame.Column) *DatetimeStats {
	ds := &DatetimeStats{}
	var first, last frame.Value
	for _, v := range col.NonMissing() {
		if first.IsMissing() || frame.Compare(v, first) < 0 {
			first = v
		}
		if last.IsMissing() || frame.Compare(v, last) > 0 {
			last = v
		}
	}
	ds.FirstDate = first.String()
	ds.LastDate = last.String()
	return ds
}

func textStats(col *frame.Column, counts []valueCount) *TextStats {
	ts := &TextStats{}
	for _, vc := range counts {
		if vc.missing {
			continue
		}
		ts.MostFrequent = vc.label
		ts.Frequency = vc.count
		break
	}
	values := col.NonMissing()
	if len(values) == 0 {
		return ts
	}
	minLen, maxLen, sum := math.MaxInt, 0, 0
	for _, v := range values {
		n := utf8.RuneCountInString(v.String())
		sum += n
		if n < minLen {
			minLen = n
		}
		if n > maxLen {
			maxLen = n
		}
	}
	avg := math.Round(float64(sum)/float64(len(values))*100) / 100
	ts.MinLength, ts.MaxLength, ts.AvgLength = &minLen, &maxLen, &avg
	return ts
}

func booleanStats(col *frame.Column) *BooleanStats {
	bs := &BooleanStats{ValueCounts: make(map[string]int)}
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		if v.IsMissing() {
			bs.ValueCounts[NullLabel]++
			continue
		}
		bs.ValueCounts[v.String()]++
	}
	return bs
}

// memoryEstimate approximates the in-memory footprint of a column in bytes
func memoryEstimate(col *frame.Column) int {
	size := 0
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		switch v.Type {
		case frame.ValueTypeString:
			size += 16 + len(v.Str)
		case frame.ValueTypeBoolean:
			size++
		default:
			size += 8
		}
	}
	return size
}

func percent(n, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(n)/float64(total)*100)
}

func ptr[T any](v T) *T {
	return &v
}
