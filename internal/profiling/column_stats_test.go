package profiling

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericStats(t *testing.T) {
	col := frame.NewFloatColumn("v", 1, 2, 3, 4, 5, 100, 0, -1, math.NaN(), 2)
	s := Compute(col, 0)

	assert.Equal(t, "float", s.DataType)
	assert.Equal(t, 10, s.TotalRows)
	assert.Equal(t, 9, s.NonMissing)
	assert.Equal(t, 1, s.Missing)
	assert.Equal(t, "10.00%", s.MissingPercent)
	assert.Equal(t, 8, s.Unique)
	assert.Equal(t, 9, s.UniqueWithMissing)

	require.NotNil(t, s.NumericStats)
	assert.Equal(t, 1, s.ZeroCount)
	assert.Equal(t, 1, s.NegativeCount)
	assert.Equal(t, -1.0, *s.Min)
	assert.Equal(t, 100.0, *s.Max)
	assert.Equal(t, 2.0, *s.Median)
	assert.Equal(t, 1, s.Outliers)
	assert.Equal(t, "10.00%", s.OutliersPercent)
	assert.Nil(t, s.TextStats)

	// 2 appears twice, NULL once
	assert.Equal(t, 1, s.DuplicateDistinct)
	assert.Equal(t, 2, s.DuplicateOccurrences)
	assert.Equal(t, "20.00%", s.DuplicatePercent)
	assert.Contains(t, s.UniqueSample, NullLabel)
	assert.Equal(t, 8, s.UniqueTotal)
}

func TestTooFewValuesForOutliers(t *testing.T) {
	s := Compute(frame.NewIntColumn("v", 1, 2), 0)
	assert.Equal(t, "N/A (Too Few Non-NA Values)", s.Outliers)

	flat := Compute(frame.NewIntColumn("v", 3, 3, 3, 3), 0)
	assert.Equal(t, "0 (No Spread in Non-NA Data)", flat.Outliers)
}

func TestTextStatsAndSampleCap(t *testing.T) {
	col := frame.NewColumn("city", frame.DTypeText, []frame.Value{
		frame.Missing(), frame.Missing(), frame.Missing(),
		frame.NewStringValue("Rome"), frame.NewStringValue("Oslo"), frame.NewStringValue("Rome"),
		frame.NewStringValue("Lisbon"), frame.NewStringValue("Bern"),
	})
	s := Compute(col, 2)
	require.NotNil(t, s.TextStats)
	assert.Equal(t, "Rome", s.MostFrequent, "missing never counts as the most frequent value")
	assert.Equal(t, 2, s.Frequency)
	assert.Equal(t, 4, *s.MinLength)
	assert.Equal(t, 6, *s.MaxLength)
	assert.Equal(t, 4.4, *s.AvgLength)

	assert.Len(t, s.UniqueSample, 2)
	assert.Equal(t, 3, s.UniqueTotal)
	assert.Equal(t, []DuplicateValue{{Value: NullLabel, Count: 3, Percent: "37.50%"}, {Value: "Rome", Count: 2, Percent: "25.00%"}}, s.DuplicateSample)
}

func TestDatetimeAndBooleanStats(t *testing.T) {
	day := func(d int) frame.Value {
		return frame.NewTimestampValue(time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC))
	}
	dates := frame.NewColumn("d", frame.DTypeDatetime, []frame.Value{day(5), day(1), frame.Missing(), day(9)})
	s := Compute(dates, 0)
	require.NotNil(t, s.DatetimeStats)
	assert.Equal(t, "2024-01-01", s.FirstDate)
	assert.Equal(t, "2024-01-09", s.LastDate)

	flags := frame.NewColumn("ok", frame.DTypeBoolean, []frame.Value{
		frame.NewBooleanValue(true), frame.NewBooleanValue(true), frame.NewBooleanValue(false), frame.Missing(),
	})
	b := Compute(flags, 0)
	require.NotNil(t, b.BooleanStats)
	assert.Equal(t, map[string]int{"True": 2, "False": 1, "NULL": 1}, b.ValueCounts)
}

func TestJSONShapeFlattensSections(t *testing.T) {
	s := Compute(frame.NewIntColumn("v", 1, 1, 2, 3), 0)
	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "Mean")
	assert.Contains(t, decoded, "Memory Usage")
	assert.NotContains(t, decoded, "Most Frequent Value")
	assert.Equal(t, []interface{}{"1", float64(2), "50.00%"}, decoded["duplicate_values_sample"].([]interface{})[0])
}

func TestComputeForUnknownColumn(t *testing.T) {
	f := frame.MustNew(frame.NewIntColumn("v", 1))
	_, err := ComputeFor(f, "nope", 0)
	assert.True(t, core.IsColumnNotFound(err))
}
