package coercer

import (
	"math"
	"testing"
	"time"

	"tidyframe/domain/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeric(t *testing.T) {
	c := Default()
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{" 3.5 ", 3.5, true},
		{"1,234.5", 1234.5, true},
		{"(12)", -12, true},
		{"$19.99", 19.99, true},
		{"1e3", 1000, true},
		{"abc", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"0x10", 0, false},
		{"1,23", 0, false},
	}
	for _, tc := range cases {
		got, ok := c.ParseNumeric(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, "input %q", tc.in)
		}
	}
}

func TestParseTimestampFormats(t *testing.T) {
	c := Default()

	got, ok := c.ParseTimestamp("2024-03-05")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), got)

	_, ok = c.ParseTimestamp("yesterday")
	assert.False(t, ok)

	got, ok = c.ParseTimestampFormat("05/03/2024", "%d/%m/%Y")
	require.True(t, ok)
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 5, got.Day())
}

func TestInferColumn(t *testing.T) {
	c := Default()

	ints := c.InferColumn("age", []string{"10", "20", "", "40"})
	assert.Equal(t, frame.DTypeInteger, ints.DType())
	assert.True(t, ints.At(2).IsMissing())

	floats := c.InferColumn("score", []string{"1.5", "NA", "2"})
	assert.Equal(t, frame.DTypeFloat, floats.DType())
	assert.Equal(t, 1, floats.MissingCount())

	bools := c.InferColumn("active", []string{"True", "false", "TRUE"})
	assert.Equal(t, frame.DTypeBoolean, bools.DType())

	mixed := c.InferColumn("code", []string{"12", " A7", ""})
	assert.Equal(t, frame.DTypeText, mixed.DType())
	assert.Equal(t, "12", mixed.At(0).Str)
	assert.Equal(t, " A7", mixed.At(1).Str, "raw whitespace is preserved for text columns")

	empty := c.InferColumn("blank", []string{"", ""})
	assert.Equal(t, frame.DTypeFloat, empty.DType())
}

func TestConvertCountsFailures(t *testing.T) {
	c := Default()
	col := frame.NewTextColumn("qty", "1", "two", "3")

	conv := c.Convert(col, frame.DTypeInteger)
	assert.Equal(t, 1, conv.Failed)
	assert.Equal(t, "two", conv.Example)
	assert.True(t, conv.Column.At(1).IsMissing())

	conv = c.Convert(frame.NewFloatColumn("x", 1.5, 2), frame.DTypeInteger)
	assert.Equal(t, 1, conv.Failed, "non-integral values cannot become integers")

	conv = c.Convert(frame.NewFloatColumn("x", 1.5, math.NaN()), frame.DTypeText)
	assert.Zero(t, conv.Failed)
	assert.Equal(t, "1.5", conv.Column.At(0).Str)
	assert.True(t, conv.Column.At(1).IsMissing())
}

func TestInferNumericAndCategorize(t *testing.T) {
	c := Default()

	col, ok := c.InferNumeric(frame.NewTextColumn("n", "1", "2", "3"))
	require.True(t, ok)
	assert.Equal(t, frame.DTypeInteger, col.DType())

	_, ok = c.InferNumeric(frame.NewTextColumn("n", "1", "x"))
	assert.False(t, ok)

	assert.True(t, c.ShouldCategorize(frame.NewTextColumn("city", "A", "B", "A", "B")))
	assert.False(t, c.ShouldCategorize(frame.NewFloatColumn("x", 1, 2)))
}

func TestNormalizeTarget(t *testing.T) {
	c := Default()
	for in, want := range map[string]frame.DType{
		"int":      frame.DTypeInteger,
		"Float":    frame.DTypeFloat,
		"object":   frame.DTypeText,
		"date":     frame.DTypeDatetime,
		"boolean":  frame.DTypeBoolean,
		"category": frame.DTypeCategory,
	} {
		got, ok := c.NormalizeTarget(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := c.NormalizeTarget("complex")
	assert.False(t, ok)
}
