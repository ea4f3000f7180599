package frame

import (
	"errors"
	"math"
	"testing"
	"time"

	"tidyframe/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Frame {
	return MustNew(
		NewTextColumn("name", "Smith", "Jones", "Smiley"),
		NewIntColumn("age", 10, math.NaN(), 40),
	)
}

func TestNewRejectsMismatchedColumns(t *testing.T) {
	_, err := New(NewTextColumn("a", "x"), NewTextColumn("b", "x", "y"))
	assert.Error(t, err)

	_, err = New(NewTextColumn("a", "x"), NewTextColumn("a", "y"))
	assert.Error(t, err)
}

func TestRenameSharesCells(t *testing.T) {
	f := sample()
	renamed, err := f.RenameColumn("age", "Age")
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "Age"}, renamed.ColumnNames())
	assert.Equal(t, []string{"name", "age"}, f.ColumnNames(), "receiver is untouched")

	before, _ := f.Column("name")
	after, _ := renamed.Column("name")
	assert.Same(t, before, after)

	_, err = f.RenameColumn("missing", "x")
	assert.True(t, errors.Is(err, core.ErrColumnNotFound))
	_, err = f.RenameColumn("age", "name")
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
}

func TestDropAndInsertColumns(t *testing.T) {
	f := sample()
	dropped, err := f.DropColumns("name")
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, dropped.ColumnNames())

	_, err = f.DropColumns("name", "ghost")
	assert.True(t, errors.Is(err, core.ErrColumnNotFound))

	name, _ := f.Column("name")
	restored, err := dropped.InsertColumn(0, name)
	require.NoError(t, err)
	assert.True(t, restored.Equal(f))
}

func TestTakeAndFilter(t *testing.T) {
	f := sample()
	taken := f.Take([]int{2, 0})
	assert.Equal(t, 2, taken.NumRows())
	col, _ := taken.Column("name")
	assert.Equal(t, "Smiley", col.At(0).Str)

	same := f.Filter(func(int) bool { return true })
	assert.Same(t, f, same)

	none := f.Filter(func(int) bool { return false })
	assert.Equal(t, 0, none.NumRows())
	assert.Equal(t, 2, none.NumCols())
}

func TestEqualDetectsCellChanges(t *testing.T) {
	a := sample()
	b := sample()
	assert.True(t, a.Equal(b))

	age, _ := b.Column("age")
	values := age.Values()
	values[1] = NewNumericValue(25)
	c, err := b.ReplaceColumns(age.WithValues(values))
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
	assert.True(t, a.Equal(b), "replacing a column does not mutate the original")
}

func TestValueCompareOrdersMissingLast(t *testing.T) {
	assert.Equal(t, -1, Compare(NewNumericValue(1), NewNumericValue(2)))
	assert.Equal(t, 1, Compare(Missing(), NewNumericValue(2)))
	assert.Equal(t, -1, Compare(NewStringValue("a"), Missing()))
	assert.Equal(t, 0, Compare(Missing(), Missing()))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "25", NewNumericValue(25).String())
	assert.Equal(t, "2.5", NewNumericValue(2.5).String())
	assert.Equal(t, "True", NewBooleanValue(true).String())
	assert.Equal(t, "2024-01-02", NewTimestampValue(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)).String())
	assert.Equal(t, "", Missing().String())
	assert.True(t, NewNumericValue(math.NaN()).IsMissing())
}

func TestCodecRoundTrip(t *testing.T) {
	f := MustNew(
		NewTextColumn("name", "a", "b"),
		NewFloatColumn("score", 1.5, math.NaN()),
		NewColumn("when", DTypeDatetime, []Value{
			NewTimestampValue(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)),
			Missing(),
		}),
		NewColumn("ok", DTypeBoolean, []Value{NewBooleanValue(true), NewBooleanValue(false)}),
	)

	data, err := f.MarshalJSON()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, decoded.Equal(f))
}
