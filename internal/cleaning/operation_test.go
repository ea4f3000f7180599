package cleaning

import (
	"errors"
	"math"
	"testing"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"
	"tidyframe/internal/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine() *Engine {
	return NewEngine(nil)
}

func run(t *testing.T, f *frame.Frame, name, params string) Result {
	t.Helper()
	res, err := newEngine().Run(f, name, []byte(params))
	require.NoError(t, err)
	return res
}

func floats(col *frame.Column) []float64 {
	out := make([]float64, col.Len())
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		if v.IsMissing() {
			out[i] = math.NaN()
			continue
		}
		out[i] = v.Num
	}
	return out
}

func strs(col *frame.Column) []string {
	out := make([]string, col.Len())
	for i := 0; i < col.Len(); i++ {
		out[i] = col.At(i).String()
	}
	return out
}

func TestDecodeKnowsEveryName(t *testing.T) {
	minimal := map[string]string{
		OpFilterRows:           `{"column":"a","condition":"isnull"}`,
		OpSortValues:           `{"columns_to_sort_by":["a"]}`,
		OpRenameColumn:         `{"old_name":"a","new_name":"b"}`,
		OpDropColumns:          `{"columns_to_drop":"a"}`,
		OpSplitColumn:          `{"column":"a","delimiter":","}`,
		OpCombineColumns:       `{"columns_to_combine":["a","b"],"new_column_name":"c"}`,
		OpFillMissing:          `{"method":"ffill"}`,
		OpRemoveSpaces:         `{"column":"a"}`,
		OpChangeDType:          `{"column":"a","target_type":"int"}`,
		OpFixDatetime:          `{"column":"a"}`,
		OpReplaceText:          `{"column":"a","text_to_find":"x"}`,
		OpChangeCase:           `{"column":"a","case_type":"upper"}`,
		OpMapValues:            `{"column":"a","mapping_dict":{"x":"y"}}`,
		OpCheckIDUniqueness:    `{"column":"a"}`,
		OpCheckIDFormat:        `{"column":"a","pattern":"\\d+"}`,
		OpRemoveOutliersIQR:    `{"column":"a"}`,
		OpClipOutliersIQR:      `{"column":"a","factor":2}`,
		OpRemoveOutliersZScore: `{"column":"a"}`,
		OpClipOutliersZScore:   `{"column":"a","threshold":"2.5"}`,
	}
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			op, err := Decode(name, []byte(minimal[name]))
			require.NoError(t, err)
			assert.Equal(t, name, op.Name())
		})
	}
}

func TestDecodeRejectsBadParameters(t *testing.T) {
	cases := []struct {
		name   string
		op     string
		params string
	}{
		{"unknown op", "explode", `{}`},
		{"invalid json", OpRemoveDuplicates, `{`},
		{"missing column", OpRemoveSpaces, `{}`},
		{"bad condition", OpFilterRows, `{"column":"a","condition":"between","value":1}`},
		{"missing filter value", OpFilterRows, `{"column":"a","condition":"gt"}`},
		{"bad action", OpFilterRows, `{"column":"a","condition":"isnull","action":"flip"}`},
		{"value fill without value", OpFillMissing, `{"method":"value"}`},
		{"unknown fill method", OpFillMissing, `{"method":"interpolate"}`},
		{"single combine column", OpCombineColumns, `{"columns_to_combine":["a"],"new_column_name":"c"}`},
		{"negative factor", OpRemoveOutliersIQR, `{"column":"a","factor":-1}`},
		{"non numeric threshold", OpClipOutliersZScore, `{"column":"a","threshold":"lots"}`},
		{"nan factor", OpClipOutliersIQR, `{"column":"a","factor":"NaN"}`},
		{"infinite threshold", OpRemoveOutliersZScore, `{"column":"a","threshold":"Inf"}`},
		{"regex on comparison", OpFilterRows, `{"column":"a","condition":"gt","value":1,"use_regex":true}`},
		{"bad case", OpChangeCase, `{"column":"a","case_type":"sponge"}`},
		{"empty mapping", OpMapValues, `{"column":"a","mapping_dict":{}}`},
		{"ascending length", OpSortValues, `{"columns_to_sort_by":["a","b"],"ascending":[true]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.op, []byte(tc.params))
			require.Error(t, err)
			assert.True(t, core.IsInvalidParameter(err), err.Error())
		})
	}
}

func TestRemoveDuplicatesIsIdempotent(t *testing.T) {
	f := frame.MustNew(
		frame.NewTextColumn("name", "a", "b", "a", "c", "b"),
		frame.NewIntColumn("n", 1, 2, 1, 3, 2),
	)
	first := run(t, f, OpRemoveDuplicates, `{}`)
	assert.True(t, first.Modified)
	assert.Equal(t, 3, first.Frame.NumRows())
	assert.Equal(t, "Removed 2 duplicate row(s).", first.Message)

	second := run(t, first.Frame, OpRemoveDuplicates, `{}`)
	assert.False(t, second.Modified)
	assert.Same(t, first.Frame, second.Frame)
}

func TestRemoveDuplicatesSubset(t *testing.T) {
	f := frame.MustNew(
		frame.NewTextColumn("name", "a", "a", "b"),
		frame.NewIntColumn("n", 1, 2, 3),
	)
	res := run(t, f, OpRemoveDuplicates, `{"subset":["name"]}`)
	assert.Equal(t, []float64{1, 3}, floats(res.Frame.Columns()[1]))

	_, err := newEngine().Run(f, OpRemoveDuplicates, []byte(`{"subset":["nope"]}`))
	assert.True(t, core.IsColumnNotFound(err))
}

func TestRemoveMissing(t *testing.T) {
	f := frame.MustNew(
		frame.NewFloatColumn("a", 1, math.NaN(), math.NaN(), 4),
		frame.NewFloatColumn("b", 1, 2, math.NaN(), 4),
	)
	anyRes := run(t, f, OpRemoveMissing, `{}`)
	assert.Equal(t, 2, anyRes.Frame.NumRows())

	allRes := run(t, f, OpRemoveMissing, `{"how":"all"}`)
	assert.Equal(t, 3, allRes.Frame.NumRows())

	subset := run(t, f, OpRemoveMissing, `{"subset":"b"}`)
	assert.Equal(t, 3, subset.Frame.NumRows())
}

func TestFilterRowsKeepGreaterThan(t *testing.T) {
	f := frame.MustNew(frame.NewIntColumn("age", 10, 20, 30))
	res := run(t, f, OpFilterRows, `{"column":"age","condition":"gt","value":15,"action":"keep"}`)
	assert.True(t, res.Modified)
	assert.Equal(t, 2, res.Frame.NumRows())
	assert.Equal(t, []float64{20, 30}, floats(res.Frame.Columns()[0]))
}

func TestFilterRowsDropRemovesMatches(t *testing.T) {
	f := frame.MustNew(frame.NewIntColumn("age", 10, 20, 30))
	res := run(t, f, OpFilterRows, `{"column":"age","condition":">","value":"15","action":"drop"}`)
	assert.Equal(t, []float64{10}, floats(res.Frame.Columns()[0]))
}

func TestFilterRowsMissingAndText(t *testing.T) {
	f := frame.MustNew(
		frame.NewFloatColumn("score", 1, math.NaN(), 3),
		frame.NewTextColumn("city", "Paris", "Berlin", "Porto"),
	)
	neq := run(t, f, OpFilterRows, `{"column":"score","condition":"neq","value":1}`)
	assert.Equal(t, 2, neq.Frame.NumRows(), "missing cells match neq")

	nulls := run(t, f, OpFilterRows, `{"column":"score","condition":"isnull"}`)
	assert.Equal(t, 1, nulls.Frame.NumRows())

	prefix := run(t, f, OpFilterRows, `{"column":"city","condition":"startswith","value":"P"}`)
	assert.Equal(t, []string{"Paris", "Porto"}, strs(prefix.Frame.Columns()[1]))

	_, err := newEngine().Run(f, OpFilterRows, []byte(`{"column":"score","condition":"gt","value":"high"}`))
	assert.True(t, core.IsInvalidParameter(err))
}

func TestFilterRowsContainsRegexIsOptIn(t *testing.T) {
	f := frame.MustNew(frame.NewTextColumn("city", "Paris", "Berlin", "Porto", "^Pa"))

	literal := run(t, f, OpFilterRows, `{"column":"city","condition":"contains","value":"^P","action":"drop"}`)
	assert.Equal(t, []string{"Paris", "Berlin", "Porto"}, strs(literal.Frame.Columns()[0]))

	pattern := run(t, f, OpFilterRows, `{"column":"city","condition":"contains","value":"^P","action":"drop","use_regex":"true"}`)
	assert.Equal(t, []string{"Berlin", "^Pa"}, strs(pattern.Frame.Columns()[0]))

	_, err := Decode(OpFilterRows, []byte(`{"column":"city","condition":"contains","value":"(","use_regex":true}`))
	assert.True(t, errors.Is(err, core.ErrPattern))
}

func TestSortValuesMissingLastAndReversible(t *testing.T) {
	f := frame.MustNew(
		frame.NewFloatColumn("v", 3, math.NaN(), 1, 2),
		frame.NewTextColumn("k", "c", "x", "a", "b"),
	)
	res := run(t, f, OpSortValues, `{"columns_to_sort_by":["v"],"ascending":false}`)
	assert.Equal(t, []string{"c", "b", "a", "x"}, strs(res.Frame.Columns()[1]))
	require.IsType(t, history.Permutation{}, res.Change)

	back, err := res.Change.Revert(res.Frame)
	require.NoError(t, err)
	assert.True(t, back.Equal(f))

	again := run(t, res.Frame, OpSortValues, `{"columns_to_sort_by":"v","ascending":"false"}`)
	assert.False(t, again.Modified)
}

func TestRenameColumn(t *testing.T) {
	f := frame.MustNew(frame.NewIntColumn("age", 1), frame.NewIntColumn("id", 2))
	res := run(t, f, OpRenameColumn, `{"old_name":"age","new_name":"Age"}`)
	assert.Equal(t, []string{"Age", "id"}, res.Frame.ColumnNames())
	assert.Equal(t, history.Rename{Old: "age", New: "Age"}, res.Change)

	same := run(t, f, OpRenameColumn, `{"old_name":"age","new_name":"age"}`)
	assert.False(t, same.Modified)

	_, err := newEngine().Run(f, OpRenameColumn, []byte(`{"old_name":"age","new_name":"id"}`))
	assert.True(t, core.IsInvalidParameter(err))
	_, err = newEngine().Run(f, OpRenameColumn, []byte(`{"old_name":"x","new_name":"y"}`))
	assert.True(t, core.IsColumnNotFound(err))
}

func TestDropColumnsUsesReversibleChange(t *testing.T) {
	f := frame.MustNew(frame.NewIntColumn("a", 1), frame.NewIntColumn("b", 2), frame.NewIntColumn("c", 3))
	res := run(t, f, OpDropColumns, `{"columns_to_drop":["c","a"]}`)
	assert.Equal(t, []string{"b"}, res.Frame.ColumnNames())

	back, err := res.Change.Revert(res.Frame)
	require.NoError(t, err)
	assert.True(t, back.Equal(f))

	_, err = newEngine().Run(f, OpDropColumns, []byte(`{"columns_to_drop":["a","zz"]}`))
	assert.True(t, core.IsColumnNotFound(err))
}

func TestSplitAndCombineColumns(t *testing.T) {
	f := frame.MustNew(frame.NewTextColumn("full", "Ada Lovelace", "Alan Turing", "Plato"))
	split := run(t, f, OpSplitColumn, `{"column":"full","delimiter":" "}`)
	assert.Equal(t, []string{"full", "full_split_1", "full_split_2"}, split.Frame.ColumnNames())
	last, _ := split.Frame.Column("full_split_2")
	assert.True(t, last.At(2).IsMissing())

	named := run(t, f, OpSplitColumn, `{"column":"full","delimiter":" ","new_column_names":"first, last"}`)
	assert.Equal(t, []string{"full", "first", "last"}, named.Frame.ColumnNames())

	_, err := newEngine().Run(f, OpSplitColumn, []byte(`{"column":"full","delimiter":" ","new_column_names":["only"]}`))
	assert.True(t, core.IsInvalidParameter(err))

	combined := run(t, named.Frame, OpCombineColumns, `{"columns_to_combine":["last","first"],"new_column_name":"sorted","separator":", "}`)
	col, _ := combined.Frame.Column("sorted")
	assert.Equal(t, []string{"Lovelace, Ada", "Turing, Alan", ", Plato"}, strs(col))

	_, err = newEngine().Run(named.Frame, OpCombineColumns, []byte(`{"columns_to_combine":["last","first"],"new_column_name":"full"}`))
	assert.True(t, core.IsInvalidParameter(err))
}

func TestFillMissingMedian(t *testing.T) {
	f := frame.MustNew(frame.NewIntColumn("age", 10, 20, math.NaN(), 40))
	res := run(t, f, OpFillMissing, `{"method":"median","column":"age"}`)
	assert.True(t, res.Modified)
	assert.Equal(t, []float64{10, 20, 20, 40}, floats(res.Frame.Columns()[0]))

	even := frame.MustNew(frame.NewIntColumn("age", 10, 20, math.NaN(), 30, 40))
	res = run(t, even, OpFillMissing, `{"method":"median","column":"age"}`)
	assert.Equal(t, []float64{10, 20, 25, 30, 40}, floats(res.Frame.Columns()[0]))
	assert.Equal(t, frame.DTypeInteger, res.Frame.Columns()[0].DType())
}

func TestFillMissingMethods(t *testing.T) {
	f := frame.MustNew(
		frame.NewIntColumn("n", math.NaN(), 1, math.NaN(), 4, math.NaN()),
		frame.NewTextColumn("s", "x", "y", "y", "z", "x"),
	)
	ffill := run(t, f, OpFillMissing, `{"method":"ffill","column":"n"}`)
	assert.True(t, math.IsNaN(floats(ffill.Frame.Columns()[0])[0]))
	assert.Equal(t, []float64{1, 1, 4, 4}, floats(ffill.Frame.Columns()[0])[1:])

	both := run(t, f, OpFillMissing, `{"method":"ffill_bfill","column":"n"}`)
	assert.Equal(t, []float64{1, 1, 1, 4, 4}, floats(both.Frame.Columns()[0]))

	mean := run(t, f, OpFillMissing, `{"method":"mean"}`)
	assert.Equal(t, []float64{2.5, 1, 2.5, 4, 2.5}, floats(mean.Frame.Columns()[0]))
	assert.Equal(t, frame.DTypeFloat, mean.Frame.Columns()[0].DType())

	value := run(t, f, OpFillMissing, `{"method":"value","value":"7","column":"n"}`)
	assert.Equal(t, []float64{7, 1, 7, 4, 7}, floats(value.Frame.Columns()[0]))

	_, err := newEngine().Run(f, OpFillMissing, []byte(`{"method":"mean","column":"s"}`))
	assert.True(t, core.IsInvalidParameter(err))

	none := run(t, f, OpFillMissing, `{"method":"mode","column":"s"}`)
	assert.False(t, none.Modified)
}

func TestModePrefersSmallestOnTie(t *testing.T) {
	col := frame.NewTextColumn("s", "b", "a", "b", "a")
	m, ok := modeOf(col)
	require.True(t, ok)
	assert.Equal(t, "a", m.Str)
}

func TestChangeDTypeIsAtomic(t *testing.T) {
	f := frame.MustNew(frame.NewTextColumn("n", "1", "2", "three", "4"))
	res, err := newEngine().Run(f, OpChangeDType, []byte(`{"column":"n","target_type":"int"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTypeConversion))
	assert.Contains(t, err.Error(), "three")
	assert.Nil(t, res.Frame)
	assert.Equal(t, []string{"1", "2", "three", "4"}, strs(f.Columns()[0]))

	ok := run(t, frame.MustNew(frame.NewTextColumn("n", "1", "2")), OpChangeDType, `{"column":"n","target_type":"integer"}`)
	assert.Equal(t, frame.DTypeInteger, ok.Frame.Columns()[0].DType())

	_, err = newEngine().Run(f, OpChangeDType, []byte(`{"column":"n","target_type":"complex"}`))
	assert.True(t, core.IsInvalidParameter(err))
}

func TestFixDatetimeWithFormat(t *testing.T) {
	f := frame.MustNew(frame.NewTextColumn("d", "31/12/2023", "01/02/2024", "garbage"))
	res := run(t, f, OpFixDatetime, `{"column":"d","format":"%d/%m/%Y"}`)
	col := res.Frame.Columns()[0]
	assert.Equal(t, frame.DTypeDatetime, col.DType())
	assert.Equal(t, "2023-12-31", col.At(0).String())
	assert.Equal(t, "2024-02-01", col.At(1).String())
	assert.True(t, col.At(2).IsMissing())
	assert.Contains(t, res.Message, "1 value(s) could not be parsed")
}

func TestReplaceTextAndPatternErrors(t *testing.T) {
	f := frame.MustNew(frame.NewTextColumn("phone", "555-1234", "555-9876"))
	plain := run(t, f, OpReplaceText, `{"column":"phone","text_to_find":"-","replace_with":""}`)
	assert.Equal(t, []string{"5551234", "5559876"}, strs(plain.Frame.Columns()[0]))

	regex := run(t, f, OpReplaceText, `{"column":"phone","text_to_find":"(\\d+)-(\\d+)","replace_with":"\\2/\\1","use_regex":true}`)
	assert.Equal(t, []string{"1234/555", "9876/555"}, strs(regex.Frame.Columns()[0]))

	_, err := newEngine().Run(f, OpReplaceText, []byte(`{"column":"phone","text_to_find":"(","use_regex":"true"}`))
	assert.True(t, errors.Is(err, core.ErrPattern))
}

func TestChangeCase(t *testing.T) {
	f := frame.MustNew(frame.NewTextColumn("name", "ada LOVELACE", "alan turing"))
	res := run(t, f, OpChangeCase, `{"column":"name","case_type":"title"}`)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, strs(res.Frame.Columns()[0]))

	again := run(t, res.Frame, OpChangeCase, `{"column":"name","case_type":"title"}`)
	assert.False(t, again.Modified)
}

func TestMapValuesReinfersDType(t *testing.T) {
	f := frame.MustNew(frame.NewTextColumn("answer", "yes", "no", "yes"))
	res := run(t, f, OpMapValues, `{"column":"answer","mapping_dict":{"yes":1,"no":0}}`)
	col := res.Frame.Columns()[0]
	assert.Equal(t, frame.DTypeInteger, col.DType())
	assert.Equal(t, []float64{1, 0, 1}, floats(col))

	partial := run(t, f, OpMapValues, `{"column":"answer","mapping_dict":"{\"yes\":\"Y\"}"}`)
	assert.Equal(t, []string{"Y", "no", "Y"}, strs(partial.Frame.Columns()[0]))
}

func TestIntegrityChecksNeverModify(t *testing.T) {
	f := frame.MustNew(frame.NewTextColumn("id", "A-1", "A-2", "A-1", "B3"))
	uniq := run(t, f, OpCheckIDUniqueness, `{"column":"id"}`)
	assert.False(t, uniq.Modified)
	assert.Contains(t, uniq.Message, "2 row(s)")
	assert.Contains(t, uniq.Message, "A-1")

	format := run(t, f, OpCheckIDFormat, `{"column":"id","pattern":"[A-Z]-\\d"}`)
	assert.False(t, format.Modified)
	assert.Contains(t, format.Message, "1 value(s)")
	assert.Contains(t, format.Message, "B3")

	_, err := newEngine().Run(f, OpCheckIDFormat, []byte(`{"column":"id","pattern":"[A-"}`))
	assert.True(t, errors.Is(err, core.ErrPattern))
}

func TestOutlierOperations(t *testing.T) {
	f := frame.MustNew(frame.NewIntColumn("v", 1, 2, 3, 4, 5, 100, math.NaN()))

	removed := run(t, f, OpRemoveOutliersIQR, `{"column":"v"}`)
	assert.Equal(t, 6, removed.Frame.NumRows(), "missing cells are kept")

	clipped := run(t, f, OpClipOutliersIQR, `{"column":"v","factor":1.5}`)
	assert.Equal(t, 8.5, clipped.Frame.Columns()[0].At(5).Num)
	assert.Equal(t, 7, clipped.Frame.NumRows())

	flat := frame.MustNew(frame.NewIntColumn("v", 5, 5, 5))
	skipped := run(t, flat, OpRemoveOutliersZScore, `{"column":"v"}`)
	assert.False(t, skipped.Modified)

	_, err := newEngine().Run(frame.MustNew(frame.NewTextColumn("v", "a")), OpClipOutliersZScore, []byte(`{"column":"v"}`))
	assert.True(t, core.IsInvalidParameter(err))
}

func TestOptimizeCategories(t *testing.T) {
	f := frame.MustNew(
		frame.NewTextColumn("color", "red", "blue", "red", "red", "blue"),
		frame.NewTextColumn("id", "a", "b", "c", "d", "e"),
	)
	res := run(t, f, OpOptimizeCategories, `{}`)
	assert.True(t, res.Modified)
	assert.Equal(t, frame.DTypeCategory, res.Frame.Columns()[0].DType())
	assert.Equal(t, frame.DTypeText, res.Frame.Columns()[1].DType())

	again := run(t, res.Frame, OpOptimizeCategories, `{}`)
	assert.False(t, again.Modified)
}
