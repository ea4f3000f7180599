package excel

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReader() *DataReader {
	return NewDataReader(DefaultReaderConfig(), nil)
}

func TestReadCSVInfersColumnTypes(t *testing.T) {
	src := "name,age,score,active\nAlice,30,1.5,true\nBob,,2.5,false\nCara,41,NA,true\n"
	f, err := newReader().Read(strings.NewReader(src), "people.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age", "score", "active"}, f.ColumnNames())
	assert.Equal(t, 3, f.NumRows())

	age, _ := f.Column("age")
	assert.Equal(t, frame.DTypeInteger, age.DType())
	assert.True(t, age.At(1).IsMissing())

	score, _ := f.Column("score")
	assert.Equal(t, frame.DTypeFloat, score.DType())
	assert.Equal(t, 1, score.MissingCount())

	active, _ := f.Column("active")
	assert.Equal(t, frame.DTypeBoolean, active.DType())
}

func TestReadSniffsDelimiter(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"semicolon", "a;b\n1;x\n2;y\n"},
		{"pipe", "a|b\n1|x\n2|y\n"},
		{"tab in txt", "a\tb\n1\tx\n2\ty\n"},
		{"quoted commas stay in field", "a;b\n1;\"x,y\"\n2;z\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := newReader().Read(strings.NewReader(tt.src), "data.txt")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, f.ColumnNames())
			assert.Equal(t, 2, f.NumRows())
		})
	}
}

func TestSniffDelimiterDefaultsToComma(t *testing.T) {
	assert.Equal(t, ',', SniffDelimiter([]byte("single\n1\n2\n")))
	assert.Equal(t, ';', SniffDelimiter([]byte("a;b;c\n1;2;3\n")))
}

func TestReadNormalizesHeadersAndPadsRows(t *testing.T) {
	src := "\ufeff id , ,id,id\n1,2,3\n4,5,6,7\n"
	f, err := newReader().Read(strings.NewReader(src), "dups.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "Unnamed: 1", "id.1", "id.2"}, f.ColumnNames())
	last, _ := f.Column("id.2")
	assert.True(t, last.At(0).IsMissing())
	assert.Equal(t, 7.0, last.At(1).Num)
}

func TestReadRejectsUnsupportedAndEmpty(t *testing.T) {
	_, err := newReader().Read(strings.NewReader("{}"), "data.json")
	assert.True(t, errors.Is(err, core.ErrUnsupportedFormat))

	_, err = newReader().Read(strings.NewReader("a,b\n"), "header_only.csv")
	assert.True(t, errors.Is(err, core.ErrEmptyDataset))

	_, err = newReader().Read(strings.NewReader(""), "empty.csv")
	assert.True(t, errors.Is(err, core.ErrEmptyDataset))
}

func TestDetectFileType(t *testing.T) {
	ft, err := DetectFileType("Report.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FileTypeXLSX, ft)
	assert.Contains(t, ft.ContentType(), "spreadsheetml")

	ft, err = DetectFileType("a.tsv")
	require.NoError(t, err)
	assert.Equal(t, "text/tab-separated-values", ft.ContentType())

	_, err = DetectFileType("noext")
	assert.Error(t, err)
}

func TestXLSXRoundTrip(t *testing.T) {
	src := frame.MustNew(
		frame.NewTextColumn("city", "Oslo", "Lima", "Pune"),
		frame.NewIntColumn("visits", 3, 10, 7),
		frame.NewColumn("rate", frame.DTypeFloat, []frame.Value{
			frame.NewNumericValue(0.5), frame.Missing(), frame.NewNumericValue(2.25),
		}),
	)

	var buf bytes.Buffer
	require.NoError(t, NewDataWriter(WriterConfig{}).Write(&buf, src, FileTypeXLSX))

	got, err := newReader().Read(&buf, "export.xlsx")
	require.NoError(t, err)
	assert.Equal(t, src.ColumnNames(), got.ColumnNames())
	require.Equal(t, 3, got.NumRows())

	visits, _ := got.Column("visits")
	assert.Equal(t, frame.DTypeInteger, visits.DType())
	assert.Equal(t, 10.0, visits.At(1).Num)

	rate, _ := got.Column("rate")
	assert.True(t, rate.At(1).IsMissing())
	assert.Equal(t, 2.25, rate.At(2).Num)
}
