package excel

import (
	"bytes"
	"testing"
	"time"

	"tidyframe/domain/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	f := frame.MustNew(
		frame.NewTextColumn("name", "a,b", "c"),
		frame.NewColumn("score", frame.DTypeFloat, []frame.Value{frame.NewNumericValue(1.5), frame.Missing()}),
		frame.NewColumn("ok", frame.DTypeBoolean, []frame.Value{frame.NewBooleanValue(true), frame.NewBooleanValue(false)}),
		frame.NewColumn("at", frame.DTypeDatetime, []frame.Value{
			frame.NewTimestampValue(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)), frame.Missing(),
		}),
	)

	var buf bytes.Buffer
	require.NoError(t, NewDataWriter(WriterConfig{}).Write(&buf, f, FileTypeCSV))
	assert.Equal(t, "name,score,ok,at\n\"a,b\",1.5,True,2024-03-01 09:30:00\nc,,False,\n", buf.String())
}

func TestWriteTSVRoundTrip(t *testing.T) {
	f := frame.MustNew(frame.NewTextColumn("x", "p", "q"), frame.NewIntColumn("n", 1, 2))

	var buf bytes.Buffer
	require.NoError(t, NewDataWriter(WriterConfig{}).Write(&buf, f, FileTypeTSV))
	assert.Equal(t, "x\tn\np\t1\nq\t2\n", buf.String())

	got, err := newReader().Read(&buf, "back.tsv")
	require.NoError(t, err)
	assert.True(t, f.Equal(got))
}

func TestWriterCustomSheetName(t *testing.T) {
	f := frame.MustNew(frame.NewIntColumn("n", 1))
	var buf bytes.Buffer
	require.NoError(t, NewDataWriter(WriterConfig{SheetName: "Cleaned"}).WriteXLSX(&buf, f))

	got, err := newReader().Read(&buf, "x.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 1, got.NumRows())
}
