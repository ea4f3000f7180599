package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"

	"tidyframe/domain/frame"

	"github.com/xuri/excelize/v2"
)

// DataWriter exports frames as CSV, TSV or XLSX
type DataWriter struct {
	config WriterConfig
}

// NewDataWriter creates a writer; empty fields fall back to the defaults
func NewDataWriter(config WriterConfig) *DataWriter {
	defaults := DefaultWriterConfig()
	if config.SheetName == "" {
		config.SheetName = defaults.SheetName
	}
	if config.TimeFormat == "" {
		config.TimeFormat = defaults.TimeFormat
	}
	return &DataWriter{config: config}
}

// Write encodes f in the given format
func (w *DataWriter) Write(dst io.Writer, f *frame.Frame, fileType FileType) error {
	switch fileType {
	case FileTypeXLSX:
		return w.WriteXLSX(dst, f)
	case FileTypeTSV:
		return w.WriteDelimited(dst, f, '\t')
	default:
		return w.WriteDelimited(dst, f, ',')
	}
}

// WriteDelimited writes a header row then one record per row; missing cells are empty
func (w *DataWriter) WriteDelimited(dst io.Writer, f *frame.Frame, delimiter rune) error {
	out := csv.NewWriter(dst)
	out.Comma = delimiter

	if err := out.Write(f.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	columns := f.Columns()
	record := make([]string, len(columns))
	for r := 0; r < f.NumRows(); r++ {
		for j, col := range columns {
			v := col.At(r)
			if v.Type == frame.ValueTypeTimestamp {
				record[j] = v.Time.Format(w.config.TimeFormat)
				continue
			}
			record[j] = v.String()
		}
		if err := out.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}
	out.Flush()
	return out.Error()
}

// WriteXLSX writes f to a single worksheet using the streaming writer
func (w *DataWriter) WriteXLSX(dst io.Writer, f *frame.Frame) error {
	book := excelize.NewFile()
	defer book.Close()

	if w.config.SheetName != "Sheet1" {
		if err := book.SetSheetName("Sheet1", w.config.SheetName); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}
	stream, err := book.NewStreamWriter(w.config.SheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	header := make([]interface{}, f.NumCols())
	for j, name := range f.ColumnNames() {
		header[j] = name
	}
	if err := stream.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	columns := f.Columns()
	for r := 0; r < f.NumRows(); r++ {
		row := make([]interface{}, len(columns))
		for j, col := range columns {
			row[j] = w.cellValue(col.At(r))
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := stream.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}
	if err := stream.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if _, err := book.WriteTo(dst); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	log.Printf("[DataWriter] Wrote XLSX with %d columns, %d rows", f.NumCols(), f.NumRows())
	return nil
}

func (w *DataWriter) cellValue(v frame.Value) interface{} {
	switch v.Type {
	case frame.ValueTypeString:
		return v.Str
	case frame.ValueTypeNumeric:
		return v.Num
	case frame.ValueTypeBoolean:
		return v.Bool
	case frame.ValueTypeTimestamp:
		return v.Time.Format(w.config.TimeFormat)
	}
	return nil
}
