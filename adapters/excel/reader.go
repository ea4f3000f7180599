package excel

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tidyframe/adapters/datareadiness/coercer"
	"tidyframe/domain/core"
	"tidyframe/domain/frame"

	"github.com/xuri/excelize/v2"
)

// DataReader loads CSV, TSV, TXT and XLSX files into frames
type DataReader struct {
	config  ReaderConfig
	coercer *coercer.TypeCoercer
}

// NewDataReader creates a reader. A nil coercer uses the default conversion rules.
func NewDataReader(config ReaderConfig, c *coercer.TypeCoercer) *DataReader {
	if c == nil {
		c = coercer.Default()
	}
	if config.SniffBytes <= 0 {
		config.SniffBytes = DefaultReaderConfig().SniffBytes
	}
	return &DataReader{config: config, coercer: c}
}

// ReadFile reads a file from disk, choosing the format from its extension
func (r *DataReader) ReadFile(path string) (*frame.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()
	return r.Read(file, filepath.Base(path))
}

// Read parses src as the format implied by filename
func (r *DataReader) Read(src io.Reader, filename string) (*frame.Frame, error) {
	fileType, err := DetectFileType(filename)
	if err != nil {
		return nil, err
	}
	log.Printf("[DataReader] Starting to read %s file: %s", fileType, filename)

	start := time.Now()
	var rows [][]string
	switch fileType {
	case FileTypeXLSX:
		rows, err = r.readExcelRows(src)
	default:
		rows, err = r.readDelimitedRows(src, fileType)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: %s needs a header row and at least one data row", core.ErrEmptyDataset, filename)
	}

	f, err := r.buildFrame(rows)
	if err != nil {
		return nil, err
	}
	log.Printf("[DataReader] %s file processed in %.2fms (%d columns, %d rows)",
		strings.ToUpper(string(fileType)), float64(time.Since(start).Nanoseconds())/1e6, f.NumCols(), f.NumRows())
	return f, nil
}

// readExcelRows reads the first worksheet
func (r *DataReader) readExcelRows(src io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", core.ErrEmptyDataset)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// readDelimitedRows sniffs the delimiter from the first bytes and parses the rest
func (r *DataReader) readDelimitedRows(src io.Reader, fileType FileType) ([][]string, error) {
	buffered := bufio.NewReaderSize(src, r.config.SniffBytes)
	head, err := buffered.Peek(r.config.SniffBytes)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	delimiter := '\t'
	if fileType != FileTypeTSV {
		delimiter = SniffDelimiter(head)
	}

	reader := csv.NewReader(buffered)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse delimited file: %v", core.ErrUnsupportedFormat, err)
	}
	return rows, nil
}

// buildFrame turns raw rows into typed columns, padding short rows with missing cells
func (r *DataReader) buildFrame(rows [][]string) (*frame.Frame, error) {
	headers := NormalizeHeaders(rows[0])
	data := rows[1:]

	columns := make([]*frame.Column, len(headers))
	for j, header := range headers {
		raw := make([]string, len(data))
		for i, row := range data {
			if j < len(row) {
				raw[i] = row[j]
			}
		}
		columns[j] = r.coercer.InferColumn(header, raw)
	}
	return frame.New(columns...)
}

// NormalizeHeaders trims names, fills blanks and suffixes duplicates with .1, .2, ...
func NormalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	taken := make(map[string]bool, len(raw))
	for i, h := range raw {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for n := 1; taken[name]; n++ {
			name = fmt.Sprintf("%s.%d", h, n)
		}
		taken[name] = true
		headers[i] = name
	}
	return headers
}

// SniffDelimiter picks the candidate delimiter that splits the first line most consistently
func SniffDelimiter(head []byte) rune {
	lines := bytes.Split(head, []byte("\n"))
	if len(lines) > 1 && len(head) > 0 && head[len(head)-1] != '\n' {
		lines = lines[:len(lines)-1]
	}

	best, bestScore := ',', 0
	for _, d := range Delimiters {
		counts := make([]int, 0, len(lines))
		for _, line := range lines {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			counts = append(counts, countOutsideQuotes(line, byte(d)))
		}
		if len(counts) == 0 || counts[0] == 0 {
			continue
		}
		score := counts[0]
		for _, c := range counts[1:] {
			if c != counts[0] {
				score = counts[0] / 2
				break
			}
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func countOutsideQuotes(line []byte, d byte) int {
	n, quoted := 0, false
	for _, b := range line {
		switch b {
		case '"':
			quoted = !quoted
		case d:
			if !quoted {
				n++
			}
		}
	}
	return n
}
