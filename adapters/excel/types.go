package excel

import (
	"fmt"
	"path/filepath"
	"strings"

	"tidyframe/domain/core"
)

// FileType identifies a supported tabular file format
type FileType string

const (
	FileTypeCSV  FileType = "csv"
	FileTypeTSV  FileType = "tsv"
	FileTypeTXT  FileType = "txt"
	FileTypeXLSX FileType = "xlsx"
)

// Delimiters are the separators tried when sniffing delimited text
var Delimiters = []rune{',', ';', '\t', '|'}

// DetectFileType maps a filename extension to a supported format
func DetectFileType(filename string) (FileType, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch FileType(ext) {
	case FileTypeCSV, FileTypeTSV, FileTypeTXT, FileTypeXLSX:
		return FileType(ext), nil
	case "xls":
		return FileTypeXLSX, nil
	}
	return "", fmt.Errorf("%w: %q (expected .csv, .tsv, .txt or .xlsx)", core.ErrUnsupportedFormat, filepath.Ext(filename))
}

// ContentType returns the MIME type used when serving a file of this type
func (t FileType) ContentType() string {
	switch t {
	case FileTypeXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FileTypeTSV:
		return "text/tab-separated-values"
	default:
		return "text/csv"
	}
}
