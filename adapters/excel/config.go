package excel

// ReaderConfig holds configuration for reading uploaded files
type ReaderConfig struct {
	SniffBytes int `json:"sniff_bytes"`
}

// DefaultReaderConfig returns sensible defaults for file processing
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		SniffBytes: 64 * 1024,
	}
}

// WriterConfig controls exported files
type WriterConfig struct {
	SheetName  string `json:"sheet_name"`
	TimeFormat string `json:"time_format"`
}

// DefaultWriterConfig returns the export defaults
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		SheetName:  "Sheet1",
		TimeFormat: "2006-01-02 15:04:05",
	}
}
