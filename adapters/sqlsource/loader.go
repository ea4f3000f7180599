package sqlsource

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	"tidyframe/adapters/datareadiness/coercer"
	"tidyframe/adapters/excel"
	"tidyframe/domain/core"
	"tidyframe/domain/frame"
	apperrors "tidyframe/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported source types
const (
	TypeSQLite     = "sqlite"
	TypePostgreSQL = "postgresql"
)

// Source describes the database a query runs against. For SQLite, Name is the file path.
type Source struct {
	Type     string `json:"db_type" form:"db_type"`
	Host     string `json:"db_host" form:"db_host"`
	Port     string `json:"db_port" form:"db_port"`
	Name     string `json:"db_name" form:"db_name"`
	User     string `json:"db_user" form:"db_user"`
	Password string `json:"db_password" form:"db_password"`
	SSLMode  string `json:"db_sslmode" form:"db_sslmode"`
}

// normalizedType folds the accepted spellings onto a Type constant
func (s Source) normalizedType() (string, error) {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case "sqlite", "sqlite3":
		return TypeSQLite, nil
	case "postgresql", "postgres":
		return TypePostgreSQL, nil
	case "":
		return "", core.NewInvalidParameterError("'db_type' is required")
	}
	return "", core.NewInvalidParameterError("unsupported database type '%s' (use sqlite or postgresql)", s.Type)
}

// driver returns the database/sql driver name and DSN for the source
func (s Source) driver() (string, string, error) {
	kind, err := s.normalizedType()
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(s.Name) == "" {
		return "", "", core.NewInvalidParameterError("'db_name' is required")
	}

	if kind == TypeSQLite {
		// opened read-only so a query can never create or change the file
		return "sqlite3", fmt.Sprintf("file:%s?mode=ro", s.Name), nil
	}

	host := s.Host
	if host == "" {
		host = "localhost"
	}
	port := s.Port
	if port == "" {
		port = "5432"
	}
	sslMode := s.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.User, s.Password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + s.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return "postgres", dsn.String(), nil
}

// Describe labels the source for logs and the session's source name. Credentials are never included.
func (s Source) Describe() string {
	kind, err := s.normalizedType()
	if err != nil {
		return "Database"
	}
	if kind == TypeSQLite {
		return "SQLite: " + s.Name
	}
	return fmt.Sprintf("PostgreSQL: %s@%s:%s/%s", s.User, s.Host, s.Port, s.Name)
}

// Config bounds how long a query may run and how many rows it may return
type Config struct {
	Timeout time.Duration
	MaxRows int
}

// DefaultConfig returns the limits used when none are configured
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		MaxRows: 1_000_000,
	}
}

// Loader runs a SQL query and turns the result set into a frame
type Loader struct {
	config  Config
	coercer *coercer.TypeCoercer
}

// NewLoader creates a query loader. A nil coercer uses the default conversion rules.
func NewLoader(config Config, c *coercer.TypeCoercer) *Loader {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRows <= 0 {
		config.MaxRows = defaults.MaxRows
	}
	if c == nil {
		c = coercer.Default()
	}
	return &Loader{config: config, coercer: c}
}

// Load connects to src, runs query and returns its rows as a frame. Connection and query
// failures are reported as invalid input since both come from the client.
func (l *Loader) Load(ctx context.Context, src Source, query string) (*frame.Frame, error) {
	if strings.TrimSpace(query) == "" {
		return nil, core.NewInvalidParameterError("SQL query cannot be empty")
	}
	driverName, dsn, err := src.driver()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	start := time.Now()
	log.Printf("[QueryLoader] Running query against %s", src.Describe())

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidInput, fmt.Errorf("database connection error: %w", err))
	}
	defer db.Close()

	rows, err := db.QueryxContext(ctx, query)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidInput, fmt.Errorf("database query error: %w", err))
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidInput, fmt.Errorf("database query error: %w", err))
	}
	if len(names) == 0 {
		return nil, core.NewInvalidParameterError("query returned no columns")
	}

	var records [][]interface{}
	truncated := false
	for rows.Next() {
		if len(records) == l.config.MaxRows {
			truncated = true
			break
		}
		record, err := rows.SliceScan()
		if err != nil {
			return nil, apperrors.WithCode(apperrors.CodeInvalidInput, fmt.Errorf("failed to read query row %d: %w", len(records)+1, err))
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidInput, fmt.Errorf("database query error: %w", err))
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: query returned no rows", core.ErrEmptyDataset)
	}
	if truncated {
		log.Printf("[QueryLoader] Result truncated to %d rows", l.config.MaxRows)
	}

	headers := excel.NormalizeHeaders(names)
	columns := make([]*frame.Column, len(headers))
	for j, name := range headers {
		cells := make([]interface{}, len(records))
		for i, record := range records {
			cells[i] = record[j]
		}
		columns[j] = l.buildColumn(name, cells)
	}

	f, err := frame.New(columns...)
	if err != nil {
		return nil, err
	}
	log.Printf("[QueryLoader] Query returned %d rows x %d columns in %v",
		f.NumRows(), f.NumCols(), time.Since(start).Round(time.Millisecond))
	return f, nil
}

// buildColumn keeps the driver's types when every cell agrees on one. Text cells, or a
// mix of kinds, go through the same inference a CSV upload gets.
func (l *Loader) buildColumn(name string, cells []interface{}) *frame.Column {
	values := make([]frame.Value, len(cells))
	var ints, floats, bools, times, present int
	for i, cell := range cells {
		switch v := cell.(type) {
		case nil:
			values[i] = frame.Missing()
			continue
		case int64:
			values[i] = frame.NewNumericValue(float64(v))
			ints++
		case float64:
			values[i] = frame.NewNumericValue(v)
			floats++
		case bool:
			values[i] = frame.NewBooleanValue(v)
			bools++
		case time.Time:
			values[i] = frame.NewTimestampValue(v)
			times++
		case []byte:
			values[i] = frame.NewStringValue(string(v))
		default:
			values[i] = frame.NewStringValue(fmt.Sprint(v))
		}
		present++
	}

	switch {
	case present == 0:
		return frame.NewColumn(name, frame.DTypeFloat, values)
	case ints == present:
		return frame.NewColumn(name, frame.DTypeInteger, values)
	case ints+floats == present:
		return frame.NewColumn(name, frame.DTypeFloat, values)
	case bools == present:
		return frame.NewColumn(name, frame.DTypeBoolean, values)
	case times == present:
		return frame.NewColumn(name, frame.DTypeDatetime, values)
	}

	raw := make([]string, len(cells))
	for i, v := range values {
		raw[i] = v.String()
	}
	return l.coercer.InferColumn(name, raw)
}
