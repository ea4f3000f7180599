package core

import (
	"errors"
	"fmt"
)

// Domain errors - the taxonomy every engine reports through
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrColumnNotFound   = errors.New("column not found")
	ErrTypeConversion   = errors.New("type conversion failed")
	ErrNoHistory        = errors.New("no history available")
	ErrPattern          = errors.New("invalid pattern")

	// Session errors
	ErrNoData          = errors.New("no data loaded in session")
	ErrSessionNotFound = errors.New("session not found")

	// Storage errors
	ErrNotFound          = errors.New("resource not found")
	ErrSavedFileNotFound = fmt.Errorf("%w: saved session", ErrNotFound)
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyDataset      = errors.New("dataset has no rows")
)

// Error constructors with context
func NewInvalidParameterError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

func NewColumnNotFoundError(column string) error {
	return fmt.Errorf("%w: '%s'", ErrColumnNotFound, column)
}

func NewTypeConversionError(column, target string, failed int, example string) error {
	return fmt.Errorf("%w: column '%s' to %s: %d value(s) could not be converted (e.g. '%s')",
		ErrTypeConversion, column, target, failed, example)
}

func NewPatternError(pattern string, err error) error {
	return fmt.Errorf("%w '%s': %v", ErrPattern, pattern, err)
}

func NewNoHistoryError(action string) error {
	return fmt.Errorf("%w: nothing to %s", ErrNoHistory, action)
}

// Error checking helpers
func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

func IsColumnNotFound(err error) bool {
	return errors.Is(err, ErrColumnNotFound)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrSessionNotFound)
}

// IsClientError reports whether err belongs to the taxonomy surfaced verbatim to callers.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidParameter) ||
		errors.Is(err, ErrColumnNotFound) ||
		errors.Is(err, ErrTypeConversion) ||
		errors.Is(err, ErrNoHistory) ||
		errors.Is(err, ErrPattern) ||
		errors.Is(err, ErrNoData) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrEmptyDataset)
}
