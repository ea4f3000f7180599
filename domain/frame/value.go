package frame

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Value represents a single typed cell
type Value struct {
	Type ValueType
	Str  string
	Num  float64
	Bool bool
	Time time.Time
}

// ValueType defines the storage type for values
type ValueType uint8

const (
	ValueTypeMissing ValueType = iota
	ValueTypeString
	ValueTypeNumeric
	ValueTypeBoolean
	ValueTypeTimestamp
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeString:
		return "string"
	case ValueTypeNumeric:
		return "numeric"
	case ValueTypeBoolean:
		return "boolean"
	case ValueTypeTimestamp:
		return "timestamp"
	default:
		return "missing"
	}
}

// NewStringValue creates a string value. Empty strings are kept as values, not missing.
func NewStringValue(s string) Value {
	return Value{Type: ValueTypeString, Str: s}
}

// NewNumericValue creates a numeric value; NaN and infinities become missing
func NewNumericValue(n float64) Value {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Missing()
	}
	return Value{Type: ValueTypeNumeric, Num: n}
}

// NewBooleanValue creates a boolean value
func NewBooleanValue(b bool) Value {
	return Value{Type: ValueTypeBoolean, Bool: b}
}

// NewTimestampValue creates a timestamp value
func NewTimestampValue(t time.Time) Value {
	if t.IsZero() {
		return Missing()
	}
	return Value{Type: ValueTypeTimestamp, Time: t}
}

// Missing returns the missing marker
func Missing() Value {
	return Value{Type: ValueTypeMissing}
}

// IsMissing reports whether the cell holds no value
func (v Value) IsMissing() bool {
	return v.Type == ValueTypeMissing
}

// IsNumeric returns true if the value represents a valid number
func (v Value) IsNumeric() bool {
	return v.Type == ValueTypeNumeric
}

// String returns the display representation of the value. Missing renders as "".
func (v Value) String() string {
	switch v.Type {
	case ValueTypeString:
		return v.Str
	case ValueTypeNumeric:
		return FormatNumber(v.Num)
	case ValueTypeBoolean:
		if v.Bool {
			return "True"
		}
		return "False"
	case ValueTypeTimestamp:
		return FormatTime(v.Time)
	}
	return ""
}

// Equal reports whether two cells hold the same type and payload
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case ValueTypeString:
		return v.Str == o.Str
	case ValueTypeNumeric:
		return v.Num == o.Num
	case ValueTypeBoolean:
		return v.Bool == o.Bool
	case ValueTypeTimestamp:
		return v.Time.Equal(o.Time)
	}
	return true
}

// Key returns a string usable as a map key that distinguishes types
func (v Value) Key() string {
	switch v.Type {
	case ValueTypeString:
		return "s:" + v.Str
	case ValueTypeNumeric:
		return "n:" + strconv.FormatFloat(v.Num, 'g', -1, 64)
	case ValueTypeBoolean:
		return "b:" + strconv.FormatBool(v.Bool)
	case ValueTypeTimestamp:
		return "t:" + strconv.FormatInt(v.Time.UnixNano(), 10)
	}
	return "m:"
}

// Compare orders two cells. Missing sorts after everything; mixed types fall back to type order.
func Compare(a, b Value) int {
	if a.IsMissing() || b.IsMissing() {
		switch {
		case a.IsMissing() && b.IsMissing():
			return 0
		case a.IsMissing():
			return 1
		default:
			return -1
		}
	}
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}
	switch a.Type {
	case ValueTypeNumeric:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	case ValueTypeBoolean:
		switch {
		case a.Bool == b.Bool:
			return 0
		case !a.Bool:
			return -1
		}
		return 1
	case ValueTypeTimestamp:
		return a.Time.Compare(b.Time)
	}
	return strings.Compare(a.Str, b.Str)
}

// FormatNumber renders integral values without a fractional part
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// FormatTime renders dates without a clock component when it is midnight
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}
