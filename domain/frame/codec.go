package frame

import (
	"encoding/json"
	"fmt"
	"time"
)

// encodedFrame is the on-disk layout used for saved sessions
type encodedFrame struct {
	Version int             `json:"version"`
	Rows    int             `json:"rows"`
	Columns []encodedColumn `json:"columns"`
}

type encodedColumn struct {
	Name   string        `json:"name"`
	DType  DType         `json:"dtype"`
	Values []interface{} `json:"values"`
}

const codecVersion = 1

// MarshalJSON encodes the frame with dtypes so it can be restored without inference
func (f *Frame) MarshalJSON() ([]byte, error) {
	enc := encodedFrame{Version: codecVersion, Rows: f.rows, Columns: make([]encodedColumn, len(f.columns))}
	for i, col := range f.columns {
		values := make([]interface{}, col.Len())
		for r := 0; r < col.Len(); r++ {
			v := col.At(r)
			switch v.Type {
			case ValueTypeString:
				values[r] = v.Str
			case ValueTypeNumeric:
				values[r] = v.Num
			case ValueTypeBoolean:
				values[r] = v.Bool
			case ValueTypeTimestamp:
				values[r] = v.Time.Format(time.RFC3339Nano)
			default:
				values[r] = nil
			}
		}
		enc.Columns[i] = encodedColumn{Name: col.Name(), DType: col.DType(), Values: values}
	}
	return json.Marshal(enc)
}

// Decode restores a frame written by MarshalJSON
func Decode(data []byte) (*Frame, error) {
	var enc encodedFrame
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if enc.Version != codecVersion {
		return nil, fmt.Errorf("unsupported frame version %d", enc.Version)
	}

	cols := make([]*Column, len(enc.Columns))
	for i, ec := range enc.Columns {
		values := make([]Value, len(ec.Values))
		for r, raw := range ec.Values {
			v, err := decodeCell(ec.DType, raw)
			if err != nil {
				return nil, fmt.Errorf("column '%s' row %d: %w", ec.Name, r, err)
			}
			values[r] = v
		}
		cols[i] = NewColumn(ec.Name, ec.DType, values)
	}
	return New(cols...)
}

func decodeCell(dtype DType, raw interface{}) (Value, error) {
	if raw == nil {
		return Missing(), nil
	}
	switch x := raw.(type) {
	case float64:
		return NewNumericValue(x), nil
	case bool:
		return NewBooleanValue(x), nil
	case string:
		if dtype == DTypeDatetime {
			t, err := time.Parse(time.RFC3339Nano, x)
			if err != nil {
				return Value{}, err
			}
			return NewTimestampValue(t), nil
		}
		return NewStringValue(x), nil
	}
	return Value{}, fmt.Errorf("unexpected cell of type %T", raw)
}
