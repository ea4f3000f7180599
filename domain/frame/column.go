package frame

// DType is the logical type of a column
type DType string

const (
	DTypeInteger  DType = "integer"
	DTypeFloat    DType = "float"
	DTypeText     DType = "text"
	DTypeDatetime DType = "datetime"
	DTypeBoolean  DType = "boolean"
	DTypeCategory DType = "category"
)

// IsNumeric covers integer and float columns
func (d DType) IsNumeric() bool {
	return d == DTypeInteger || d == DTypeFloat
}

// IsTextLike covers free text and categorical columns
func (d DType) IsTextLike() bool {
	return d == DTypeText || d == DTypeCategory
}

func (d DType) String() string {
	return string(d)
}

// Column is an immutable named sequence of cells.
// Frames share column pointers across history snapshots, so a column's values must never be written
// after construction.
type Column struct {
	name   string
	dtype  DType
	values []Value
}

// NewColumn creates a column that takes ownership of values
func NewColumn(name string, dtype DType, values []Value) *Column {
	if values == nil {
		values = []Value{}
	}
	return &Column{name: name, dtype: dtype, values: values}
}

// NewFloatColumn builds a float column; NaN entries become missing
func NewFloatColumn(name string, values ...float64) *Column {
	return NewColumn(name, DTypeFloat, numericValues(values))
}

// NewIntColumn builds an integer column; NaN entries become missing
func NewIntColumn(name string, values ...float64) *Column {
	return NewColumn(name, DTypeInteger, numericValues(values))
}

func numericValues(values []float64) []Value {
	out := make([]Value, len(values))
	for i, v := range values {
		out[i] = NewNumericValue(v)
	}
	return out
}

// NewTextColumn builds a text column from plain strings
func NewTextColumn(name string, values ...string) *Column {
	out := make([]Value, len(values))
	for i, v := range values {
		out[i] = NewStringValue(v)
	}
	return NewColumn(name, DTypeText, out)
}

func (c *Column) Name() string { return c.name }
func (c *Column) DType() DType { return c.dtype }
func (c *Column) Len() int     { return len(c.values) }

// At returns the cell at row i
func (c *Column) At(i int) Value {
	return c.values[i]
}

// Values returns a copy of the cells
func (c *Column) Values() []Value {
	out := make([]Value, len(c.values))
	copy(out, c.values)
	return out
}

// Renamed returns a column with a new name sharing the same cells
func (c *Column) Renamed(name string) *Column {
	return &Column{name: name, dtype: c.dtype, values: c.values}
}

// WithDType returns a column with a new dtype sharing the same cells
func (c *Column) WithDType(dtype DType) *Column {
	return &Column{name: c.name, dtype: dtype, values: c.values}
}

// WithValues returns a column with the same name and dtype over new cells
func (c *Column) WithValues(values []Value) *Column {
	return NewColumn(c.name, c.dtype, values)
}

// Take returns a column holding the rows at the given positions
func (c *Column) Take(rows []int) *Column {
	out := make([]Value, len(rows))
	for i, r := range rows {
		out[i] = c.values[r]
	}
	return NewColumn(c.name, c.dtype, out)
}

// Slice returns rows [start, end) sharing storage
func (c *Column) Slice(start, end int) *Column {
	return &Column{name: c.name, dtype: c.dtype, values: c.values[start:end:end]}
}

// MissingCount counts missing cells
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.values {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// Floats returns the non-missing numeric cells in row order
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.values))
	for _, v := range c.values {
		if v.Type == ValueTypeNumeric {
			out = append(out, v.Num)
		}
	}
	return out
}

// NonMissing returns the non-missing cells in row order
func (c *Column) NonMissing() []Value {
	out := make([]Value, 0, len(c.values))
	for _, v := range c.values {
		if !v.IsMissing() {
			out = append(out, v)
		}
	}
	return out
}

// Distinct counts distinct non-missing cells
func (c *Column) Distinct() int {
	seen := make(map[string]struct{}, len(c.values))
	for _, v := range c.values {
		if v.IsMissing() {
			continue
		}
		seen[v.Key()] = struct{}{}
	}
	return len(seen)
}

// Equal compares name, dtype and every cell
func (c *Column) Equal(o *Column) bool {
	if c == o {
		return true
	}
	if c.name != o.name || c.dtype != o.dtype || len(c.values) != len(o.values) {
		return false
	}
	for i := range c.values {
		if !c.values[i].Equal(o.values[i]) {
			return false
		}
	}
	return true
}
