package frame

import (
	"fmt"

	"tidyframe/domain/core"
)

// Frame is an ordered set of equally sized, uniquely named columns.
// Every mutating method returns a new Frame; untouched columns are shared with the receiver.
type Frame struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a frame, validating column lengths and name uniqueness
func New(columns ...*Column) (*Frame, error) {
	f := &Frame{
		columns: make([]*Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if col == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := f.index[col.Name()]; dup {
			return nil, fmt.Errorf("duplicate column name '%s'", col.Name())
		}
		if i == 0 {
			f.rows = col.Len()
		} else if col.Len() != f.rows {
			return nil, fmt.Errorf("column '%s' has %d rows, expected %d", col.Name(), col.Len(), f.rows)
		}
		f.index[col.Name()] = i
		f.columns = append(f.columns, col)
	}
	return f, nil
}

// MustNew is New for fixtures known to be well formed
func MustNew(columns ...*Column) *Frame {
	f, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return f
}

// withColumns rebuilds the index over an already validated column list
func withColumns(columns []*Column, rows int) *Frame {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		index[col.Name()] = i
	}
	return &Frame{columns: columns, index: index, rows: rows}
}

func (f *Frame) NumRows() int { return f.rows }
func (f *Frame) NumCols() int { return len(f.columns) }

// Columns returns the column list in display order
func (f *Frame) Columns() []*Column {
	out := make([]*Column, len(f.columns))
	copy(out, f.columns)
	return out
}

// ColumnNames returns column names in display order
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.columns))
	for i, col := range f.columns {
		names[i] = col.Name()
	}
	return names
}

// Column looks up a column by name
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// Lookup is Column returning ErrColumnNotFound for unknown names
func (f *Frame) Lookup(name string) (*Column, error) {
	col, ok := f.Column(name)
	if !ok {
		return nil, core.NewColumnNotFoundError(name)
	}
	return col, nil
}

// HasColumn reports whether name exists
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// ColumnIndex returns the position of name or -1
func (f *Frame) ColumnIndex(name string) int {
	if i, ok := f.index[name]; ok {
		return i
	}
	return -1
}

// ReplaceColumns swaps in columns with matching names, keeping positions
func (f *Frame) ReplaceColumns(cols ...*Column) (*Frame, error) {
	next := f.Columns()
	for _, col := range cols {
		i, ok := f.index[col.Name()]
		if !ok {
			return nil, core.NewColumnNotFoundError(col.Name())
		}
		if col.Len() != f.rows {
			return nil, fmt.Errorf("column '%s' has %d rows, expected %d", col.Name(), col.Len(), f.rows)
		}
		next[i] = col
	}
	return withColumns(next, f.rows), nil
}

// RenameColumn renames old to name in place
func (f *Frame) RenameColumn(old, name string) (*Frame, error) {
	i, ok := f.index[old]
	if !ok {
		return nil, core.NewColumnNotFoundError(old)
	}
	if old == name {
		return f, nil
	}
	if f.HasColumn(name) {
		return nil, core.NewInvalidParameterError("column '%s' already exists", name)
	}
	next := f.Columns()
	next[i] = next[i].Renamed(name)
	return withColumns(next, f.rows), nil
}

// DropColumns removes the named columns; every name must exist
func (f *Frame) DropColumns(names ...string) (*Frame, error) {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		if !f.HasColumn(name) {
			return nil, core.NewColumnNotFoundError(name)
		}
		drop[name] = true
	}
	next := make([]*Column, 0, len(f.columns))
	for _, col := range f.columns {
		if !drop[col.Name()] {
			next = append(next, col)
		}
	}
	return withColumns(next, f.rows), nil
}

// InsertColumn places col at position pos (clamped to the valid range)
func (f *Frame) InsertColumn(pos int, col *Column) (*Frame, error) {
	if f.HasColumn(col.Name()) {
		return nil, core.NewInvalidParameterError("column '%s' already exists", col.Name())
	}
	if len(f.columns) > 0 && col.Len() != f.rows {
		return nil, fmt.Errorf("column '%s' has %d rows, expected %d", col.Name(), col.Len(), f.rows)
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(f.columns) {
		pos = len(f.columns)
	}
	next := make([]*Column, 0, len(f.columns)+1)
	next = append(next, f.columns[:pos]...)
	next = append(next, col)
	next = append(next, f.columns[pos:]...)
	rows := f.rows
	if len(f.columns) == 0 {
		rows = col.Len()
	}
	return withColumns(next, rows), nil
}

// AppendColumns adds columns at the end
func (f *Frame) AppendColumns(cols ...*Column) (*Frame, error) {
	out := f
	for _, col := range cols {
		var err error
		out, err = out.InsertColumn(out.NumCols(), col)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Take selects rows by position, in the given order
func (f *Frame) Take(rows []int) *Frame {
	next := make([]*Column, len(f.columns))
	for i, col := range f.columns {
		next[i] = col.Take(rows)
	}
	return withColumns(next, len(rows))
}

// Filter keeps the rows for which keep returns true
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	rows := make([]int, 0, f.rows)
	for r := 0; r < f.rows; r++ {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	if len(rows) == f.rows {
		return f
	}
	return f.Take(rows)
}

// Head returns the first n rows sharing storage with the receiver
func (f *Frame) Head(n int) *Frame {
	if n >= f.rows {
		return f
	}
	if n < 0 {
		n = 0
	}
	next := make([]*Column, len(f.columns))
	for i, col := range f.columns {
		next[i] = col.Slice(0, n)
	}
	return withColumns(next, n)
}

// Row returns the cells of row r in column order
func (f *Frame) Row(r int) []Value {
	out := make([]Value, len(f.columns))
	for i, col := range f.columns {
		out[i] = col.At(r)
	}
	return out
}

// Equal reports whether two frames hold the same columns, order, dtypes and cells
func (f *Frame) Equal(o *Frame) bool {
	if f == o {
		return true
	}
	if f == nil || o == nil {
		return false
	}
	if f.rows != o.rows || len(f.columns) != len(o.columns) {
		return false
	}
	for i := range f.columns {
		if !f.columns[i].Equal(o.columns[i]) {
			return false
		}
	}
	return true
}
