package history

import (
	"fmt"
	"sort"

	"tidyframe/domain/frame"
)

// Change moves a frame between the states before and after one operation
type Change interface {
	// Revert turns the post-operation frame back into the pre-operation frame
	Revert(after *frame.Frame) (*frame.Frame, error)
	// Reapply turns the pre-operation frame into the post-operation frame again
	Reapply(before *frame.Frame) (*frame.Frame, error)
	// Kind names the representation, used in logs
	Kind() string
}

// Snapshot stores both frames. Frames share unchanged columns, so this only costs
// the columns the operation rebuilt.
type Snapshot struct {
	Before *frame.Frame
	After  *frame.Frame
}

func (s Snapshot) Revert(*frame.Frame) (*frame.Frame, error)  { return s.Before, nil }
func (s Snapshot) Reapply(*frame.Frame) (*frame.Frame, error) { return s.After, nil }
func (s Snapshot) Kind() string                               { return "snapshot" }

// Rename is the inverse-able diff for a single column rename
type Rename struct {
	Old string
	New string
}

func (r Rename) Revert(after *frame.Frame) (*frame.Frame, error) {
	return after.RenameColumn(r.New, r.Old)
}

func (r Rename) Reapply(before *frame.Frame) (*frame.Frame, error) {
	return before.RenameColumn(r.Old, r.New)
}

func (r Rename) Kind() string { return "rename" }

// DropColumns keeps the removed columns and where they sat
type DropColumns struct {
	Columns   []*frame.Column
	Positions []int
}

// NewDropColumns captures the columns about to be dropped from f
func NewDropColumns(f *frame.Frame, names []string) (DropColumns, error) {
	d := DropColumns{}
	for _, name := range names {
		col, err := f.Lookup(name)
		if err != nil {
			return DropColumns{}, err
		}
		d.Columns = append(d.Columns, col)
		d.Positions = append(d.Positions, f.ColumnIndex(name))
	}
	return d, nil
}

func (d DropColumns) Revert(after *frame.Frame) (*frame.Frame, error) {
	order := make([]int, len(d.Positions))
	for i := range order {
		order[i] = i
	}
	// ascending original position keeps every insert index valid
	sort.Slice(order, func(a, b int) bool { return d.Positions[order[a]] < d.Positions[order[b]] })
	out := after
	for _, i := range order {
		var err error
		out, err = out.InsertColumn(d.Positions[i], d.Columns[i])
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d DropColumns) Reapply(before *frame.Frame) (*frame.Frame, error) {
	names := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		names[i] = col.Name()
	}
	return before.DropColumns(names...)
}

func (d DropColumns) Kind() string { return "drop_columns" }

// Permutation records a row reordering: after row i came from before row Order[i]
type Permutation struct {
	Order []int
}

func (p Permutation) Revert(after *frame.Frame) (*frame.Frame, error) {
	if after.NumRows() != len(p.Order) {
		return nil, fmt.Errorf("permutation covers %d rows, frame has %d", len(p.Order), after.NumRows())
	}
	inverse := make([]int, len(p.Order))
	for i, src := range p.Order {
		inverse[src] = i
	}
	return after.Take(inverse), nil
}

func (p Permutation) Reapply(before *frame.Frame) (*frame.Frame, error) {
	if before.NumRows() != len(p.Order) {
		return nil, fmt.Errorf("permutation covers %d rows, frame has %d", len(p.Order), before.NumRows())
	}
	return before.Take(p.Order), nil
}

func (p Permutation) Kind() string { return "permutation" }
