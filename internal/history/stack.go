package history

import (
	"time"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"
)

// DefaultDepth bounds how many operations can be undone
const DefaultDepth = 10

// Record is one applied operation
type Record struct {
	Operation string                 `json:"operation"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Message   string                 `json:"message"`
	Modified  bool                   `json:"modified"`
	AppliedAt time.Time              `json:"applied_at"`
	Change    Change                 `json:"-"`
}

// Status mirrors the undo/redo buttons the client renders
type Status struct {
	UndoEnabled bool `json:"undo_enabled"`
	RedoEnabled bool `json:"redo_enabled"`
}

// Stack holds the undo and redo records of one session. It is not safe for concurrent use;
// the owning session serializes access.
type Stack struct {
	depth int
	undo  []Record
	redo  []Record
}

// NewStack creates a stack keeping at most depth undo records
func NewStack(depth int) *Stack {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Stack{depth: depth}
}

// Push records an applied operation and invalidates redo
func (s *Stack) Push(rec Record) Status {
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = time.Now()
	}
	s.undo = append(s.undo, rec)
	if over := len(s.undo) - s.depth; over > 0 {
		trimmed := make([]Record, s.depth)
		copy(trimmed, s.undo[over:])
		s.undo = trimmed
	}
	s.redo = nil
	return s.Status()
}

// Undo reverts the most recent record against current
func (s *Stack) Undo(current *frame.Frame) (*frame.Frame, Record, error) {
	if len(s.undo) == 0 {
		return nil, Record{}, core.NewNoHistoryError("undo")
	}
	rec := s.undo[len(s.undo)-1]
	prev, err := rec.Change.Revert(current)
	if err != nil {
		return nil, Record{}, err
	}
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, rec)
	return prev, rec, nil
}

// Redo reapplies the most recently undone record against current
func (s *Stack) Redo(current *frame.Frame) (*frame.Frame, Record, error) {
	if len(s.redo) == 0 {
		return nil, Record{}, core.NewNoHistoryError("redo")
	}
	rec := s.redo[len(s.redo)-1]
	next, err := rec.Change.Reapply(current)
	if err != nil {
		return nil, Record{}, err
	}
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, rec)
	return next, rec, nil
}

// Status reports which directions are available
func (s *Stack) Status() Status {
	return Status{UndoEnabled: len(s.undo) > 0, RedoEnabled: len(s.redo) > 0}
}

// Depth returns the configured bound
func (s *Stack) Depth() int { return s.depth }

// Len returns the number of undoable records
func (s *Stack) Len() int { return len(s.undo) }

// Entries returns the undo records oldest first
func (s *Stack) Entries() []Record {
	out := make([]Record, len(s.undo))
	copy(out, s.undo)
	return out
}

// Clear drops all history
func (s *Stack) Clear() {
	s.undo = nil
	s.redo = nil
}
