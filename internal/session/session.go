package session

import (
	"fmt"
	"sync"
	"time"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"
	"tidyframe/internal/autoclean"
	"tidyframe/internal/history"
)

// SearchState is the transient view filter. It never enters history.
type SearchState struct {
	Column           string `json:"column"`
	Term             string `json:"term"`
	OriginalRowCount int    `json:"original_row_count"`
	Rows             []int  `json:"-"`
}

// FilteredRowCount is the number of rows visible through the filter
func (s SearchState) FilteredRowCount() int {
	return len(s.Rows)
}

// Mutation is what an operation hands back to the session
type Mutation struct {
	Frame    *frame.Frame
	Message  string
	Modified bool
	// Change may be nil, in which case a snapshot of both frames is recorded
	Change history.Change
}

// Outcome is the result of a mutating call. State is captured before the lock is released,
// so it always matches Message and Modified.
type Outcome struct {
	State
	Message       string
	Modified      bool
	SearchCleared bool
}

// State is a consistent copy of the session taken under its lock
type State struct {
	ID            core.SessionID
	Frame         *frame.Frame
	Search        *SearchState
	Config        autoclean.Config
	Status        history.Status
	SourceName    string
	SavedFilename string
	CreatedAt     time.Time
}

// View returns the frame as the client sees it, narrowed by the active search
func (s State) View() *frame.Frame {
	if s.Frame == nil || s.Search == nil {
		return s.Frame
	}
	return s.Frame.Take(s.Search.Rows)
}

// Session holds one user's dataframe, history, search and auto-clean config.
// Every method serializes on the session mutex so operations never interleave.
type Session struct {
	ID core.SessionID

	mu            sync.Mutex
	frame         *frame.Frame
	history       *history.Stack
	search        *SearchState
	config        autoclean.Config
	sourceName    string
	savedFilename string
	createdAt     time.Time
	lastAccess    time.Time
}

// New creates a session around an already loaded frame
func New(id core.SessionID, f *frame.Frame, sourceName string, depth int) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		frame:      f,
		history:    history.NewStack(depth),
		config:     autoclean.DefaultConfig(),
		sourceName: sourceName,
		createdAt:  now,
		lastAccess: now,
	}
}

// State returns a snapshot of the session
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	st := State{
		ID:            s.ID,
		Frame:         s.frame,
		Config:        s.config,
		Status:        s.history.Status(),
		SourceName:    s.sourceName,
		SavedFilename: s.savedFilename,
		CreatedAt:     s.createdAt,
	}
	if s.search != nil {
		search := *s.search
		st.Search = &search
	}
	return st
}

// Mutate runs fn against the current frame and records the result as one history entry.
// When fn fails or reports no modification the session is left exactly as it was.
func (s *Session) Mutate(op string, params map[string]interface{}, fn func(cur *frame.Frame) (Mutation, error)) (Outcome, error) {
	return s.MutateWithConfig(op, params, func(cur *frame.Frame, _ autoclean.Config) (Mutation, error) {
		return fn(cur)
	})
}

// MutateWithConfig is Mutate for operations that also read the session's auto-clean config
func (s *Session) MutateWithConfig(op string, params map[string]interface{}, fn func(cur *frame.Frame, cfg autoclean.Config) (Mutation, error)) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()

	if s.frame == nil {
		return Outcome{}, core.ErrNoData
	}

	m, err := fn(s.frame, s.config)
	if err != nil {
		return Outcome{}, err
	}
	if !m.Modified || m.Frame == nil {
		return Outcome{State: s.stateLocked(), Message: m.Message}, nil
	}

	change := m.Change
	if change == nil {
		change = history.Snapshot{Before: s.frame, After: m.Frame}
	}
	s.history.Push(history.Record{
		Operation: op,
		Params:    params,
		Message:   m.Message,
		Modified:  true,
		Change:    change,
	})
	s.frame = m.Frame
	cleared := s.clearSearchLocked()

	return Outcome{State: s.stateLocked(), Message: m.Message, Modified: true, SearchCleared: cleared}, nil
}

// Undo restores the frame before the most recent operation
func (s *Session) Undo() (Outcome, error) {
	return s.step(s.history.Undo, "Undo")
}

// Redo reapplies the most recently undone operation
func (s *Session) Redo() (Outcome, error) {
	return s.step(s.history.Redo, "Redo")
}

func (s *Session) step(move func(*frame.Frame) (*frame.Frame, history.Record, error), label string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()

	if s.frame == nil {
		return Outcome{}, core.ErrNoData
	}
	next, rec, err := move(s.frame)
	if err != nil {
		return Outcome{}, err
	}
	s.frame = next
	cleared := s.clearSearchLocked()
	return Outcome{
		State:         s.stateLocked(),
		Message:       fmt.Sprintf("%s successful: %s", label, rec.Operation),
		Modified:      true,
		SearchCleared: cleared,
	}, nil
}

// ApplySearch computes a search against the current frame and stores it as the active view
func (s *Session) ApplySearch(fn func(cur *frame.Frame) (*SearchState, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()

	if s.frame == nil {
		return State{}, core.ErrNoData
	}
	search, err := fn(s.frame)
	if err != nil {
		return State{}, err
	}
	s.search = search
	return s.stateLocked(), nil
}

// ClearSearch drops the active view filter and reports whether one was set
func (s *Session) ClearSearch() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := s.clearSearchLocked()
	return s.stateLocked(), cleared
}

func (s *Session) clearSearchLocked() bool {
	if s.search == nil {
		return false
	}
	s.search = nil
	return true
}

// SetConfig replaces the auto-clean configuration
func (s *Session) SetConfig(cfg autoclean.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// SetSavedFilename remembers the last name the dataset was saved under
func (s *Session) SetSavedFilename(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedFilename = name
}

// Replace swaps in a freshly loaded dataset and forgets history and search
func (s *Session) Replace(f *frame.Frame, sourceName string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = f
	s.sourceName = sourceName
	s.savedFilename = ""
	s.search = nil
	s.history.Clear()
	s.lastAccess = time.Now()
	return s.stateLocked()
}

// History returns the undoable records oldest first
func (s *Session) History() []history.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Entries()
}

// Touch marks the session as used now
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
}

// IdleSince reports the last access time
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}
