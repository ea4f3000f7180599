package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Short returns the first n hex characters of the identifier with dashes removed.
func (id ID) Short(n int) string {
	compact := strings.ReplaceAll(string(id), "-", "")
	if n <= 0 || n > len(compact) {
		return compact
	}
	return compact[:n]
}

// Domain-specific ID types
type (
	SessionID      ID
	SavedSessionID ID
)

func (id SessionID) String() string      { return ID(id).String() }
func (id SavedSessionID) String() string { return ID(id).String() }

// NewSessionID creates a time-ordered session identifier
func NewSessionID() SessionID {
	return SessionID(NewID())
}

// ParseSessionID parses a string into SessionID
func ParseSessionID(s string) (SessionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("session ID is not a valid UUID: %w", err)
	}
	return SessionID(s), nil
}
