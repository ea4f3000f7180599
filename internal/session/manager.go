package session

import (
	"context"
	"log"
	"sync"
	"time"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"
)

// ManagerConfig controls session lifetime and history depth
type ManagerConfig struct {
	HistoryDepth int
	TTL          time.Duration
}

// Manager owns every live session. Sessions never share state with each other.
type Manager struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*Session
	config   ManagerConfig
}

// NewManager creates an empty session manager
func NewManager(config ManagerConfig) *Manager {
	return &Manager{
		sessions: make(map[core.SessionID]*Session),
		config:   config,
	}
}

// Create registers a new session around f
func (m *Manager) Create(f *frame.Frame, sourceName string) *Session {
	s := New(core.NewSessionID(), f, sourceName, m.config.HistoryDepth)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	log.Printf("[SessionManager] Created session %s for %s (%d rows, %d columns)", s.ID, sourceName, f.NumRows(), f.NumCols())
	return s
}

// Get returns a live session and marks it as used
func (m *Manager) Get(id core.SessionID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	s.Touch()
	return s, nil
}

// Delete tears a session down
func (m *Manager) Delete(id core.SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expire removes sessions idle since before now-TTL and returns how many were removed
func (m *Manager) Expire(now time.Time) int {
	if m.config.TTL <= 0 {
		return 0
	}
	cutoff := now.Add(-m.config.TTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.IdleSince().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// StartJanitor expires idle sessions every interval until ctx is cancelled
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.config.TTL <= 0 {
		log.Printf("[SessionManager] Janitor disabled (interval=%s ttl=%s)", interval, m.config.TTL)
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := m.Expire(now); n > 0 {
					log.Printf("[SessionManager] Expired %d idle session(s), %d live", n, m.Len())
				}
			}
		}
	}()
}
