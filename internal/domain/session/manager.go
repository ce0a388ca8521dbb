package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager owns the live sessions by id. Sessions are created here so every
// one carries the manager's configured options (measurement duration, hooks).
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     []Option
}

// NewManager creates a manager whose options are applied to every session it
// creates or restores.
func NewManager(opts ...Option) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
	}
}

// Create starts a new session in the given mode.
func (m *Manager) Create(mode Mode) (*Session, error) {
	s := New(uuid.NewString(), m.opts...)
	if err := s.Start(mode); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns the live session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Restore validates a snapshot and registers the rebuilt session, replacing
// any live session with the same id.
func (m *Manager) Restore(snap Snapshot) (*Session, error) {
	s, err := Restore(snap, m.opts...)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if old, ok := m.sessions[snap.ID]; ok {
		_ = old.Exit()
	}
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

// Remove exits and drops the session with the given id.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		_ = s.Exit()
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// PruneIdle exits and drops sessions whose last activity is older than ttl.
// Returns the number of sessions removed.
func (m *Manager) PruneIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		_ = s.Exit()
	}
	return len(stale)
}
