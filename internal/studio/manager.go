package studio

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Manager keeps fitting sessions in memory.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewManager creates a manager whose sessions expire after ttl of inactivity.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create starts a new empty session.
func (m *Manager) Create() *Session {
	s := newSession(time.Now())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	log.Info().Str("sessionID", s.ID).Msg("fitting session created")
	return s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes the session with id. It reports whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// PruneIdle removes sessions inactive since before now-ttl.
func (m *Manager) PruneIdle(now time.Time) int {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	cutoff := now.Add(-m.ttl)
	pruned := 0
	for _, s := range sessions {
		if s.LastActive().Before(cutoff) {
			if m.Delete(s.ID) {
				pruned++
			}
		}
	}
	return pruned
}
