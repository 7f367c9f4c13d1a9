package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/taxlens/internal/metrics"
	"github.com/hyperjump/taxlens/pkg/utils"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

const (
	DefaultIdleTimeout = 2 * time.Hour
	DefaultMaxSessions = 1000
)

// Manager owns the live sessions. Each session gets its own memory.
// Sessions idle longer than the idle timeout expire; when the limit is reached the
// least recently used session is evicted to make room.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	lastUsed map[string]time.Time

	capacity    int
	idleTimeout time.Duration
	maxSessions int
	now         func() time.Time
	logger      *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIdleTimeout sets how long an unused session lives. Non-positive values keep the default.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithMaxSessions caps the number of live sessions. Non-positive values keep the default.
func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager whose sessions keep up to capacity turns.
func NewManager(capacity int, logger *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		lastUsed:    make(map[string]time.Time),
		capacity:    capacity,
		idleTimeout: DefaultIdleTimeout,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
		logger:      utils.OrNop(logger),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := New(uuid.NewString(), m.capacity)

	m.mu.Lock()
	now := m.now()
	m.pruneLocked(now)
	for len(m.sessions) >= m.maxSessions {
		m.evictOldestLocked()
	}
	m.sessions[s.ID] = s
	m.lastUsed[s.ID] = now
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	m.logger.Debug("session created", zap.String("session", s.ID))
	return s
}

// Get returns the session with id and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := m.now()
	if now.Sub(m.lastUsed[id]) > m.idleTimeout {
		m.removeLocked(id, "expired")
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
		return nil, ErrSessionNotFound
	}
	m.lastUsed[id] = now
	return s, nil
}

// Delete ends the session with id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	m.removeLocked(id, "deleted")
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	metrics.ActiveSessions.Set(float64(n))
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(m.now())
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return len(m.sessions)
}

func (m *Manager) pruneLocked(now time.Time) {
	for id, at := range m.lastUsed {
		if now.Sub(at) > m.idleTimeout {
			m.removeLocked(id, "expired")
		}
	}
}

func (m *Manager) evictOldestLocked() {
	var oldest string
	var oldestAt time.Time
	for id, at := range m.lastUsed {
		if oldest == "" || at.Before(oldestAt) {
			oldest, oldestAt = id, at
		}
	}
	if oldest == "" {
		return
	}
	m.removeLocked(oldest, "evicted")
}

func (m *Manager) removeLocked(id, reason string) {
	if _, ok := m.sessions[id]; !ok {
		return
	}
	delete(m.sessions, id)
	delete(m.lastUsed, id)
	m.logger.Debug("session "+reason, zap.String("session", id))
}
