// Package session holds per-user conversation state: memory, focus organization, and transcript.
package session

import (
	"sync"
	"time"

	"github.com/hyperjump/taxlens/internal/memory"
	"github.com/hyperjump/taxlens/internal/models"
)

// TimestampLayout renders transcript times as HH:MM.
const TimestampLayout = "15:04"

// Exchange is one transcript entry, kept for display even when the answer was an error.
type Exchange struct {
	Timestamp string            `json:"timestamp"`
	Question  string            `json:"question"`
	Answer    string            `json:"answer"`
	Class     models.QueryClass `json:"class"`
	Failed    bool              `json:"failed,omitempty"`
}

// Session is one analyst's conversation. Questions within a session run one at a time.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Memory    *memory.Memory

	// run serializes analyzer invocations for this session.
	run sync.Mutex

	mu         sync.RWMutex
	focus      string
	focusName  string
	transcript []Exchange
}

// New creates a session with an empty memory of the given capacity.
func New(id string, capacity int) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		Memory:    memory.New(capacity),
	}
}

// Lock blocks until no other question is running in this session.
func (s *Session) Lock() { s.run.Lock() }

// Unlock releases the question lock.
func (s *Session) Unlock() { s.run.Unlock() }

// Focus returns the selected EIN, empty for the general context.
func (s *Session) Focus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focus
}

// FocusName returns the selected organization's business name.
func (s *Session) FocusName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focusName
}

// SetFocus selects an organization. An empty ein clears the selection.
func (s *Session) SetFocus(ein, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = ein
	s.focusName = name
	if ein == "" {
		s.focusName = ""
	}
}

// Record appends an exchange to the display transcript.
func (s *Session) Record(at time.Time, answer *models.Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, Exchange{
		Timestamp: at.Format(TimestampLayout),
		Question:  answer.Question,
		Answer:    answer.Text,
		Class:     answer.Class,
		Failed:    answer.Failed,
	})
}

// Transcript returns every exchange, newest first.
func (s *Session) Transcript() []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Exchange, len(s.transcript))
	for i, e := range s.transcript {
		out[len(s.transcript)-1-i] = e
	}
	return out
}

// Clear empties the conversation memory and the transcript. The focus is kept.
// It waits for a running question so the in-flight turn is cleared too.
func (s *Session) Clear() {
	s.run.Lock()
	defer s.run.Unlock()
	s.Memory.Clear()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
}
