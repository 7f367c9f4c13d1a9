// Package memory keeps a bounded record of recent question/answer turns.
package memory

import (
	"sync"

	"github.com/hyperjump/taxlens/internal/models"
)

// DefaultCapacity is the number of turns kept before the oldest is dropped.
const DefaultCapacity = 10

// Memory is a bounded FIFO of conversation turns. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	turns    []models.Turn
}

// New creates an empty Memory. A non-positive capacity uses DefaultCapacity.
func New(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		capacity: capacity,
		turns:    make([]models.Turn, 0, capacity+1),
	}
}

// Append records a turn and evicts the oldest ones while over capacity.
func (m *Memory) Append(question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, models.Turn{Question: question, Answer: answer})
	for len(m.turns) > m.capacity {
		m.turns = m.turns[1:]
	}
}

// Recent returns up to the last n turns in insertion order.
func (m *Memory) Recent(n int) []models.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || len(m.turns) == 0 {
		return nil
	}
	if n > len(m.turns) {
		n = len(m.turns)
	}
	out := make([]models.Turn, n)
	copy(out, m.turns[len(m.turns)-n:])
	return out
}

// All returns every stored turn, oldest first.
func (m *Memory) All() []models.Turn {
	return m.Recent(m.Len())
}

// Len returns the number of stored turns.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Capacity returns the maximum number of stored turns.
func (m *Memory) Capacity() int {
	return m.capacity
}

// Clear removes every turn.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = m.turns[:0]
}
