// Package memory keeps a short, bounded history of what a policy has seen.
package memory

import "sync"

// Memory is a FIFO of entries that drops the oldest entry once capacity is
// exceeded.
type Memory struct {
	entries  []string
	capacity int
	mu       sync.RWMutex
}

func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{
		entries:  make([]string, 0, capacity),
		capacity: capacity,
	}
}

// GetAllMessages returns a copy of every stored entry, oldest first.
func (m *Memory) GetAllMessages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]string, len(m.entries))
	copy(entries, m.entries)
	return entries
}

// Last returns up to n of the most recent entries, oldest first.
func (m *Memory) Last(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n > len(m.entries) {
		n = len(m.entries)
	}
	if n <= 0 {
		return nil
	}
	entries := make([]string, n)
	copy(entries, m.entries[len(m.entries)-n:])
	return entries
}

func (m *Memory) Store(entry string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)
	if len(m.entries) > m.capacity {
		m.entries = m.entries[len(m.entries)-m.capacity:]
	}
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = m.entries[:0]
}
