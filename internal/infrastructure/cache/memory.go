package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/ports"
)

const defaultCapacity = 256

// Memory is a bounded in-process TTL cache. Entries expire lazily on read;
// once the bound is reached, expired entries go first, then the oldest.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	order   []string
	limit   int
	now     func() time.Time
}

type memoryEntry struct {
	value []byte

	// expiresAt zero means the entry never expires.
	expiresAt time.Time
}

var _ ports.Cache = (*Memory)(nil)

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Memory{
		entries: make(map[string]memoryEntry, capacity),
		limit:   capacity,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		m.remove(key)
		return nil, false, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	if _, ok := m.entries[key]; !ok {
		if len(m.entries) >= m.limit {
			m.evictOne()
		}
		m.order = append(m.order, key)
	}
	m.entries[key] = memoryEntry{value: stored, expiresAt: expires}
	return nil
}

// Len reports the number of live entries, counting expired ones not yet
// collected.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) evictOne() {
	now := m.now()
	for _, key := range m.order {
		entry := m.entries[key]
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			m.remove(key)
			return
		}
	}
	if len(m.order) > 0 {
		m.remove(m.order[0])
	}
}

func (m *Memory) remove(key string) {
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
