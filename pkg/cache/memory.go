package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Memory is an in-process Cache used in tests and in redis-less dev runs.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// now is replaceable so tests can step across TTL boundaries.
	now func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.payload, true, nil
}

func (m *Memory) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	copied := make([]byte, len(payload))
	copy(copied, payload)

	m.mu.Lock()
	m.entries[key] = memoryEntry{payload: copied, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// SetClock replaces the time source. Test hook.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}
