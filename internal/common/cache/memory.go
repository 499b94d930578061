// internal/common/cache/memory.go
package cache

import (
	"context"
	"sync"
	"time"

	"capacity-engine/internal/common/clock"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process cache for single-instance deployments.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   clock.Clock
}

func NewMemory(clk clock.Clock) *MemoryCache {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		clock:   clk,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !m.clock.Now().Before(e.expiresAt) {
		m.mu.Lock()
		// re-check, a writer may have refreshed the key
		if cur, ok := m.entries[key]; ok && !m.clock.Now().Before(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	buf := make([]byte, len(value))
	copy(buf, value)

	m.mu.Lock()
	m.entries[key] = memoryEntry{value: buf, expiresAt: m.clock.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// size returns the number of stored entries, expired ones included.
func (m *MemoryCache) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
