package testutil

import (
	"sync"
	"time"
)

// MockCache implements cache.Store for testing without background goroutines.
type MockCache[V any] struct {
	entries map[string]V
	sets    int
	mu      sync.RWMutex
}

// NewMockCache creates a new MockCache.
func NewMockCache[V any]() *MockCache[V] {
	return &MockCache[V]{entries: make(map[string]V)}
}

// Get retrieves a value from the cache.
func (m *MockCache[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Set stores a value in the cache.
func (m *MockCache[V]) Set(key string, value V) {
	m.SetWithTTL(key, value, 0)
}

// SetWithTTL stores a value in the cache; the TTL is ignored.
func (m *MockCache[V]) SetWithTTL(key string, value V, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	m.sets++
}

// Sets returns how many writes the cache received.
func (m *MockCache[V]) Sets() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sets
}
