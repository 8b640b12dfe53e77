package storage

import (
	"encoding/json"
	"sync"

	"github.com/wanderapp/wander/internal/observability"
)

// MemoryStore implements Store with an in-process map. Used in tests and
// when no durability is wanted.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(key string) (json.RawMessage, bool) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !heal(raw) {
		m.Remove(key)
		observability.StorageSelfHealsTotal.WithLabelValues(key).Inc()
		return nil, false
	}
	return json.RawMessage(raw), true
}

func (m *MemoryStore) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Remove(key string) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
}

// Seed writes a raw value without validation. Test helper for corrupt-entry
// scenarios.
func (m *MemoryStore) Seed(key string, raw []byte) {
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
}
