// Package storage is the durable key-value layer every store persists
// through. Each store owns a disjoint set of keys; nothing else in the
// application touches the backend directly, so backends are swappable.
package storage

import (
	"encoding/json"

	"github.com/wanderapp/wander/internal/observability"
)

// Store is the persistence contract. Get reports absent for missing keys.
// A stored value that is no longer valid JSON is removed on read and
// reported absent (self-healing), never surfaced as an error.
type Store interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, value any) error
	Remove(key string)
}

// Decode reads key from s into out. Returns false when the key is absent.
// A value that fails to decode into out is treated like corrupt storage:
// the entry is removed and the key reported absent.
func Decode(s Store, key string, out any) bool {
	raw, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.Remove(key)
		observability.StorageSelfHealsTotal.WithLabelValues(key).Inc()
		return false
	}
	return true
}

// heal validates a raw stored value. Callers remove the entry when it
// returns false.
func heal(raw []byte) bool {
	return json.Valid(raw)
}
