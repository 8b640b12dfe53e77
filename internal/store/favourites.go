package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wanderapp/wander/internal/observability"
	"github.com/wanderapp/wander/internal/place"
	"github.com/wanderapp/wander/internal/storage"
)

const favouritesKey = "favourites"

// FavouritesStore maintains the deduplicated bookmark set, keyed by the
// resolved place identity. Order is insertion order, kept for display only.
type FavouritesStore struct {
	mu      sync.RWMutex
	entries []place.FavouriteEntry
	store   storage.Store
	logger  *zap.Logger
}

// NewFavouritesStore loads the persisted collection. A corrupt persisted
// value is removed by the storage layer and the collection starts empty.
func NewFavouritesStore(s storage.Store, logger *zap.Logger) *FavouritesStore {
	f := &FavouritesStore{store: s, logger: logger}
	storage.Decode(s, favouritesKey, &f.entries)
	return f
}

// List returns the entries in insertion order.
func (f *FavouritesStore) List() []place.FavouriteEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]place.FavouriteEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Contains reports whether an identity-equal feature is bookmarked. Pure
// read, safe to call during rendering.
func (f *FavouritesStore) Contains(feature place.Feature) bool {
	id := place.Resolve(feature)
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.indexLocked(id) >= 0
}

// Add bookmarks feature. No-op when an entry with the same identity exists.
func (f *FavouritesStore) Add(feature place.Feature) {
	id := place.Resolve(feature)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexLocked(id) >= 0 {
		return
	}
	f.entries = append(f.entries, place.FavouriteEntry{Feature: feature, UniqueID: id})
	f.persistLocked()
	observability.FavouriteMutationsTotal.WithLabelValues("add").Inc()
}

// Remove drops the entry matching feature's identity. No-op when absent.
func (f *FavouritesStore) Remove(feature place.Feature) {
	id := place.Resolve(feature)
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return
	}
	f.entries = append(f.entries[:i], f.entries[i+1:]...)
	f.persistLocked()
	observability.FavouriteMutationsTotal.WithLabelValues("remove").Inc()
}

// Toggle removes feature when bookmarked, adds it otherwise. Exactly one of
// the two effects per call: the existence check and the mutation happen
// under one lock. Returns the new membership state.
func (f *FavouritesStore) Toggle(feature place.Feature) bool {
	id := place.Resolve(feature)
	f.mu.Lock()
	defer f.mu.Unlock()

	if i := f.indexLocked(id); i >= 0 {
		f.entries = append(f.entries[:i], f.entries[i+1:]...)
		f.persistLocked()
		observability.FavouriteMutationsTotal.WithLabelValues("remove").Inc()
		return false
	}
	f.entries = append(f.entries, place.FavouriteEntry{Feature: feature, UniqueID: id})
	f.persistLocked()
	observability.FavouriteMutationsTotal.WithLabelValues("add").Inc()
	return true
}

func (f *FavouritesStore) indexLocked(id place.ID) int {
	for i, e := range f.entries {
		if e.UniqueID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the whole collection. Caller holds f.mu.
func (f *FavouritesStore) persistLocked() {
	entries := f.entries
	if entries == nil {
		entries = []place.FavouriteEntry{}
	}
	if err := f.store.Set(favouritesKey, entries); err != nil {
		f.logger.Error("persist favourites", zap.Error(err))
	}
}
