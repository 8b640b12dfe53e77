package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wanderapp/wander/internal/models"
	"github.com/wanderapp/wander/internal/storage"
)

const currentUserKey = "currentUser"

// AuthStore holds the current session identity. It is the only writer of
// the currentUser storage key; the user directory itself belongs to the
// credentials package. A session is active exactly when an identity is set.
type AuthStore struct {
	mu       sync.RWMutex
	identity *models.UserIdentity
	store    storage.Store
	logger   *zap.Logger
}

// NewAuthStore creates an inactive auth store. Call RestoreSession to pick
// up a persisted session.
func NewAuthStore(s storage.Store, logger *zap.Logger) *AuthStore {
	return &AuthStore{store: s, logger: logger}
}

// RestoreSession loads the persisted identity, if any. Corrupt persisted
// data is removed by the storage layer and leaves the session inactive;
// restore never fails outward.
func (a *AuthStore) RestoreSession() {
	var identity models.UserIdentity
	if !storage.Decode(a.store, currentUserKey, &identity) {
		return
	}
	a.mu.Lock()
	a.identity = &identity
	a.mu.Unlock()
	a.logger.Info("session restored", zap.String("email", identity.Email))
}

// Active reports whether a session is in place.
func (a *AuthStore) Active() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.identity != nil
}

// Current returns the session identity, if active.
func (a *AuthStore) Current() (models.UserIdentity, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.identity == nil {
		return models.UserIdentity{}, false
	}
	return *a.identity, true
}

// Login activates a session for identity and persists it. Idempotent.
func (a *AuthStore) Login(identity models.UserIdentity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.identity = &identity
	if err := a.store.Set(currentUserKey, identity); err != nil {
		a.logger.Error("persist session", zap.Error(err))
	}
}

// Logout clears the session and removes the persisted entry, leaving no
// trace of the previous identity in storage.
func (a *AuthStore) Logout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.identity = nil
	a.store.Remove(currentUserKey)
}

// ProfileUpdate is a partial identity change. Nil fields are left as-is.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

// UpdateUser shallow-merges update onto the current identity and replaces
// the in-memory and persisted copies under one lock, so no reader observes
// a half-merged identity. A call with no active session is a no-op: an
// identity is never synthesized from a partial update.
func (a *AuthStore) UpdateUser(update ProfileUpdate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.identity == nil {
		a.logger.Warn("updateUser called with no active session")
		return
	}

	merged := *a.identity
	if update.Name != nil {
		merged.Name = *update.Name
	}
	if update.Email != nil {
		merged.Email = *update.Email
	}

	a.identity = &merged
	if err := a.store.Set(currentUserKey, merged); err != nil {
		a.logger.Error("persist session update", zap.Error(err))
	}
}
