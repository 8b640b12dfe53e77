// Package store contains the application state containers: auth, settings,
// location, weather and favourites. Each store owns one slice of state plus
// its persistence key, mutates it only through its own operations, and
// persists synchronously inside every mutator so storage never lags state.
package store

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wanderapp/wander/internal/storage"
)

const settingsKey = "userSettings"

// Settings are the user display and privacy preferences, persisted as one
// unit on any field change.
type Settings struct {
	DarkMode          bool   `json:"darkMode"`
	TempUnit          string `json:"tempUnit"`
	LocationAccess    bool   `json:"locationAccess"`
	PushNotifications bool   `json:"pushNotifications"`
	AutoSuggestions   bool   `json:"autoSuggestions"`
}

// SettingsStore holds the preferences. When nothing is persisted yet, the
// dark-mode default follows the local clock (night window 18:00 to 06:00);
// a persisted value always wins over the time-based default.
type SettingsStore struct {
	mu       sync.RWMutex
	settings Settings
	store    storage.Store
	logger   *zap.Logger
	now      func() time.Time
}

// NewSettingsStore loads persisted settings or initializes defaults.
// now is the clock used for the dark-mode default; pass time.Now outside
// tests.
func NewSettingsStore(s storage.Store, logger *zap.Logger, now func() time.Time) *SettingsStore {
	if now == nil {
		now = time.Now
	}
	st := &SettingsStore{store: s, logger: logger, now: now}

	st.mu.Lock()
	defer st.mu.Unlock()
	// Defaults first: absent fields in a persisted document keep them.
	st.settings = Settings{
		TempUnit:          "C",
		PushNotifications: true,
		AutoSuggestions:   true,
	}
	if !storage.Decode(s, settingsKey, &st.settings) {
		hour := now().Hour()
		st.settings.DarkMode = hour >= 18 || hour < 6
		st.persistLocked()
	}
	return st
}

// Snapshot returns a copy of the current settings.
func (st *SettingsStore) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.settings
}

func (st *SettingsStore) SetDarkMode(on bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.settings.DarkMode = on
	st.persistLocked()
}

// SetTempUnit accepts "C" or "F".
func (st *SettingsStore) SetTempUnit(unit string) error {
	if unit != "C" && unit != "F" {
		return fmt.Errorf("temp unit must be C or F, got %q", unit)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.settings.TempUnit = unit
	st.persistLocked()
	return nil
}

func (st *SettingsStore) SetLocationAccess(on bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.settings.LocationAccess = on
	st.persistLocked()
}

func (st *SettingsStore) SetPushNotifications(on bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.settings.PushNotifications = on
	st.persistLocked()
}

func (st *SettingsStore) SetAutoSuggestions(on bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.settings.AutoSuggestions = on
	st.persistLocked()
}

// ConvertTemp converts a Celsius reading to the display unit, rounded to
// the nearest whole degree.
func (st *SettingsStore) ConvertTemp(celsius float64) int {
	st.mu.RLock()
	unit := st.settings.TempUnit
	st.mu.RUnlock()

	if unit == "F" {
		return int(math.Round(celsius*9/5 + 32))
	}
	return int(math.Round(celsius))
}

// persistLocked writes the whole settings object. Caller holds st.mu.
func (st *SettingsStore) persistLocked() {
	if err := st.store.Set(settingsKey, st.settings); err != nil {
		st.logger.Error("persist settings", zap.Error(err))
	}
}
