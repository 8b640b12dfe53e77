package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/wanderapp/wander/internal/models"
	"github.com/wanderapp/wander/internal/place"
	"github.com/wanderapp/wander/internal/storage"
)

const promptDismissedKey = "locationPromptDismissed"

// Position acquisition failures. Sources backed by a real device sensor
// can return any of these; the IP-based source only produces timeouts and
// generic network failures.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrPositionTimeout     = errors.New("position request timed out")
)

// PositionSource produces the device position. The IP-based collaborator
// is the canonical implementation.
type PositionSource interface {
	Locate(ctx context.Context) (models.Coordinates, error)
}

// Geocoder resolves coordinates to an address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, coords models.Coordinates) (models.Address, error)
}

// PlacesFinder lists points of interest around coordinates.
type PlacesFinder interface {
	Nearby(ctx context.Context, coords models.Coordinates) ([]place.Feature, error)
}

// LocationState is a read snapshot of the store.
type LocationState struct {
	Coordinates *models.Coordinates
	Address     *models.Address
	Places      []place.Feature
	Prompt      bool
	Loading     bool
	LastError   string
}

// LocationStore is the only producer of coordinates. Acquire drives one
// position lookup and then two independent fetches (address, places);
// weather reacts through coordinate subscriptions. Overlapping Acquire
// calls are settled last-write-wins via a generation counter, since the
// position call offers no cancellation.
type LocationStore struct {
	mu        sync.Mutex
	coords    *models.Coordinates
	address   *models.Address
	places    []place.Feature
	prompt    bool
	loading   bool
	lastError string
	gen       uint64

	position PositionSource
	geocoder Geocoder
	finder   PlacesFinder
	settings *SettingsStore
	store    storage.Store
	logger   *zap.Logger

	subsMu sync.Mutex
	subs   []func(*models.Coordinates)
}

// NewLocationStore wires the store. settings may be nil; when present, a
// successful acquisition turns the locationAccess preference on so the two
// stay in sync.
func NewLocationStore(position PositionSource, geocoder Geocoder, finder PlacesFinder, settings *SettingsStore, s storage.Store, logger *zap.Logger) *LocationStore {
	l := &LocationStore{
		position: position,
		geocoder: geocoder,
		finder:   finder,
		settings: settings,
		store:    s,
		logger:   logger,
		prompt:   true,
	}

	var dismissed bool
	if storage.Decode(s, promptDismissedKey, &dismissed) && dismissed {
		l.prompt = false
	}
	return l
}

// Subscribe registers fn to run on every coordinate change, including
// clears (nil coordinates). Callbacks run on the mutating goroutine with
// the store lock held, in registration order; they must return promptly
// and must not call back into the store.
func (l *LocationStore) Subscribe(fn func(*models.Coordinates)) {
	l.subsMu.Lock()
	l.subs = append(l.subs, fn)
	l.subsMu.Unlock()
}

// State returns a read snapshot.
func (l *LocationStore) State() LocationState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := LocationState{
		Prompt:    l.prompt,
		Loading:   l.loading,
		LastError: l.lastError,
	}
	if l.coords != nil {
		c := *l.coords
		state.Coordinates = &c
	}
	if l.address != nil {
		a := *l.address
		state.Address = &a
	}
	if l.places != nil {
		state.Places = make([]place.Feature, len(l.places))
		copy(state.Places, l.places)
	}
	return state
}

// Acquire requests the current position. On success it stores the
// coordinates, hides the prompt and launches the address and places
// fetches; the two are independent, and loading clears when the places
// fetch settles regardless of the geocode outcome. On failure it records a
// cause-specific message and leaves previously acquired state untouched.
//
// Acquire returns once the position is settled; the dependent fetches
// complete in the background.
func (l *LocationStore) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.loading = true
	l.lastError = ""
	l.mu.Unlock()

	coords, err := l.position.Locate(ctx)
	if err != nil {
		msg := positionErrorMessage(err)
		l.mu.Lock()
		if gen == l.gen {
			l.loading = false
			l.lastError = msg
		}
		l.mu.Unlock()
		l.logger.Warn("position acquisition failed", zap.Error(err))
		return fmt.Errorf("acquire position: %w", err)
	}

	l.mu.Lock()
	if gen != l.gen {
		// A later Acquire superseded this one; drop the result.
		l.mu.Unlock()
		return nil
	}
	c := coords
	l.coords = &c
	l.prompt = false
	if l.settings != nil {
		l.settings.SetLocationAccess(true)
	}
	// Notify while still holding the lock so observers see coordinate
	// changes in generation order; a superseded acquisition can otherwise
	// deliver its stale coordinates after a newer one has already notified.
	l.notifyLocked(&coords)
	l.mu.Unlock()

	// The request context may end with the caller; keep its values
	// (correlation id) but not its cancellation.
	bg := context.WithoutCancel(ctx)
	go l.fetchAddress(bg, gen, coords)
	go l.fetchPlaces(bg, gen, coords)
	return nil
}

func (l *LocationStore) fetchAddress(ctx context.Context, gen uint64, coords models.Coordinates) {
	addr, err := l.geocoder.ReverseGeocode(ctx, coords)
	if err != nil {
		// Stale-but-present beats clearing: the previous address stands.
		l.logger.Warn("reverse geocode failed", zap.Error(err))
		return
	}
	l.mu.Lock()
	if gen == l.gen {
		l.address = &addr
	}
	l.mu.Unlock()
}

func (l *LocationStore) fetchPlaces(ctx context.Context, gen uint64, coords models.Coordinates) {
	feats, err := l.finder.Nearby(ctx, coords)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	// Loading tracks the places fetch only; the geocode is fire-and-forget.
	l.loading = false
	if err != nil {
		l.logger.Warn("places fetch failed", zap.Error(err))
		return
	}
	if feats == nil {
		feats = []place.Feature{}
	}
	l.places = feats
}

// DismissPrompt hides the prompt and records the dismissal durably so it
// does not reappear on the next load.
func (l *LocationStore) DismissPrompt() {
	l.mu.Lock()
	l.prompt = false
	l.mu.Unlock()
	if err := l.store.Set(promptDismissedKey, true); err != nil {
		l.logger.Error("persist prompt dismissal", zap.Error(err))
	}
}

// Clear resets coordinates, address and places and re-arms the prompt.
// Used when the user revokes location access. Subscribers observe the
// empty coordinates immediately.
func (l *LocationStore) Clear() {
	l.mu.Lock()
	l.gen++
	l.coords = nil
	l.address = nil
	l.places = nil
	l.loading = false
	l.lastError = ""
	l.prompt = true
	l.notifyLocked(nil)
	l.mu.Unlock()

	l.store.Remove(promptDismissedKey)
}

// notifyLocked delivers a coordinate change to subscribers. Caller holds
// l.mu, which serializes deliveries in generation order; callbacks must
// not call back into the store.
func (l *LocationStore) notifyLocked(coords *models.Coordinates) {
	l.subsMu.Lock()
	subs := make([]func(*models.Coordinates), len(l.subs))
	copy(subs, l.subs)
	l.subsMu.Unlock()
	for _, fn := range subs {
		fn(coords)
	}
}

// positionErrorMessage maps an acquisition failure to the user-facing
// remediation message. context.DeadlineExceeded and the transport's
// timeout errors both satisfy net.Error with Timeout() true, so no string
// matching is needed.
func positionErrorMessage(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Location access denied. Please enable location permissions in your settings."
	case errors.Is(err, ErrPositionUnavailable):
		return "Location unavailable. Please check your device settings."
	case errors.Is(err, ErrPositionTimeout), errors.As(err, &netErr) && netErr.Timeout():
		return "Location request timed out. Please try again."
	default:
		return "Could not get your location. Please check your network connection."
	}
}
