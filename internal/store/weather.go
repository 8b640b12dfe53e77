package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wanderapp/wander/internal/client"
	"github.com/wanderapp/wander/internal/models"
	"github.com/wanderapp/wander/internal/observability"
)

// conditionLabels maps the provider's weather codes to display labels.
// Unknown codes degrade to "Unknown", never an error.
var conditionLabels = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// ConditionLabel returns the display label for a provider weather code.
func ConditionLabel(code int) string {
	if label, ok := conditionLabels[code]; ok {
		return label
	}
	return "Unknown"
}

// WeatherFetcher is the current-weather collaborator.
type WeatherFetcher interface {
	Current(ctx context.Context, coords models.Coordinates) (client.Observation, error)
}

// WeatherStore derives the current-weather snapshot from the location
// store's coordinates. It is reactive: register CoordinatesChanged as a
// location subscriber rather than calling fetches directly. Each
// coordinate change debounces one fetch; results from a superseded change
// are dropped so the last coordinates always win, regardless of response
// arrival order.
type WeatherStore struct {
	mu       sync.Mutex
	snapshot *models.WeatherSnapshot
	loading  bool
	gen      uint64

	fetcher  WeatherFetcher
	debounce time.Duration
	logger   *zap.Logger
}

// NewWeatherStore creates the store. debounce coalesces rapid coordinate
// changes into a single fetch; zero means fetch immediately.
func NewWeatherStore(fetcher WeatherFetcher, debounce time.Duration, logger *zap.Logger) *WeatherStore {
	return &WeatherStore{fetcher: fetcher, debounce: debounce, logger: logger}
}

// Snapshot returns the current weather, if present.
func (w *WeatherStore) Snapshot() (models.WeatherSnapshot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.snapshot == nil {
		return models.WeatherSnapshot{}, false
	}
	return *w.snapshot, true
}

// Loading reports whether a fetch is pending.
func (w *WeatherStore) Loading() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loading
}

// CoordinatesChanged reacts to a location change. Empty coordinates clear
// the snapshot immediately with no network call; new coordinates schedule
// a debounced fetch tagged with a generation token.
func (w *WeatherStore) CoordinatesChanged(coords *models.Coordinates) {
	w.mu.Lock()
	w.gen++
	gen := w.gen

	if coords == nil {
		w.snapshot = nil
		w.loading = false
		w.mu.Unlock()
		return
	}

	w.loading = true
	w.mu.Unlock()

	target := *coords
	time.AfterFunc(w.debounce, func() {
		w.fetch(gen, target)
	})
}

func (w *WeatherStore) fetch(gen uint64, coords models.Coordinates) {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		observability.WeatherSupersededTotal.Inc()
		return
	}
	w.mu.Unlock()

	obs, err := w.fetcher.Current(context.Background(), coords)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		// Coordinates moved on while this fetch was in flight.
		observability.WeatherSupersededTotal.Inc()
		w.logger.Debug("weather result superseded",
			zap.Float64("latitude", coords.Latitude),
			zap.Float64("longitude", coords.Longitude))
		return
	}

	w.loading = false
	if err != nil {
		w.snapshot = nil
		w.logger.Warn("weather fetch failed", zap.Error(err))
		return
	}

	w.snapshot = &models.WeatherSnapshot{
		TemperatureC:   obs.TemperatureC,
		WindSpeed:      obs.WindSpeed,
		WindDirection:  obs.WindDirection,
		ConditionCode:  obs.ConditionCode,
		ObservedAt:     obs.ObservedAt,
		ConditionLabel: ConditionLabel(obs.ConditionCode),
	}
}
