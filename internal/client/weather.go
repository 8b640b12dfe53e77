package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/wanderapp/wander/internal/models"
)

// WeatherClient fetches the current observation from the weather
// collaborator (Open-Meteo-shaped response).
type WeatherClient struct {
	caller
	apiURL string
}

// NewWeatherClient creates a weather client against apiURL.
func NewWeatherClient(apiURL string, timeout time.Duration, retry Retry) *WeatherClient {
	return &WeatherClient{
		caller: newCaller("weather", timeout, retry),
		apiURL: apiURL,
	}
}

// Observation is the raw current-weather reading. The weather store maps
// the condition code to its label; the client only transports values.
type Observation struct {
	TemperatureC  float64
	WindSpeed     float64
	WindDirection float64
	ConditionCode int
	ObservedAt    time.Time
}

type weatherResponse struct {
	CurrentWeather *struct {
		Temperature   float64 `json:"temperature"`
		WindSpeed     float64 `json:"windspeed"`
		WindDirection float64 `json:"winddirection"`
		WeatherCode   int     `json:"weathercode"`
		Time          string  `json:"time"`
	} `json:"current_weather"`
}

// Current returns the current observation for coords. A response without a
// current_weather block is an upstream failure.
func (c *WeatherClient) Current(ctx context.Context, coords models.Coordinates) (Observation, error) {
	base, err := url.Parse(c.apiURL)
	if err != nil {
		return Observation{}, fmt.Errorf("invalid weather URL: %w", err)
	}
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	params.Set("current_weather", "true")
	params.Set("timezone", "auto")
	base.RawQuery = params.Encode()

	var resp weatherResponse
	if err := c.getJSON(ctx, base.String(), &resp); err != nil {
		return Observation{}, err
	}
	if resp.CurrentWeather == nil {
		return Observation{}, fmt.Errorf("%w: response has no current_weather", ErrUpstreamFailure)
	}

	cw := resp.CurrentWeather
	return Observation{
		TemperatureC:  cw.Temperature,
		WindSpeed:     cw.WindSpeed,
		WindDirection: cw.WindDirection,
		ConditionCode: cw.WeatherCode,
		ObservedAt:    parseObservationTime(cw.Time),
	}, nil
}

// parseObservationTime handles the provider's minute-precision local
// timestamps as well as full RFC3339; unparseable values degrade to now.
func parseObservationTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}
