package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wanderapp/wander/internal/circuitbreaker"
	"github.com/wanderapp/wander/internal/models"
)

var testCoords = models.Coordinates{Latitude: 52.52, Longitude: 13.405}

func testRetry() Retry {
	return Retry{Attempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestGeocodeClient_ReverseGeocode(t *testing.T) {
	tests := []struct {
		name     string
		response map[string]any
		wantCity string
	}{
		{
			name:     "city present",
			response: map[string]any{"city": "Berlin", "locality": "Mitte", "countryName": "Germany"},
			wantCity: "Berlin",
		},
		{
			name:     "locality fallback",
			response: map[string]any{"city": "", "locality": "Mitte", "countryName": "Germany"},
			wantCity: "Mitte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("latitude") != "52.52" || q.Get("longitude") != "13.405" {
					t.Errorf("unexpected query: %s", r.URL.RawQuery)
				}
				if q.Get("localityLanguage") != "en" {
					t.Errorf("expected localityLanguage=en, got %q", q.Get("localityLanguage"))
				}
				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			c := NewGeocodeClient(server.URL, time.Second, testRetry())
			got, err := c.ReverseGeocode(context.Background(), testCoords)
			if err != nil {
				t.Fatalf("ReverseGeocode() error = %v", err)
			}
			if got.City != tt.wantCity {
				t.Errorf("City = %q, want %q", got.City, tt.wantCity)
			}
			if got.Country != "Germany" {
				t.Errorf("Country = %q, want Germany", got.Country)
			}
		})
	}
}

func TestPlacesClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewPlacesClient("", "https://places.test", 3000, 0, "", time.Second, testRetry()); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("NewPlacesClient() error = %v, want ErrInvalidAPIKey", err)
	}
}

func TestPlacesClient_Nearby(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apiKey") != "test-key" {
			t.Errorf("apiKey = %q, want test-key", q.Get("apiKey"))
		}
		if q.Get("filter") != "circle:13.405,52.52,3000" {
			t.Errorf("filter = %q", q.Get("filter"))
		}
		if q.Get("categories") == "" {
			t.Error("expected a categories filter")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{
				{"properties": map[string]any{"name": "Cafe Luna", "place_id": "p1"}},
				{"properties": map[string]any{"name": "Stadtpark", "place_id": "p2"}},
			},
		})
	}))
	defer server.Close()

	c, err := NewPlacesClient("test-key", server.URL, 3000, 0, "", time.Second, testRetry())
	if err != nil {
		t.Fatalf("NewPlacesClient() error = %v", err)
	}

	features, err := c.Nearby(context.Background(), testCoords)
	if err != nil {
		t.Fatalf("Nearby() error = %v", err)
	}
	if len(features) != 2 {
		t.Fatalf("len(features) = %d, want 2", len(features))
	}
	if features[0].Properties.Name != "Cafe Luna" {
		t.Errorf("first feature name = %q", features[0].Properties.Name)
	}
}

func TestPlacesClient_Nearby_EmptyFeatures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"features": []any{}})
	}))
	defer server.Close()

	c, err := NewPlacesClient("test-key", server.URL, 0, 0, "", time.Second, testRetry())
	if err != nil {
		t.Fatalf("NewPlacesClient() error = %v", err)
	}
	features, err := c.Nearby(context.Background(), testCoords)
	if err != nil {
		t.Fatalf("Nearby() error = %v", err)
	}
	if len(features) != 0 {
		t.Errorf("len(features) = %d, want 0", len(features))
	}
}

func TestWeatherClient_Current(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("current_weather") != "true" {
			t.Error("expected current_weather=true")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"current_weather": map[string]any{
				"temperature":   18.3,
				"windspeed":     11.2,
				"winddirection": 250.0,
				"weathercode":   61,
				"time":          "2024-06-01T14:00",
			},
		})
	}))
	defer server.Close()

	c := NewWeatherClient(server.URL, time.Second, testRetry())
	obs, err := c.Current(context.Background(), testCoords)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if obs.TemperatureC != 18.3 {
		t.Errorf("TemperatureC = %v, want 18.3", obs.TemperatureC)
	}
	if obs.ConditionCode != 61 {
		t.Errorf("ConditionCode = %d, want 61", obs.ConditionCode)
	}
	if obs.ObservedAt.IsZero() {
		t.Error("ObservedAt should be parsed")
	}
}

func TestWeatherClient_Current_MissingBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"hourly": map[string]any{}})
	}))
	defer server.Close()

	c := NewWeatherClient(server.URL, time.Second, testRetry())
	if _, err := c.Current(context.Background(), testCoords); !errors.Is(err, ErrUpstreamFailure) {
		t.Errorf("Current() error = %v, want ErrUpstreamFailure", err)
	}
}

func TestIPLocateClient_Locate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"latitude": 48.2, "longitude": 16.37})
	}))
	defer server.Close()

	c := NewIPLocateClient(server.URL, time.Second, testRetry())
	coords, err := c.Locate(context.Background())
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if coords.Latitude != 48.2 || coords.Longitude != 16.37 {
		t.Errorf("Locate() = %+v", coords)
	}
}

func TestIPLocateClient_Locate_NoCoordinates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer server.Close()

	c := NewIPLocateClient(server.URL, time.Second, testRetry())
	if _, err := c.Locate(context.Background()); !errors.Is(err, ErrUpstreamFailure) {
		t.Errorf("Locate() error = %v, want ErrUpstreamFailure", err)
	}
}

func TestCaller_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"latitude": 1.0, "longitude": 2.0})
	}))
	defer server.Close()

	c := NewIPLocateClient(server.URL, time.Second, testRetry())
	if _, err := c.Locate(context.Background()); err != nil {
		t.Fatalf("Locate() error = %v, want success after retry", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestCaller_NoRetryOnInvalidKey(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c, err := NewPlacesClient("bad-key", server.URL, 0, 0, "", time.Second, testRetry())
	if err != nil {
		t.Fatalf("NewPlacesClient() error = %v", err)
	}
	if _, err := c.Nearby(context.Background(), testCoords); !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("Nearby() error = %v, want ErrInvalidAPIKey", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on auth failure)", calls.Load())
	}
}

// timeoutError mimics the transport's net.Error timeout values.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return false }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limited", err: fmt.Errorf("%w: HTTP 429", ErrRateLimited), want: true},
		{name: "upstream failure", err: fmt.Errorf("%w: HTTP 503", ErrUpstreamFailure), want: true},
		{name: "invalid key", err: fmt.Errorf("%w: HTTP 401", ErrInvalidAPIKey), want: false},
		{name: "transport timeout", err: timeoutError{}, want: true},
		{name: "wrapped transport timeout", err: fmt.Errorf("call weather: %w", timeoutError{}), want: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "caller cancelled", err: fmt.Errorf("call weather: %w", context.Canceled), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCaller_BreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewIPLocateClient(server.URL, time.Second, Retry{Attempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	c.SetBreaker(circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 1, Timeout: time.Minute, Service: "iplocate"}))

	if _, err := c.Locate(context.Background()); err == nil {
		t.Fatal("expected failure from upstream")
	}
	before := calls.Load()
	if _, err := c.Locate(context.Background()); !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Fatalf("Locate() error = %v, want ErrOpen", err)
	}
	if calls.Load() != before {
		t.Error("open breaker should not reach the upstream")
	}
}

func TestCaller_CorrelationIDForwarded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Correlation-ID"); got != "corr-123" {
			t.Errorf("X-Correlation-ID = %q, want corr-123", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"latitude": 1.0, "longitude": 2.0})
	}))
	defer server.Close()

	ctx := context.WithValue(context.Background(), "correlation_id", "corr-123")
	c := NewIPLocateClient(server.URL, time.Second, testRetry())
	if _, err := c.Locate(ctx); err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
}
