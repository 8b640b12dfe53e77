package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP surface request rate. Watch for: sudden drops (app down) or spikes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP surface latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight on the surface.
	HTTPRequestsInFlight prometheus.Gauge

	// Outbound calls to the external collaborators (geocode, places, weather,
	// iplocate), labelled by service and outcome.
	UpstreamCallsTotal *prometheus.CounterVec

	// External collaborator latency. Watch for: p95 > 2s (upstream degradation).
	UpstreamCallDuration *prometheus.HistogramVec

	// Retry attempts against collaborators. High retries = unstable upstream.
	UpstreamRetriesTotal *prometheus.CounterVec

	// Favourites mutations by operation (add/remove).
	FavouriteMutationsTotal *prometheus.CounterVec

	// Weather fetch results discarded because a newer coordinate change
	// superseded them.
	WeatherSupersededTotal prometheus.Counter

	// Corrupt persisted entries removed by the storage adapter, by key.
	StorageSelfHealsTotal *prometheus.CounterVec

	// Rate limit denials on the HTTP surface.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per collaborator: 0=closed, 1=open, 2=half-open.
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per collaborator.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of calls to external collaborators",
		},
		[]string{"service", "status"},
	)
	UpstreamCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamCallDurationSeconds",
			Help:    "External collaborator latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "status"},
	)
	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamRetriesTotal",
			Help: "Total number of retry attempts against external collaborators",
		},
		[]string{"service"},
	)
	FavouriteMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favouriteMutationsTotal",
			Help: "Total favourites mutations by operation",
		},
		[]string{"op"},
	)
	WeatherSupersededTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherSupersededTotal",
			Help: "Weather fetch results dropped because coordinates changed before arrival",
		},
	)
	StorageSelfHealsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storageSelfHealsTotal",
			Help: "Corrupt persisted entries removed by the storage adapter",
		},
		[]string{"key"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Requests denied by the rate limiter",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per collaborator: 0=closed, 1=open, 2=half_open",
		},
		[]string{"service"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions per collaborator",
		},
		[]string{"service", "from", "to"},
	)

	registry.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPRequestsInFlight,
		UpstreamCallsTotal,
		UpstreamCallDuration,
		UpstreamRetriesTotal,
		FavouriteMutationsTotal,
		WeatherSupersededTotal,
		StorageSelfHealsTotal,
		RateLimitDeniedTotal,
		CircuitBreakerState,
		CircuitBreakerTransitionsTotal,
	)
}

// MetricsHandler returns the /metrics endpoint handler bound to the private registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordBreakerTransition updates breaker metrics on a state change.
func RecordBreakerTransition(service, from, to string, stateValue int) {
	CircuitBreakerTransitionsTotal.WithLabelValues(service, from, to).Inc()
	CircuitBreakerState.WithLabelValues(service).Set(float64(stateValue))
}
