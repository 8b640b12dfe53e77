// Package client implements the four external HTTP collaborators: reverse
// geocode, nearby places, current weather, and IP-based positioning. All
// share the same plumbing: per-call timeout, retry with exponential backoff
// and jitter, an optional circuit breaker, correlation-ID propagation and
// call metrics.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/wanderapp/wander/internal/circuitbreaker"
	"github.com/wanderapp/wander/internal/observability"
)

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
)

// caller is the shared transport every collaborator client embeds.
type caller struct {
	service        string
	timeout        time.Duration
	client         *http.Client
	breaker        *circuitbreaker.Breaker
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// Retry holds retry parameters for a collaborator client.
type Retry struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func newCaller(service string, timeout time.Duration, retry Retry) caller {
	if retry.Attempts <= 0 {
		retry.Attempts = 3
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = 100 * time.Millisecond
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = 2 * time.Second
	}
	return caller{
		service:        service,
		timeout:        timeout,
		client:         &http.Client{Timeout: timeout},
		retryAttempts:  retry.Attempts,
		retryBaseDelay: retry.BaseDelay,
		retryMaxDelay:  retry.MaxDelay,
	}
}

// SetBreaker attaches a circuit breaker; calls are routed through it from
// then on. Intended to be called once during wiring, before first use.
func (c *caller) SetBreaker(b *circuitbreaker.Breaker) {
	c.breaker = b
}

// getJSON performs a GET against rawURL with retries and decodes the body
// into out. Non-retryable errors return immediately.
func (c *caller) getJSON(ctx context.Context, rawURL string, out any) error {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(c.service).Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		err := c.callOnce(ctx, rawURL, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return fmt.Errorf("%s: %w", c.service, err)
		}

		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *caller) callOnce(ctx context.Context, rawURL string, out any) error {
	if c.breaker != nil {
		return c.breaker.Call(ctx, func() error {
			return c.doRequest(ctx, rawURL, out)
		})
	}
	return c.doRequest(ctx, rawURL, out)
}

func (c *caller) doRequest(ctx context.Context, rawURL string, out any) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(c.service, "error").Inc()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(c.service, "error").Inc()
		observability.UpstreamCallDuration.WithLabelValues(c.service, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(c.service, status).Inc()
	observability.UpstreamCallDuration.WithLabelValues(c.service, status).Observe(duration)

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *caller) backoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func classifyStatus(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, code)
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	}
	return nil
}

// isRetryable classifies transient failures. Transport timeouts surface as
// net.Error with Timeout() true (context.DeadlineExceeded included); a
// cancelled context is the caller giving up and is not retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}
