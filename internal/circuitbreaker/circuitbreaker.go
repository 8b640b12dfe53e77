// Package circuitbreaker guards the external collaborators (geocode,
// places, weather, iplocate). Each client owns one breaker; repeated
// failures open it, and probe calls in half-open state decide recovery.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker rejects a call outright.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker state (Closed, Open, HalfOpen).
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker protects one collaborator. Opens after FailureThreshold
// consecutive failures, allows a probe after Timeout, closes again after
// SuccessThreshold probe successes.
type Breaker struct {
	mu               sync.RWMutex
	state            State
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	service          string
	onStateChange    func(service string, from, to State)
}

// Config holds breaker parameters. Zero values fall back to defaults
// (5 failures, 2 successes, 30s timeout).
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Service          string
	OnStateChange    func(service string, from, to State)
}

// New creates a Breaker with the given config.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Breaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		service:          cfg.Service,
		onStateChange:    cfg.OnStateChange,
	}
}

// Call runs fn when the circuit allows it. When open, returns ErrOpen
// unless the timeout has elapsed (then transitions to half-open and lets
// the probe through). Context cancellation is checked before the call.
func (b *Breaker) Call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.state == StateOpen {
		if time.Since(b.lastFailureTime) < b.timeout {
			b.mu.Unlock()
			return ErrOpen
		}
		b.transitionLocked(StateHalfOpen)
		b.successCount = 0
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failureCount++
		b.lastFailureTime = time.Now()
		if b.state == StateHalfOpen || b.failureCount >= b.failureThreshold {
			b.transitionLocked(StateOpen)
			b.failureCount = 0
		}
		return err
	}

	b.successCount++
	b.failureCount = 0
	if b.state == StateHalfOpen && b.successCount >= b.successThreshold {
		b.transitionLocked(StateClosed)
		b.successCount = 0
	}
	return nil
}

// transitionLocked changes state and fires the hook. Caller holds b.mu.
func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(b.service, from, to)
	}
}

// State returns the current state (for metrics and health reporting).
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}
