package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream down")

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, Timeout: time.Minute, Service: "weather"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Call(ctx, func() error { return errUpstream }); !errors.Is(err, errUpstream) {
			t.Fatalf("Call() error = %v, want %v", err, errUpstream)
		}
	}

	if got := b.State(); got != StateOpen {
		t.Fatalf("State() = %v, want open", got)
	}
	if err := b.Call(ctx, func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("Call() on open breaker error = %v, want ErrOpen", err)
	}
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Millisecond, Service: "places"})
	ctx := context.Background()

	_ = b.Call(ctx, func() error { return errUpstream })
	if b.State() != StateOpen {
		t.Fatal("breaker should be open after threshold failures")
	}

	time.Sleep(2 * time.Millisecond)

	// First probe moves to half-open; two successes close it.
	for i := 0; i < 2; i++ {
		if err := b.Call(ctx, func() error { return nil }); err != nil {
			t.Fatalf("probe %d error = %v", i, err)
		}
	}
	if got := b.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed after probe successes", got)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Timeout: time.Millisecond})
	ctx := context.Background()

	_ = b.Call(ctx, func() error { return errUpstream })
	time.Sleep(2 * time.Millisecond)

	_ = b.Call(ctx, func() error { return errUpstream })
	if got := b.State(); got != StateOpen {
		t.Errorf("State() = %v, want open after half-open failure", got)
	}
}

func TestBreaker_StateChangeHook(t *testing.T) {
	type transition struct{ from, to State }
	var seen []transition
	b := New(Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Millisecond,
		Service:          "geocode",
		OnStateChange: func(service string, from, to State) {
			if service != "geocode" {
				t.Errorf("hook service = %q, want geocode", service)
			}
			seen = append(seen, transition{from, to})
		},
	})
	ctx := context.Background()

	_ = b.Call(ctx, func() error { return errUpstream })
	time.Sleep(2 * time.Millisecond)
	_ = b.Call(ctx, func() error { return nil })

	want := []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestBreaker_ContextCancelled(t *testing.T) {
	b := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Call(ctx, func() error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Call() error = %v, want context.Canceled", err)
	}
}
