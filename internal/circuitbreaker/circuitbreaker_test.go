package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream failure")

type transition struct{ from, to State }

func newTestBreaker(now *time.Time, transitions *[]transition) *CircuitBreaker {
	return New(Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          10 * time.Second,
		Component:        "weather_api",
		Now:              func() time.Time { return *now },
		OnStateChange: func(component string, from, to State) {
			*transitions = append(*transitions, transition{from, to})
		},
	})
}

func fail() error    { return errUpstream }
func succeed() error { return nil }

// TestCircuitBreaker_OpensAfterThreshold verifies consecutive failures open the circuit
// and an open circuit fails fast without calling fn.
func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Unix(0, 0)
	var transitions []transition
	cb := newTestBreaker(&now, &transitions)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Call(ctx, fail); !errors.Is(err, errUpstream) {
			t.Fatalf("Call() #%d error = %v, want upstream error", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	called := false
	err := cb.Call(ctx, func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Call() on open circuit error = %v, want ErrOpen", err)
	}
	if called {
		t.Error("fn called while circuit open")
	}
	if len(transitions) != 1 || transitions[0] != (transition{StateClosed, StateOpen}) {
		t.Errorf("transitions = %v, want [closed->open]", transitions)
	}
}

// TestCircuitBreaker_SuccessResetsFailures verifies failures must be consecutive.
func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	now := time.Unix(0, 0)
	var transitions []transition
	cb := newTestBreaker(&now, &transitions)
	ctx := context.Background()

	_ = cb.Call(ctx, fail)
	_ = cb.Call(ctx, fail)
	_ = cb.Call(ctx, succeed)
	_ = cb.Call(ctx, fail)
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

// TestCircuitBreaker_HalfOpenRecovery verifies the open->half-open->closed path.
func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Unix(0, 0)
	var transitions []transition
	cb := newTestBreaker(&now, &transitions)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Call(ctx, fail)
	}
	now = now.Add(10 * time.Second)

	if err := cb.Call(ctx, succeed); err != nil {
		t.Fatalf("probe Call() error = %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() after one probe = %v, want half_open", cb.State())
	}
	if err := cb.Call(ctx, succeed); err != nil {
		t.Fatalf("second probe Call() error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want closed", cb.State())
	}

	want := []transition{{StateClosed, StateOpen}, {StateOpen, StateHalfOpen}, {StateHalfOpen, StateClosed}}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %v, want %v", i, transitions[i], want[i])
		}
	}
}

// TestCircuitBreaker_HalfOpenFailureReopens verifies one failed probe reopens the circuit.
func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	var transitions []transition
	cb := newTestBreaker(&now, &transitions)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Call(ctx, fail)
	}
	now = now.Add(11 * time.Second)
	_ = cb.Call(ctx, fail)

	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}
	now = now.Add(5 * time.Second)
	if err := cb.Call(ctx, succeed); !errors.Is(err, ErrOpen) {
		t.Errorf("Call() error = %v, want ErrOpen before timeout elapses again", err)
	}
}

// TestCircuitBreaker_CanceledContextNotCounted verifies caller cancellation is not an upstream failure.
func TestCircuitBreaker_CanceledContextNotCounted(t *testing.T) {
	now := time.Unix(0, 0)
	var transitions []transition
	cb := newTestBreaker(&now, &transitions)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		_ = cb.Call(ctx, func() error { return ctx.Err() })
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half_open",
		State(99):     "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
