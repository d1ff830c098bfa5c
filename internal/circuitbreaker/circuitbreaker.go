package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Call while the circuit is open.
var ErrOpen = errors.New("circuit breaker open")

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// State is the circuit breaker state (Closed, Open, HalfOpen).
type State int

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

// Config holds circuit breaker parameters. Zero values take defaults
// (5 failures, 2 successes, 30s open timeout).
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Component        string
	// OnStateChange is called outside the lock after every transition.
	OnStateChange func(component string, from, to State)
	// Now overrides the clock; tests only.
	Now func() time.Time
}

// CircuitBreaker stops calling a failing upstream after FailureThreshold
// consecutive failures, then lets probe calls through once Timeout has passed.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
	cfg          Config
}

// New creates a CircuitBreaker in the closed state.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{state: StateClosed, cfg: cfg}
}

// Call runs fn if the circuit allows it and records the outcome. fn's error is
// returned unchanged. Context cancellation is not counted as an upstream failure.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	if err != nil && ctx.Err() != nil {
		return err
	}
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	if cb.state != StateOpen {
		cb.mu.Unlock()
		return nil
	}
	if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.Timeout {
		cb.mu.Unlock()
		return ErrOpen
	}
	cb.successCount = 0
	from := cb.transition(StateHalfOpen)
	cb.mu.Unlock()
	cb.notify(from, StateHalfOpen)
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	from, to := cb.state, cb.state
	if err != nil {
		cb.failureCount++
		if cb.state == StateHalfOpen || cb.failureCount >= cb.cfg.FailureThreshold {
			cb.failureCount = 0
			cb.openedAt = cb.cfg.Now()
			to = StateOpen
			cb.transition(to)
		}
	} else {
		cb.failureCount = 0
		if cb.state == StateHalfOpen {
			cb.successCount++
			if cb.successCount >= cb.cfg.SuccessThreshold {
				cb.successCount = 0
				to = StateClosed
				cb.transition(to)
			}
		}
	}
	cb.mu.Unlock()
	if from != to {
		cb.notify(from, to)
	}
}

// transition sets the new state and returns the previous one. Caller holds mu.
func (cb *CircuitBreaker) transition(to State) State {
	from := cb.state
	cb.state = to
	return from
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Component, from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
