// Package resilience guards calls to the API against repeated failures.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls are rejected
	StateHalfOpen              // one probe decides
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithFailureFilter limits which errors count as failures. Errors rejected by
// the filter are returned to the caller but leave the breaker untouched.
func WithFailureFilter(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.counts = fn }
}

// OnStateChange registers a hook called after every transition.
func OnStateChange(fn func(from, to State)) Option {
	return func(cb *CircuitBreaker) { cb.onChange = fn }
}

func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// CircuitBreaker implements the circuit breaker pattern.
// Transitions: Closed → Open (after failThreshold consecutive failures)
//
//	Open → HalfOpen (after openTimeout expires)
//	HalfOpen → Closed (on success) or Open (on failure)
type CircuitBreaker struct {
	mu            sync.Mutex
	state         State
	failCount     int
	failThreshold int
	openTimeout   time.Duration
	openedAt      time.Time
	probing       bool

	counts   func(error) bool
	onChange func(from, to State)
	now      func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given thresholds.
func NewCircuitBreaker(failThreshold int, openTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if failThreshold < 1 {
		failThreshold = 1
	}
	cb := &CircuitBreaker{
		state:         StateClosed,
		failThreshold: failThreshold,
		openTimeout:   openTimeout,
		counts:        countsAsFailure,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// countsAsFailure ignores cancellation by the caller.
func countsAsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Execute runs fn through the circuit breaker. It returns ErrCircuitOpen
// without calling fn while the circuit is open, or while another call is
// already probing a half-open circuit.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cb.mu.Lock()
	var changed func()
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.openTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		changed = cb.transition(StateHalfOpen)
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	cb.mu.Unlock()
	if changed != nil {
		changed()
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	cb.probing = false

	var changed func()
	switch {
	case err == nil:
		cb.failCount = 0
		if cb.state != StateClosed {
			changed = cb.transition(StateClosed)
		}
	case !cb.counts(err):
		if cb.state == StateHalfOpen {
			// the probe told us nothing; allow another one
			changed = cb.transition(StateOpen)
			cb.openedAt = time.Time{}
		}
	default:
		cb.failCount++
		if cb.state == StateHalfOpen || cb.failCount >= cb.failThreshold {
			if cb.state != StateOpen {
				changed = cb.transition(StateOpen)
			}
			cb.openedAt = cb.now()
		}
	}
	cb.mu.Unlock()

	if changed != nil {
		changed()
	}
}

// transition sets the state with cb.mu held and returns the hook call to run
// after unlocking.
func (cb *CircuitBreaker) transition(to State) func() {
	from := cb.state
	cb.state = to
	if cb.onChange == nil || from == to {
		return nil
	}
	return func() { cb.onChange(from, to) }
}

// CurrentState returns the current state of the circuit breaker.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
