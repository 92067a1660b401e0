// Package resilience keeps the loop talking when a speech backend degrades.
//
// [CircuitBreaker] guards one backend. [FallbackGroup] chains several
// backends of one kind, each behind its own breaker, and [STTFallback] and
// [TTSFallback] present such a chain as a plain provider.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until ResetTimeout has passed since the last
	// failure.
	StateOpen

	// StateHalfOpen lets up to HalfOpenMax probes through. All of them must
	// succeed to close the breaker; one failure opens it again.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values take defaults.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs and callbacks.
	Name string

	// MaxFailures is the run of failures that opens a closed breaker.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is the cool-down before probing. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of probes allowed in half-open. Default: 3.
	HalfOpenMax int

	// OnStateChange runs after each transition, outside the breaker's lock.
	OnStateChange func(name string, from, to State)

	// Now replaces time.Now in tests.
	Now func() time.Time
}

// CircuitBreaker stops calling a backend after repeated failures and probes
// it again after a cool-down.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
	passed   int
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Name returns the breaker's label.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// Execute calls fn unless the breaker is open or out of probes, in which
// case it returns [ErrCircuitOpen]. fn's error is returned unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.settle(probe, err)
	return err
}

// State reports the current mode. An open breaker whose cool-down has passed
// reports half-open; the switch itself happens on the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cooled() {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.moveTo(StateClosed)
	cb.mu.Unlock()
	slog.Info("circuit breaker reset", "name", cb.cfg.Name)
	cb.notify(from, StateClosed)
}

// admit decides whether a call may run and whether it counts as a probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	var from State
	switch cb.state {
	case StateOpen:
		if !cb.cooled() {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
		from = cb.moveTo(StateHalfOpen)
	case StateHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenMax {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
		from = StateHalfOpen
	default:
		cb.mu.Unlock()
		return false, nil
	}
	cb.probes++
	cb.mu.Unlock()

	if from == StateOpen {
		slog.Info("circuit breaker probing", "name", cb.cfg.Name)
		cb.notify(StateOpen, StateHalfOpen)
	}
	return true, nil
}

// settle books the outcome of an admitted call.
func (cb *CircuitBreaker) settle(probe bool, err error) {
	cb.mu.Lock()
	from, to := cb.state, cb.state
	switch {
	case err != nil && (probe || cb.state == StateHalfOpen):
		cb.moveTo(StateOpen)
		to = StateOpen
		slog.Warn("circuit breaker probe failed", "name", cb.cfg.Name, "err", err)
	case err != nil:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.moveTo(StateOpen)
			to = StateOpen
			slog.Warn("circuit breaker opened", "name", cb.cfg.Name, "failures", cb.failures)
		}
	case probe && cb.state == StateHalfOpen:
		cb.passed++
		if cb.passed >= cb.cfg.HalfOpenMax {
			cb.moveTo(StateClosed)
			to = StateClosed
			slog.Info("circuit breaker closed", "name", cb.cfg.Name)
		}
	default:
		cb.failures = 0
	}
	cb.mu.Unlock()
	cb.notify(from, to)
}

// moveTo switches state and resets the counters of the new state. It returns
// the previous state. cb.mu must be held.
func (cb *CircuitBreaker) moveTo(s State) State {
	from := cb.state
	cb.state = s
	cb.probes, cb.passed = 0, 0
	switch s {
	case StateOpen:
		cb.openedAt = cb.cfg.Now()
	case StateClosed:
		cb.failures = 0
	}
	return from
}

// cooled reports whether the open cool-down has passed. cb.mu must be held.
func (cb *CircuitBreaker) cooled() bool {
	return cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}
