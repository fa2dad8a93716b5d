// Package resilience protects calls to remote time-stamp authorities.
//
// A CircuitBreaker stops hammering a TSA that keeps failing; HostBreakers keeps one
// breaker per authority host so a single unreachable TSA does not block the others.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the position of a breaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{StateClosed: "Closed", StateOpen: "Open", StateHalfOpen: "HalfOpen"}

func (s CircuitState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen rejects calls while a TSA is considered down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	// MaxFailures consecutive failures open the circuit.
	MaxFailures uint

	// Timeout is the cool-down before a probe is let through.
	Timeout time.Duration

	// MaxHalfOpenRequests bounds concurrent probes.
	MaxHalfOpenRequests uint
}

// DefaultCircuitBreakerConfig returns default configuration.
// Signing is interactive, so a TSA is given up on quickly and probed again after 30s.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:         3,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// CircuitBreaker is closed while calls succeed, opens after MaxFailures
// consecutive failures and, once Timeout has passed, half-opens to let probes
// decide whether to close again.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       CircuitState
	failures    uint
	lastFailure time.Time
	probes      uint
	probeFails  uint
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: config}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow admits a call or returns ErrCircuitOpen. An admitted call must be
// followed by Success or Failure.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) < cb.config.Timeout {
			return ErrCircuitOpen
		}
		cb.moveTo(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.config.MaxHalfOpenRequests {
			return ErrCircuitOpen
		}
		cb.probes++
	}
	return nil
}

// Success records a call that went through.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.moveTo(StateClosed)
}

// Failure records a failed call.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()
	switch cb.state {
	case StateHalfOpen:
		cb.probeFails++
		cb.moveTo(StateOpen)
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.MaxFailures {
			cb.moveTo(StateOpen)
		}
	}
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.moveTo(StateClosed)
	cb.probeFails = 0
}

// moveTo changes state; callers hold mu.
func (cb *CircuitBreaker) moveTo(s CircuitState) {
	switch s {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probes = 0
	}
	cb.state = s
}

// CircuitBreakerStats is a point-in-time view of a breaker.
type CircuitBreakerStats struct {
	State            CircuitState
	Failures         uint
	LastFailureTime  time.Time
	HalfOpenFailures uint
}

// Stats returns a snapshot of the breaker.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		State:            cb.state,
		Failures:         cb.failures,
		LastFailureTime:  cb.lastFailure,
		HalfOpenFailures: cb.probeFails,
	}
}
