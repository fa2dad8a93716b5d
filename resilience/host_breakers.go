package resilience

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// StateObserver is notified after every call with the host's breaker state.
type StateObserver func(host string, state CircuitState)

// HostBreakers keeps one circuit breaker per host.
type HostBreakers struct {
	config   CircuitBreakerConfig
	observer StateObserver

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewHostBreakers creates per-host circuit breakers sharing one configuration.
// observer may be nil.
func NewHostBreakers(config CircuitBreakerConfig, observer StateObserver) *HostBreakers {
	return &HostBreakers{
		config:   config,
		observer: observer,
		breakers: make(map[string]*CircuitBreaker),
	}
}

func (h *HostBreakers) breaker(host string) *CircuitBreaker {
	h.mu.RLock()
	b, ok := h.breakers[host]
	h.mu.RUnlock()
	if ok {
		return b
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok = h.breakers[host]; ok {
		return b
	}
	b = NewCircuitBreaker(h.config)
	h.breakers[host] = b
	return b
}

// Call is one HTTP exchange guarded by a breaker.
type Call func(ctx context.Context) (*http.Response, error)

// Execute runs call unless the host's breaker is open.
// Transport errors and 5xx responses count as failures; a 5xx response is still returned.
func (h *HostBreakers) Execute(ctx context.Context, host string, call Call) (*http.Response, error) {
	b := h.breaker(host)
	defer h.notify(host, b)

	if err := b.Allow(); err != nil {
		return nil, fmt.Errorf("circuit breaker open for %s: %w", host, err)
	}

	resp, err := call(ctx)
	if err != nil {
		b.Failure()
		return nil, err
	}
	if resp.StatusCode >= 500 {
		b.Failure()
		return resp, nil
	}

	b.Success()
	return resp, nil
}

func (h *HostBreakers) notify(host string, b *CircuitBreaker) {
	if h.observer != nil {
		h.observer(host, b.State())
	}
}

// State returns the breaker state for host. Hosts never called are closed.
func (h *HostBreakers) State(host string) CircuitState {
	h.mu.RLock()
	b, ok := h.breakers[host]
	h.mu.RUnlock()
	if !ok {
		return StateClosed
	}
	return b.State()
}

// Stats returns a snapshot for every host seen so far.
func (h *HostBreakers) Stats() map[string]CircuitBreakerStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := make(map[string]CircuitBreakerStats, len(h.breakers))
	for host, b := range h.breakers {
		stats[host] = b.Stats()
	}
	return stats
}

// Reset closes the breaker for host.
func (h *HostBreakers) Reset(host string) {
	h.mu.RLock()
	b, ok := h.breakers[host]
	h.mu.RUnlock()
	if ok {
		b.Reset()
		h.notify(host, b)
	}
}
