package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/goasics/observability"
	"github.com/willibrandon/goasics/resilience"
)

func failingTSA(t *testing.T, status int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestClient_CircuitBreaker_OpensAfterFailures(t *testing.T) {
	server, hits := failingTSA(t, http.StatusInternalServerError)

	client := NewClientWithOptions(
		WithMaxRetries(0),
		WithCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:         3,
			Timeout:             time.Second,
			MaxHalfOpenRequests: 1,
		}),
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resp, err := client.Post(ctx, server.URL, "application/timestamp-query", []byte("q"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		_ = resp.Body.Close()
	}

	_, err := client.Post(ctx, server.URL, "application/timestamp-query", []byte("q"))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))

	u, _ := url.Parse(server.URL)
	assert.Equal(t, resilience.StateOpen, client.BreakerState(u.Host))

	gauge, err := observability.GetGaugeValue(observability.CircuitBreakerState, u.Host)
	require.NoError(t, err)
	assert.Equal(t, float64(resilience.StateOpen), gauge)
}

func TestClient_CircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClientWithOptions(
		WithMaxRetries(0),
		WithCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:         1,
			Timeout:             50 * time.Millisecond,
			MaxHalfOpenRequests: 1,
		}),
	)
	ctx := context.Background()

	resp, err := client.Post(ctx, server.URL, "text/plain", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()

	_, err = client.Post(ctx, server.URL, "text/plain", nil)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)

	fail.Store(false)
	time.Sleep(80 * time.Millisecond)

	resp, err = client.Post(ctx, server.URL, "text/plain", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	u, _ := url.Parse(server.URL)
	assert.Equal(t, resilience.StateClosed, client.BreakerState(u.Host))
}

func TestClient_DoWithRetry_CircuitBreakerWrapsSequence(t *testing.T) {
	server, hits := failingTSA(t, http.StatusServiceUnavailable)

	client := NewClient(&Config{
		CircuitBreakerConfig: &resilience.CircuitBreakerConfig{
			MaxFailures:         1,
			Timeout:             time.Second,
			MaxHalfOpenRequests: 1,
		},
		RetryConfig: &RetryConfig{
			MaxRetries:     2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			BackoffFactor:  2,
		},
	})
	ctx := context.Background()

	resp, err := client.Post(ctx, server.URL, "text/plain", []byte("q"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()

	// one breaker failure for the whole sequence of three attempts
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))

	_, err = client.Post(ctx, server.URL, "text/plain", []byte("q"))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestClient_NoBreaker(t *testing.T) {
	server, _ := failingTSA(t, http.StatusInternalServerError)

	client := NewClientWithOptions(WithMaxRetries(0))
	for i := 0; i < 5; i++ {
		resp, err := client.Post(context.Background(), server.URL, "text/plain", nil)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	u, _ := url.Parse(server.URL)
	assert.Equal(t, resilience.StateClosed, client.BreakerState(u.Host))
}
