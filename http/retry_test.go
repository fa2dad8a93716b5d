package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetries(n int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:     n,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2,
	}
}

func TestIsRetriable(t *testing.T) {
	assert.False(t, IsRetriable(nil))
	assert.False(t, IsRetriable(errors.New("malformed time-stamp response")))

	for _, err := range []error{
		&net.DNSError{IsTimeout: true},
		syscall.ECONNRESET,
		syscall.ECONNREFUSED,
		context.DeadlineExceeded,
	} {
		assert.True(t, IsRetriable(err), "%v", err)
	}
}

func TestIsRetriableStatus(t *testing.T) {
	for code, want := range map[int]bool{
		http.StatusOK:                  false,
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusInternalServerError: false,
		http.StatusTooManyRequests:     true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	} {
		assert.Equal(t, want, IsRetriableStatus(code), http.StatusText(code))
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := DefaultRetryConfig()

	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		got := cfg.CalculateBackoff(attempt)
		assert.InDelta(t, float64(base), float64(got), float64(base)/10, "attempt %d", attempt)
	}

	capped := cfg.CalculateBackoff(20)
	assert.LessOrEqual(t, capped, cfg.MaxBackoff+cfg.MaxBackoff/10)

	noJitter := &RetryConfig{InitialBackoff: 10 * time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 3}
	assert.Equal(t, 90*time.Millisecond, noJitter.CalculateBackoff(2))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Zero(t, ParseRetryAfter(""))
	assert.Zero(t, ParseRetryAfter("soon"))
	assert.Zero(t, ParseRetryAfter("-4"))
	assert.Equal(t, 7*time.Second, ParseRetryAfter(" 7 "))
	assert.Equal(t, maxRetryAfter, ParseRetryAfter("86400"))

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC1123)
	assert.Zero(t, ParseRetryAfter(past))

	future := time.Now().Add(90 * time.Second).UTC().Format(time.RFC1123)
	wait := ParseRetryAfter(future)
	assert.Greater(t, wait, 80*time.Second)
	assert.LessOrEqual(t, wait, 90*time.Second)
}

func TestClient_PostRetriesBusyTSA(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
		bodies   []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		attempts++
		n := attempts
		bodies = append(bodies, string(b))
		mu.Unlock()

		if n < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/timestamp-reply")
		_, _ = w.Write([]byte("tsr"))
	}))
	defer server.Close()

	client := NewClientWithOptions(WithRetryConfig(fastRetries(3)))
	resp, err := client.Post(context.Background(), server.URL, "application/timestamp-query", []byte("tsq"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []string{"tsq", "tsq", "tsq"}, bodies, "query replayed on every attempt")
}

func TestClient_DoWithRetry_ReturnsLastResponse(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClientWithOptions(WithRetryConfig(fastRetries(2)))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := client.DoWithRetry(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_DoWithRetry_NoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClientWithOptions(WithRetryConfig(fastRetries(3)))
	resp, err := client.Post(context.Background(), server.URL, "application/timestamp-query", []byte("bad"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_DoWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	slow := &RetryConfig{MaxRetries: 3, InitialBackoff: time.Minute, MaxBackoff: time.Minute, BackoffFactor: 1}
	client := NewClientWithOptions(WithRetryConfig(slow))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Post(ctx, server.URL, "application/timestamp-query", []byte("tsq"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_DoWithRetry_UnreplayableBody(t *testing.T) {
	client := NewClient(nil)

	req, _ := http.NewRequest(http.MethodPost, "http://127.0.0.1:1", io.NopCloser(strings.NewReader("x")))
	req.GetBody = nil

	_, err := client.DoWithRetry(context.Background(), req)
	assert.ErrorContains(t, err, "cannot be replayed")
}
