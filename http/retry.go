package http

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// maxRetryAfter bounds how long a TSA may ask us to wait before the next attempt.
const maxRetryAfter = 5 * time.Minute

// RetryConfig controls how time-stamp requests are repeated after transient failures.
// Delays grow geometrically from InitialBackoff by BackoffFactor, are capped at
// MaxBackoff and then spread by ±JitterFactor.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	JitterFactor   float64
}

// DefaultRetryConfig allows three retries starting at one second.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2,
		JitterFactor:   0.1,
	}
}

// CalculateBackoff returns the delay before retry number attempt+1.
func (rc *RetryConfig) CalculateBackoff(attempt int) time.Duration {
	delay := float64(rc.InitialBackoff)
	for i := 0; i < attempt && delay < float64(rc.MaxBackoff); i++ {
		delay *= rc.BackoffFactor
	}
	delay = min(delay, float64(rc.MaxBackoff))

	if rc.JitterFactor > 0 {
		delay += delay * rc.JitterFactor * (2*rand.Float64() - 1)
	}
	if delay <= 0 {
		return rc.InitialBackoff
	}
	return time.Duration(delay)
}

// IsRetriable reports whether a transport error is worth another attempt.
// Timeouts, refused or reset connections and other network failures qualify.
func IsRetriable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsRetriableStatus reports whether a TSA response status signals a temporary condition.
func IsRetriableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

var retryAfterLayouts = []string{time.RFC1123, time.RFC1123Z, time.RFC850, time.ANSIC}

// ParseRetryAfter decodes a Retry-After header given either as seconds or as an
// HTTP date. Missing, malformed or past values yield zero.
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	var wait time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		wait = time.Duration(secs) * time.Second
	} else {
		for _, layout := range retryAfterLayouts {
			if at, err := time.Parse(layout, value); err == nil {
				wait = time.Until(at)
				break
			}
		}
	}

	if wait < 0 {
		return 0
	}
	return min(wait, maxRetryAfter)
}
