// Package http provides the HTTP client used to reach time-stamp authorities.
//
// It wraps the standard http.Client with configurable timeouts, user agent
// management, retries with backoff, per-host circuit breaking and optional
// HTTP/2 or HTTP/3 transports.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/willibrandon/goasics/observability"
	"github.com/willibrandon/goasics/resilience"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultDialTimeout = 10 * time.Second
	DefaultUserAgent   = "goasics/0.1.0"
)

// Client sends time-stamp queries. It adds a user agent, logs and records
// metrics for every exchange, retries transient failures and, when
// configured, trips a circuit breaker per TSA host.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	timeout     time.Duration
	retryConfig *RetryConfig
	logger      observability.Logger
	breakers    *resilience.HostBreakers
}

// Config holds HTTP client configuration.
type Config struct {
	Timeout      time.Duration
	DialTimeout  time.Duration
	UserAgent    string
	TLSConfig    *tls.Config
	MaxIdleConns int
	EnableHTTP2  bool
	EnableHTTP3  bool
	RetryConfig  *RetryConfig

	// Logger defaults to a null logger.
	Logger        observability.Logger
	EnableTracing bool

	// CircuitBreakerConfig enables per-host breaking when set.
	CircuitBreakerConfig *resilience.CircuitBreakerConfig
}

// DefaultConfig returns the configuration used by NewClient(nil).
func DefaultConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeout,
		DialTimeout:  DefaultDialTimeout,
		UserAgent:    DefaultUserAgent,
		MaxIdleConns: 100,
		EnableHTTP2:  true,
		RetryConfig:  DefaultRetryConfig(),
	}
}

// NewClient creates a client from cfg. A nil cfg means DefaultConfig.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retry := cfg.RetryConfig
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	transport := newTransport(cfg)
	if cfg.EnableTracing {
		transport = observability.NewHTTPTracingTransport(transport, observability.TracerName+"/http")
	}

	c := &Client{
		httpClient:  &http.Client{Transport: transport, Timeout: cfg.Timeout},
		userAgent:   cfg.UserAgent,
		timeout:     cfg.Timeout,
		retryConfig: retry,
		logger:      logger,
	}
	if cfg.CircuitBreakerConfig != nil {
		c.breakers = resilience.NewHostBreakers(*cfg.CircuitBreakerConfig, publishBreakerState)
	}
	return c
}

func publishBreakerState(host string, state resilience.CircuitState) {
	observability.CircuitBreakerState.WithLabelValues(host).Set(float64(state))
	if state == resilience.StateOpen {
		observability.CircuitBreakerFailures.WithLabelValues(host).Inc()
	}
}

// guarded runs fn behind the breaker for host, if there is one.
func (c *Client) guarded(ctx context.Context, host string, fn func(context.Context) (*http.Response, error)) (*http.Response, error) {
	if c.breakers == nil {
		return fn(ctx)
	}
	return c.breakers.Execute(ctx, host, fn)
}

// Do sends req once.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	c.stamp(req)
	return c.guarded(ctx, req.URL.Host, func(ctx context.Context) (*http.Response, error) {
		return c.send(ctx, req)
	})
}

func (c *Client) stamp(req *http.Request) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		c.logger.WarnContext(ctx, "{Method} {URL} failed after {Elapsed}ms: {Error}",
			req.Method, req.URL.Redacted(), elapsed.Milliseconds(), err)
		observability.HTTPRequestsTotal.WithLabelValues(req.Method, "error", host).Inc()
		return nil, err
	}

	c.logger.DebugContext(ctx, "{Method} {URL} returned {StatusCode} over {Protocol} in {Elapsed}ms",
		req.Method, req.URL.Redacted(), resp.StatusCode, protocolName(resp), elapsed.Milliseconds())
	observability.HTTPRequestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode), host).Inc()
	observability.HTTPRequestDuration.WithLabelValues(req.Method, host).Observe(elapsed.Seconds())
	return resp, nil
}

// Post sends body with the given content type, retrying transient failures.
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.DoWithRetry(ctx, req)
}

// DoWithRetry sends req, repeating it while the failure is transient and
// retries remain. A body must be replayable through req.GetBody.
// When retries run out on a retriable status, the last response is returned.
// The breaker records the outcome of the whole sequence, not of each attempt.
func (c *Client) DoWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	if !rewindable(req) {
		return nil, fmt.Errorf("request body for %s %s cannot be replayed", req.Method, req.URL.Redacted())
	}
	return c.guarded(ctx, req.URL.Host, func(ctx context.Context) (*http.Response, error) {
		return c.retryLoop(ctx, req)
	})
}

func (c *Client) retryLoop(ctx context.Context, req *http.Request) (*http.Response, error) {
	limit := c.retryConfig.MaxRetries
	for attempt := 0; ; attempt++ {
		try, err := c.replay(ctx, req)
		if err != nil {
			return nil, err
		}

		resp, err := c.send(ctx, try)
		switch {
		case err != nil && !IsRetriable(err):
			return nil, err
		case err == nil && !IsRetriableStatus(resp.StatusCode):
			if attempt > 0 {
				c.logger.InfoContext(ctx, "{URL} answered after {Retries} retries", req.URL.Redacted(), attempt)
			}
			return resp, nil
		case attempt >= limit:
			if err != nil {
				c.logger.ErrorContext(ctx, "{URL} still failing after {Retries} retries: {Error}", req.URL.Redacted(), limit, err)
				return nil, fmt.Errorf("after %d retries: %w", limit, err)
			}
			return resp, nil
		}

		wait := c.retryConfig.CalculateBackoff(attempt)
		if resp != nil {
			if hinted := ParseRetryAfter(resp.Header.Get("Retry-After")); hinted > 0 {
				wait = hinted
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		} else {
			observability.RecordRetry(ctx, attempt+1, err)
		}
		c.logger.DebugContext(ctx, "Retrying {URL} ({Attempt}/{MaxRetries}) in {Wait}ms",
			req.URL.Redacted(), attempt+1, limit, wait.Milliseconds())

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// replay clones req for one attempt with a fresh body.
func (c *Client) replay(ctx context.Context, req *http.Request) (*http.Request, error) {
	try := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		try.Body = body
	}
	c.stamp(try)
	return try, nil
}

// BreakerState reports the circuit state for host, or closed when breaking is disabled.
func (c *Client) BreakerState(host string) resilience.CircuitState {
	if c.breakers == nil {
		return resilience.StateClosed
	}
	return c.breakers.State(host)
}

// Option is a functional option for configuring the client
type Option func(*Config)

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *Config) {
		cfg.Timeout = timeout
	}
}

// WithUserAgent sets the user agent string
func WithUserAgent(ua string) Option {
	return func(cfg *Config) {
		cfg.UserAgent = ua
	}
}

// WithTLSConfig sets custom TLS configuration
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(cfg *Config) {
		cfg.TLSConfig = tlsCfg
	}
}

// WithRetryConfig sets custom retry configuration
func WithRetryConfig(retryCfg *RetryConfig) Option {
	return func(cfg *Config) {
		cfg.RetryConfig = retryCfg
	}
}

// WithMaxRetries sets the maximum number of retries
func WithMaxRetries(n int) Option {
	return func(cfg *Config) {
		if cfg.RetryConfig == nil {
			cfg.RetryConfig = DefaultRetryConfig()
		}
		cfg.RetryConfig.MaxRetries = n
	}
}

// WithLogger sets the client logger
func WithLogger(logger observability.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = logger
	}
}

// WithHTTP3 enables HTTP/3 with fallback to HTTP/2 and HTTP/1.1
func WithHTTP3(enabled bool) Option {
	return func(cfg *Config) {
		cfg.EnableHTTP3 = enabled
	}
}

// WithTracing wraps the transport with OpenTelemetry spans
func WithTracing(enabled bool) Option {
	return func(cfg *Config) {
		cfg.EnableTracing = enabled
	}
}

// WithCircuitBreaker enables per-host circuit breaking
func WithCircuitBreaker(cbCfg resilience.CircuitBreakerConfig) Option {
	return func(cfg *Config) {
		cfg.CircuitBreakerConfig = &cbCfg
	}
}

// NewClientWithOptions creates a client with functional options
func NewClientWithOptions(opts ...Option) *Client {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return NewClient(cfg)
}
