// Package httpclient builds the HTTP clients used to talk to Baserow and n8n.
//
// Client adds typed errors, optional pacing, optional retry with backoff and
// an optional circuit breaker on top of net/http. Every feature is off unless
// configured, so a bare Client performs exactly one request per call.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"baserow-bridge/internal/circuitbreaker"
	"baserow-bridge/internal/common/errors"
	"baserow-bridge/internal/common/ratelimit"
	"baserow-bridge/internal/common/utils"
)

// UserAgent is sent with every request
const UserAgent = "baserow-bridge/1.0"

// ClientConfig holds HTTP client configuration
type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	InsecureSkipVerify  bool
	Transport           http.RoundTripper
}

// DefaultClientConfig returns default HTTP client configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
}

// ClientOption is a function that modifies ClientConfig
type ClientOption func(*ClientConfig)

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithInsecureSkipVerify disables TLS certificate verification
func WithInsecureSkipVerify(skip bool) ClientOption {
	return func(c *ClientConfig) {
		c.InsecureSkipVerify = skip
	}
}

// WithTransport sets a custom transport
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *ClientConfig) {
		c.Transport = transport
	}
}

// NewHTTPClient creates a new *http.Client with the given options
func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := DefaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	transport := cfg.Transport
	if transport == nil {
		httpTransport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.IdleConnTimeout,
		}
		if cfg.InsecureSkipVerify {
			httpTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-hosted instances
		}
		transport = httpTransport
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// Request describes one HTTP call
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Client wraps http.Client with pacing, retry and circuit breaking
type Client struct {
	client      *http.Client
	breaker     *circuitbreaker.Breaker
	rateLimiter ratelimit.Limiter
	retryConfig utils.RetryConfig
}

// NewClient creates a Client performing single attempts with no pacing
func NewClient(opts ...ClientOption) *Client {
	return &Client{
		client:      NewHTTPClient(opts...),
		retryConfig: utils.RetryConfig{MaxAttempts: 1},
	}
}

// WithCircuitBreaker routes every attempt through b
func (c *Client) WithCircuitBreaker(b *circuitbreaker.Breaker) *Client {
	c.breaker = b
	return c
}

// WithRateLimiter waits on l before every request
func (c *Client) WithRateLimiter(l ratelimit.Limiter) *Client {
	c.rateLimiter = l
	return c
}

// WithRetryConfig retries retryable failures per cfg. Only connection errors,
// 5xx, 408 and 429 responses are retried; cfg.RetryableErrors is replaced.
func (c *Client) WithRetryConfig(cfg utils.RetryConfig) *Client {
	cfg.RetryableErrors = isRetryable
	c.retryConfig = cfg
	return c
}

// Do performs req. A non-2xx answer returns both the Response and an
// http_status error; transport failures return a connection error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.RateLimitError(req.URL, err)
		}
	}

	var response *Response
	err := utils.RetryWithBackoff(ctx, c.retryConfig, func() error {
		var attemptErr error
		if c.breaker != nil {
			attemptErr = c.breaker.Execute(ctx, func() error {
				var execErr error
				response, execErr = c.execute(ctx, req)
				return execErr
			})
		} else {
			response, attemptErr = c.execute(ctx, req)
		}
		return attemptErr
	})

	return response, err
}

func (c *Client) execute(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, errors.InternalError("failed to create request", err)
	}

	httpReq.Header.Set("User-Agent", UserAgent)
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.ConnectionError(fmt.Sprintf("%s %s failed", req.Method, redact(req.URL)), err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ConnectionError("failed to read response body", err)
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       responseBody,
		Duration:   time.Since(start),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response, errors.HTTPStatusError(resp.StatusCode, string(responseBody)).
			WithContext("url", redact(req.URL))
	}
	return response, nil
}

func isRetryable(err error) bool {
	if errors.IsType(err, errors.ErrTypeConnection) {
		return true
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Type == errors.ErrTypeHTTPStatus {
		code := appErr.StatusCode
		return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
	}
	return false
}
