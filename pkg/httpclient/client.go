// Package httpclient provides an HTTP client with retry and backoff for
// talking to MCP servers. Rate-limit responses honor Retry-After; transient
// server errors get a short conservative retry.
package httpclient

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryStrategy classifies how a failed request should be retried.
type RetryStrategy int

const (
	NoRetry RetryStrategy = iota
	ConservativeRetry
	SmartRetry
)

// RetryableError is returned when retries are exhausted.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Client wraps http.Client with retry/backoff behavior.
type Client struct {
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithMaxRetries(max int) Option {
	return func(c *Client) {
		c.maxRetries = max
	}
}

func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = delay
	}
}

// New creates a Client with sane defaults for MCP traffic.
func New(opts ...Option) *Client {
	client := &Client{
		client:     &http.Client{Timeout: 60 * time.Second},
		maxRetries: 3,
		baseDelay:  2 * time.Second,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// classify maps a status code to a retry strategy.
func classify(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// Do executes the request, retrying retryable failures until maxRetries is
// exhausted. Requests with a body must set GetBody (http.NewRequest does this
// for common body types).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to recreate request body for retry: %w", err)
			}
			req.Body = body
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		strategy := classify(resp.StatusCode)
		if strategy == NoRetry {
			return resp, nil
		}

		lastResp = resp
		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)

		if attempt >= c.maxRetries {
			break
		}

		delay := c.delayFor(strategy, attempt, resp)
		if delay <= 0 {
			return resp, nil
		}

		resp.Body.Close()
		slog.Debug("Retrying HTTP request",
			"status", resp.StatusCode,
			"delay", delay,
			"attempt", attempt+1,
			"max_attempts", c.maxRetries,
		)
		time.Sleep(delay)
	}

	statusCode := 0
	if lastResp != nil {
		statusCode = lastResp.StatusCode
	}
	return lastResp, &RetryableError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("max HTTP retries (%d) exceeded", c.maxRetries),
		RetryAfter: c.baseDelay,
		Err:        lastErr,
	}
}

func (c *Client) delayFor(strategy RetryStrategy, attempt int, resp *http.Response) time.Duration {
	switch strategy {
	case SmartRetry:
		if after := parseRetryAfter(resp.Header); after > 0 {
			return after
		}
		exponential := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
		jitter := time.Duration(float64(exponential) * 0.1)
		return exponential + jitter

	case ConservativeRetry:
		if attempt >= 2 {
			return 0
		}
		return time.Duration(2+attempt) * time.Second

	default:
		return 0
	}
}

// parseRetryAfter reads the Retry-After header, seconds form only.
func parseRetryAfter(h http.Header) time.Duration {
	value := h.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
