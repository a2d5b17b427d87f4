// Package chat talks to the travel chat backend on behalf of the voice
// session.
//
// When the model invokes its send_to_chat tool, the spoken query is forwarded
// here as a plain chat message. The backend answers with reply text plus any
// structured tool results (flight offers, hotels, routes); the voice core
// passes those through untouched — rendering them is the UI's job.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/naveo-ai/naveo-voice/internal/resilience"
)

// Request is the POST /chat payload.
type Request struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Response is the backend's answer. ToolResults is kept as raw JSON: the
// voice core never interprets flight, hotel or route payloads.
type Response struct {
	Text        string            `json:"text"`
	ToolResults []json.RawMessage `json:"tool_results,omitempty"`
}

// RetryConfig holds the backoff schedule for transient failures.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the default backoff schedule.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Client is the chat backend client. Requests run behind a circuit breaker so
// a dead backend fails fast instead of stalling every tool call. Safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *resilience.CircuitBreaker
	retry   RetryConfig
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetryConfig overrides the backoff schedule.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates a chat client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "chat-backend",
		}),
		retry: DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send posts one message to the backend and returns its reply. Transient
// failures (network errors, 429, 5xx) are retried with exponential backoff;
// every attempt passes through the circuit breaker.
func (c *Client) Send(ctx context.Context, sessionID, message string) (*Response, error) {
	body, err := json.Marshal(Request{SessionID: sessionID, Message: message})
	if err != nil {
		return nil, fmt.Errorf("chat: marshal request: %w", err)
	}

	var resp *Response
	delay := c.retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		err := c.breaker.Execute(func() error {
			var execErr error
			resp, execErr = c.post(ctx, body)
			return execErr
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("chat: backend unavailable: %w", err)
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			return nil, pe.err
		}
		if attempt == c.retry.MaxAttempts {
			break
		}

		slog.Warn("chat request failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"err", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * c.retry.Multiplier)
		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
	}

	return nil, fmt.Errorf("chat: %w", lastErr)
}

// permanentError marks a failure that retrying cannot fix (4xx other than 429).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func (c *Client) post(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat: post: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(httpResp.Body, 4096))
		statusErr := fmt.Errorf("chat: backend returned %s", httpResp.Status)
		if retryableStatus(httpResp.StatusCode) {
			return nil, statusErr
		}
		return nil, &permanentError{err: statusErr}
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &permanentError{err: fmt.Errorf("chat: decode response: %w", err)}
	}
	return &resp, nil
}

// retryableStatus reports whether the status code is worth another attempt.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// BreakerState exposes the breaker state for readiness checks.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}
