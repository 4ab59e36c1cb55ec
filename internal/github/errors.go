package github

import (
	"fmt"
	"net/http"
	"time"
)

// TransportError is a connection-level failure that survived the transport retries.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError is returned when a 403 rate limit persists after the backoff.
type RateLimitError struct {
	StatusCode int
	Wait       time.Duration
	Reason     string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API %s (status %d, backoff %s)", e.Reason, e.StatusCode, e.Wait)
}

// ServerError is returned when a 500/502 persists after the backoff.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("GitHub API server error: status %d", e.StatusCode)
}

// ClientError is a non-retryable request rejection.
type ClientError struct {
	StatusCode int
	Message    string
	Header     http.Header
}

func (e *ClientError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("GitHub API rejected the request: status %d", e.StatusCode)
	}
	return e.Message
}

// HTTPError is any other non-2xx response.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s for url: %s", e.Status, e.URL)
}

// DecodeError wraps a response body that could not be parsed.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
