package upstream

import (
	"fmt"
	"net/http"
)

// Error is a non-success outcome of an upstream call.
type Error struct {
	// Endpoint is the URL of the last attempt.
	Endpoint string

	// StatusCode is the HTTP status of the last attempt, or 0 for a
	// transport failure.
	StatusCode int

	// Body is the response body of the last attempt.
	Body string

	// Attempts is the number of HTTP requests made across all endpoints.
	Attempts int

	// Cause is the underlying transport error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream request failed: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRateLimit reports whether the upstream rejected the call for quota.
func (e *Error) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsAuth reports whether the upstream rejected the bearer token.
func (e *Error) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// StreamError is a failure while reading a 200 response body.
type StreamError struct {
	Endpoint string
	Cause    error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return fmt.Sprintf("upstream stream from %s broke: %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}
