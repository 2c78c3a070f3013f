package tokens

import (
	"errors"
	"fmt"
)

// ErrMissingRefreshToken is returned when the credential has no refresh token.
var ErrMissingRefreshToken = errors.New("credential has no refresh token")

// RefreshError is an authentication failure while obtaining a token.
type RefreshError struct {
	// Method is the strategy that failed.
	Method Method

	// Op names the failing call ("refresh", "register_client", "parse").
	Op string

	// StatusCode is the HTTP status returned by the auth endpoint, or 0.
	StatusCode int

	// Body is the raw response body, if any.
	Body string

	// Message describes the failure.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *RefreshError) Error() string {
	msg := fmt.Sprintf("%s token %s failed", e.Method, e.Op)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain support.
func (e *RefreshError) Unwrap() error {
	return e.Cause
}
