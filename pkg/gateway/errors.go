package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"kiro-hq/gateway/pkg/pool"
	"kiro-hq/gateway/pkg/proxy/types"
	"kiro-hq/gateway/pkg/tokens"
	"kiro-hq/gateway/pkg/translate"
	"kiro-hq/gateway/pkg/upstream"
)

// Kind classifies a request failure.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindNoAvailableCredential
	KindUpstream
	KindTranslation

	// KindCanceled is a request abandoned by its client. Nothing is written
	// back and the account is not blamed.
	KindCanceled
)

// StatusClientClosed is recorded for requests whose client went away.
const StatusClientClosed = 499

// ErrClientGone is returned when writing to the client failed mid-stream.
var ErrClientGone = errors.New("client disconnected")

// String returns the snake_case name recorded in audit traces.
func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindNoAvailableCredential:
		return "no_available_credential"
	case KindUpstream:
		return "upstream"
	case KindTranslation:
		return "translation"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// Error is a classified request failure.
type Error struct {
	Kind Kind

	// Status is the HTTP status returned to the caller.
	Status int

	Message string

	// Body is the upstream response body, when there was one.
	Body string

	// RateLimited is set when the upstream reported quota exhaustion.
	RateLimited bool

	// Delivered is set when the failure was already written into a started
	// event stream, so no error envelope can follow.
	Delivered bool

	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Code returns the machine-readable code used in the OpenAI envelope.
func (e *Error) Code() string {
	switch e.Kind {
	case KindAuthentication:
		return types.CodeInvalidAPIKey
	case KindNoAvailableCredential:
		return types.CodeNoAvailableAccount
	case KindTranslation:
		return types.CodeInvalidValue
	case KindUpstream:
		if e.RateLimited {
			return types.CodeRateLimited
		}
		return types.CodeUpstreamError
	default:
		return types.CodeInternalError
	}
}

// Classify maps an error from any layer onto an *Error. It returns nil for
// a nil error and the error itself when it already is an *Error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}

	var (
		upErr      *upstream.Error
		streamErr  *upstream.StreamError
		eventErr   *translate.EventError
		refreshErr *tokens.RefreshError
		transErr   *translate.Error
		validErr   *types.ValidationError
	)
	switch {
	case errors.Is(err, ErrClientGone), errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Status: StatusClientClosed, Message: "client disconnected", Cause: err}

	case errors.Is(err, pool.ErrNoAvailable):
		return &Error{Kind: KindNoAvailableCredential, Status: http.StatusServiceUnavailable, Message: err.Error(), Cause: err}

	case errors.As(err, &upErr):
		if upErr.IsAuth() {
			return &Error{Kind: KindAuthentication, Status: http.StatusUnauthorized, Message: "upstream rejected the access token", Body: upErr.Body, Cause: err}
		}
		status := upErr.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		return &Error{Kind: KindUpstream, Status: status, Message: upErr.Error(), Body: upErr.Body, RateLimited: upErr.IsRateLimit(), Cause: err}

	case errors.As(err, &eventErr):
		if eventErr.Throttled() {
			return &Error{Kind: KindUpstream, Status: http.StatusTooManyRequests, Message: eventErr.Message, RateLimited: true, Cause: err}
		}
		return &Error{Kind: KindUpstream, Status: http.StatusBadGateway, Message: eventErr.Message, Cause: err}

	case errors.As(err, &streamErr):
		return &Error{Kind: KindUpstream, Status: http.StatusBadGateway, Message: err.Error(), Cause: err}

	case errors.As(err, &refreshErr), errors.Is(err, tokens.ErrMissingRefreshToken):
		e := &Error{Kind: KindAuthentication, Status: http.StatusUnauthorized, Message: err.Error(), Cause: err}
		if refreshErr != nil {
			e.Body = refreshErr.Body
		}
		return e

	case errors.As(err, &transErr), errors.As(err, &validErr):
		return &Error{Kind: KindTranslation, Status: http.StatusBadRequest, Message: err.Error(), Cause: err}

	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindUpstream, Status: http.StatusGatewayTimeout, Message: "upstream request timed out", Cause: err}

	default:
		return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: err.Error(), Cause: err}
	}
}
