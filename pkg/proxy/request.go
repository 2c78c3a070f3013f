package proxy

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"kiro-hq/gateway/pkg/proxy/types"
)

const (
	// AuthorizationHeader carries "Bearer <key>" for OpenAI-style clients.
	AuthorizationHeader = "Authorization"

	// APIKeyHeader carries the key for Anthropic-style clients.
	APIKeyHeader = "X-Api-Key"

	// RequestIDHeader is the HTTP header for request ID propagation.
	RequestIDHeader = "X-Request-ID"
)

// ReadBody reads the request body, refusing bodies larger than maxBytes.
// A maxBytes of zero or less means no limit.
func ReadBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &RequestError{
				Status:  http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", maxBytes),
				Code:    types.CodeRequestTooLarge,
				Param:   "body",
			}
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(data) == 0 {
		return nil, &RequestError{
			Status:  http.StatusBadRequest,
			Message: "request body is empty",
			Code:    types.CodeInvalidJSON,
			Param:   "body",
		}
	}
	return data, nil
}

// ExtractAPIKey returns the caller's gateway key from "Authorization: Bearer
// <key>" or, failing that, from "x-api-key".
func ExtractAPIKey(r *http.Request) string {
	if auth := r.Header.Get(AuthorizationHeader); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	return strings.TrimSpace(r.Header.Get(APIKeyHeader))
}

// ClientIP returns the host part of the request's remote address. The
// server's RealIP middleware has already applied X-Forwarded-For.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequestError represents a malformed public request.
type RequestError struct {
	Status  int
	Message string
	Code    string
	Param   string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}
