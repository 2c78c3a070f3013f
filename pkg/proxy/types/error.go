package types

import "net/http"

// ErrorResponse is the OpenAI-compatible error envelope.
type ErrorResponse struct {
	// Error contains the error details.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Param is the name of the parameter that caused the error (if applicable).
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// AnthropicErrorResponse is the Anthropic-compatible error envelope.
type AnthropicErrorResponse struct {
	// Type is always "error".
	Type string `json:"type"`

	// Error contains the error details.
	Error AnthropicErrorDetail `json:"error"`
}

// AnthropicErrorDetail contains the Anthropic error type and message.
type AnthropicErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// OpenAI error types.
const (
	ErrorTypeInvalidRequest     = "invalid_request_error"
	ErrorTypeAuthentication     = "authentication_error"
	ErrorTypePermissionDenied   = "permission_denied"
	ErrorTypeNotFound           = "not_found"
	ErrorTypeRateLimitExceeded  = "rate_limit_exceeded"
	ErrorTypeServerError        = "server_error"
	ErrorTypeBadGateway         = "bad_gateway"
	ErrorTypeServiceUnavailable = "service_unavailable"
	ErrorTypeGatewayTimeout     = "gateway_timeout"
)

// Anthropic error types.
const (
	AnthropicInvalidRequest = "invalid_request_error"
	AnthropicAuthentication = "authentication_error"
	AnthropicPermission     = "permission_error"
	AnthropicNotFound       = "not_found_error"
	AnthropicRateLimit      = "rate_limit_error"
	AnthropicAPIError       = "api_error"
	AnthropicOverloaded     = "overloaded_error"
)

// Error codes for the OpenAI envelope.
const (
	CodeMissingField        = "missing_field"
	CodeInvalidValue        = "invalid_value"
	CodeInvalidJSON         = "invalid_json"
	CodeInvalidAPIKey       = "invalid_api_key"
	CodeRateLimited         = "rate_limited"
	CodeUpstreamError       = "upstream_error"
	CodeUpstreamTimeout     = "upstream_timeout"
	CodeNoAvailableAccount  = "no_available_account"
	CodeRequestTooLarge     = "request_too_large"
	CodeInternalError       = "internal_error"
	CodeNotFound            = "not_found"
	CodeServiceUnavailable  = "service_unavailable"
	CodeUnsupportedProtocol = "unsupported"
)

// OpenAIErrorType returns the OpenAI error type for an HTTP status.
func OpenAIErrorType(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return ErrorTypeInvalidRequest
	case http.StatusUnauthorized:
		return ErrorTypeAuthentication
	case http.StatusForbidden:
		return ErrorTypePermissionDenied
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimitExceeded
	case http.StatusBadGateway:
		return ErrorTypeBadGateway
	case http.StatusServiceUnavailable:
		return ErrorTypeServiceUnavailable
	case http.StatusGatewayTimeout:
		return ErrorTypeGatewayTimeout
	default:
		return ErrorTypeServerError
	}
}

// AnthropicErrorType returns the Anthropic error type for an HTTP status.
func AnthropicErrorType(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return AnthropicInvalidRequest
	case http.StatusUnauthorized:
		return AnthropicAuthentication
	case http.StatusForbidden:
		return AnthropicPermission
	case http.StatusNotFound:
		return AnthropicNotFound
	case http.StatusTooManyRequests:
		return AnthropicRateLimit
	case http.StatusServiceUnavailable:
		return AnthropicOverloaded
	default:
		return AnthropicAPIError
	}
}

// NewErrorResponse creates an OpenAI error envelope with the given details.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewOpenAIError creates an OpenAI error envelope for an HTTP status.
func NewOpenAIError(status int, message, code string) *ErrorResponse {
	return NewErrorResponse(message, OpenAIErrorType(status), "", code)
}

// NewInvalidRequestError creates an OpenAI error for an invalid request (400).
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewAnthropicError creates an Anthropic error envelope for an HTTP status.
func NewAnthropicError(status int, message string) *AnthropicErrorResponse {
	return &AnthropicErrorResponse{
		Type:  "error",
		Error: AnthropicErrorDetail{Type: AnthropicErrorType(status), Message: message},
	}
}

// HTTPStatusCode returns the HTTP status code for the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePermissionDenied:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorTypeBadGateway:
		return http.StatusBadGateway
	case ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
