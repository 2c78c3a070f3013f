// Package middleware provides the HTTP middleware of the gateway.
//
// # Middleware Chain
//
// The server applies them outermost first:
//
//	Recovery -> RequestID -> Logging -> CORS -> tracing -> BodyLimit
//	  /v1 and bare API routes: APIKey -> RateLimit -> handler
//	  /admin routes:           AdminAuth -> handler
//
// Recovery, API key and rate limit failures are answered in the envelope of
// the called endpoint, so an Anthropic SDK calling /v1/messages sees
// {"type":"error","error":{"type":"authentication_error",...}} while an
// OpenAI SDK sees {"error":{"type":"authentication_error",...}}.
//
// # Hot reload
//
// Authenticator.Update swaps the configured API keys and the require flag
// without restarting. ratelimit.Limiter.Update does the same for limits.
package middleware
