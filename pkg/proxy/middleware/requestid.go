package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"kiro-hq/gateway/pkg/proxy"
	"kiro-hq/gateway/pkg/telemetry/logging"
)

// maxRequestIDLength bounds client-supplied request IDs.
const maxRequestIDLength = 128

// RequestIDMiddleware assigns each request an ID, stores it in the context
// for logging and audit traces, and echoes it in X-Request-ID. A
// client-supplied X-Request-ID is kept when it is not absurdly long.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(proxy.RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		w.Header().Set(proxy.RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), requestID)))
	})
}
