package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"kiro-hq/gateway/pkg/proxy"
	"kiro-hq/gateway/pkg/proxy/types"
	"kiro-hq/gateway/pkg/telemetry/logging"
)

// RecoveryMiddleware turns a handler panic into a 500 in the caller's
// protocol envelope. The stack is logged, never sent. http.ErrAbortHandler
// is re-raised so the server can drop the connection.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", err,
				"request_id", logging.GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			_ = proxy.WriteError(w, proxy.ProtocolForPath(r.URL.Path), http.StatusInternalServerError,
				"An internal error occurred. Please try again later.", types.CodeInternalError)
		}()

		next.ServeHTTP(w, r)
	})
}
