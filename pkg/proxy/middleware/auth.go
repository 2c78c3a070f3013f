package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"kiro-hq/gateway/pkg/proxy"
	"kiro-hq/gateway/pkg/proxy/types"
	"kiro-hq/gateway/pkg/translate"
)

// Rejection reasons reported to the RejectionObserver.
const (
	ReasonMissingAPIKey = "missing_api_key"
	ReasonInvalidAPIKey = "invalid_api_key"
	ReasonRateLimited   = "rate_limited"
)

// RejectionObserver counts requests refused before reaching a handler. It
// is satisfied by metrics.Collector.
type RejectionObserver interface {
	ObserveRejection(reason string)
}

// KeyLookup validates keys kept in the database. It is satisfied by
// storage.KeyStore.
type KeyLookup interface {
	LookupAPIKey(ctx context.Context, key string) (bool, error)
}

// Authenticator checks gateway API keys against the configured list and the
// key store. The configured list can be swapped at runtime.
type Authenticator struct {
	required atomic.Bool
	keys     atomic.Pointer[map[string]struct{}]
	store    KeyLookup
	observer RejectionObserver
}

// NewAuthenticator creates an Authenticator. store and observer may be nil.
func NewAuthenticator(required bool, keys []string, store KeyLookup, observer RejectionObserver) *Authenticator {
	a := &Authenticator{store: store, observer: observer}
	a.Update(required, keys)
	return a
}

// Update replaces the configured keys.
func (a *Authenticator) Update(required bool, keys []string) {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	a.keys.Store(&set)
	a.required.Store(required)
}

// Valid reports whether key is a configured or stored gateway key.
func (a *Authenticator) Valid(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	if _, ok := (*a.keys.Load())[key]; ok {
		return true, nil
	}
	if a.store == nil {
		return false, nil
	}
	return a.store.LookupAPIKey(ctx, key)
}

// Middleware rejects requests without a valid key with 401 in the envelope
// of the called endpoint. It is a no-op when keys are not required.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.required.Load() {
			next.ServeHTTP(w, r)
			return
		}

		protocol := proxy.ProtocolForPath(r.URL.Path)
		key := proxy.ExtractAPIKey(r)
		if key == "" {
			a.reject(ReasonMissingAPIKey)
			_ = proxy.WriteError(w, protocol, http.StatusUnauthorized,
				"Missing API key. Send it as 'Authorization: Bearer <key>' or 'x-api-key'.", types.CodeInvalidAPIKey)
			return
		}

		ok, err := a.Valid(r.Context(), key)
		if err != nil {
			slog.ErrorContext(r.Context(), "api key lookup failed", "error", err)
			_ = proxy.WriteError(w, protocol, http.StatusInternalServerError,
				"An internal error occurred. Please try again later.", types.CodeInternalError)
			return
		}
		if !ok {
			a.reject(ReasonInvalidAPIKey)
			_ = proxy.WriteError(w, protocol, http.StatusUnauthorized, "Invalid API key.", types.CodeInvalidAPIKey)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) reject(reason string) {
	if a.observer != nil {
		a.observer.ObserveRejection(reason)
	}
}

// AdminAuth guards the admin routes with a static bearer token. An empty
// token refuses every request.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				_ = proxy.WriteError(w, translate.ProtocolOpenAI, http.StatusForbidden, "Admin API is disabled: no admin token configured.", "")
				return
			}
			given := proxy.ExtractAPIKey(r)
			// Browsers cannot set headers on a websocket handshake.
			if given == "" && websocket.IsWebSocketUpgrade(r) {
				given = r.URL.Query().Get("token")
			}
			if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				_ = proxy.WriteError(w, translate.ProtocolOpenAI, http.StatusUnauthorized, "Invalid admin token.", types.CodeInvalidAPIKey)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
