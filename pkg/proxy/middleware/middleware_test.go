package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kiro-hq/gateway/pkg/config"
	"kiro-hq/gateway/pkg/limits/ratelimit"
	"kiro-hq/gateway/pkg/telemetry/logging"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
})

type envelope struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return env
}

type rejections []string

func (r *rejections) ObserveRejection(reason string) { *r = append(*r, reason) }

type fakeStore map[string]bool

func (f fakeStore) LookupAPIKey(ctx context.Context, key string) (bool, error) {
	if key == "sk-broken" {
		return false, errors.New("database is locked")
	}
	return f[key], nil
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetRequestID(r.Context())
	}))

	t.Run("generates", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if len(seen) != 36 || rr.Header().Get("X-Request-ID") != seen {
			t.Errorf("context id = %q, header = %q", seen, rr.Header().Get("X-Request-ID"))
		}
	})

	t.Run("keeps client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "client-123")
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen != "client-123" {
			t.Errorf("context id = %q", seen)
		}
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("a", 500))
		h.ServeHTTP(httptest.NewRecorder(), req)
		if len(seen) != 36 {
			t.Errorf("context id = %q", seen)
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := RecoveryMiddleware(panicking)

	tests := []struct {
		path     string
		wantType string
	}{
		{"/v1/chat/completions", "server_error"},
		{"/v1/messages", "api_error"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, tt.path, nil))

			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d", rr.Code)
			}
			env := decode(t, rr)
			if env.Error.Type != tt.wantType {
				t.Errorf("error.type = %q, want %q", env.Error.Type, tt.wantType)
			}
			if strings.Contains(rr.Body.String(), "boom") {
				t.Error("panic value leaked")
			}
		})
	}

	t.Run("passes through", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RecoveryMiddleware(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
			t.Errorf("got %d %q", rr.Code, rr.Body.String())
		}
	})
}

func TestLoggingMiddlewareKeepsFlusher(t *testing.T) {
	var flushed bool
	h := LoggingMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, flushed = w.(http.Flusher)
		if err := http.NewResponseController(w).Flush(); err != nil {
			t.Errorf("Flush() error = %v", err)
		}
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !flushed || !rr.Flushed {
		t.Errorf("flusher = %v, recorder flushed = %v", flushed, rr.Flushed)
	}
	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	cfg := &config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "X-Api-Key"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         600,
	}

	tests := []struct {
		name       string
		cfg        *config.CORSConfig
		method     string
		origin     string
		preflight  bool
		wantCode   int
		wantOrigin string
	}{
		{"allowed origin", cfg, http.MethodPost, "https://app.example.com", false, 200, "https://app.example.com"},
		{"other origin", cfg, http.MethodPost, "https://evil.example.com", false, 200, ""},
		{"preflight", cfg, http.MethodOptions, "https://app.example.com", true, 204, "https://app.example.com"},
		{"wildcard", &config.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}}, http.MethodGet, "https://x.dev", false, 200, "*"},
		{"disabled", &config.CORSConfig{}, http.MethodGet, "https://x.dev", false, 200, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/models", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}
			rr := httptest.NewRecorder()
			CORSMiddleware(tt.cfg)(okHandler).ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.preflight && rr.Header().Get("Access-Control-Max-Age") != "600" {
				t.Errorf("Max-Age = %q", rr.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}

func TestAuthenticator(t *testing.T) {
	var rejected rejections
	auth := NewAuthenticator(true, []string{"sk-config"}, fakeStore{"sk-db": true}, &rejected)
	h := auth.Middleware(okHandler)

	tests := []struct {
		name     string
		path     string
		headers  map[string]string
		wantCode int
		wantType string
	}{
		{"config key bearer", "/v1/chat/completions", map[string]string{"Authorization": "Bearer sk-config"}, 200, ""},
		{"db key x-api-key", "/v1/messages", map[string]string{"x-api-key": "sk-db"}, 200, ""},
		{"missing openai", "/v1/chat/completions", nil, 401, "authentication_error"},
		{"unknown anthropic", "/v1/messages", map[string]string{"x-api-key": "sk-nope"}, 401, "authentication_error"},
		{"store failure", "/v1/messages", map[string]string{"x-api-key": "sk-broken"}, 500, "api_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantType != "" {
				env := decode(t, rr)
				if env.Error.Type != tt.wantType {
					t.Errorf("error.type = %q, want %q", env.Error.Type, tt.wantType)
				}
				if strings.HasSuffix(tt.path, "/messages") && env.Type != "error" {
					t.Errorf("anthropic envelope type = %q", env.Type)
				}
			}
		})
	}

	want := []string{ReasonMissingAPIKey, ReasonInvalidAPIKey}
	if len(rejected) != len(want) || rejected[0] != want[0] || rejected[1] != want[1] {
		t.Errorf("rejections = %v, want %v", rejected, want)
	}
}

func TestAuthenticatorUpdate(t *testing.T) {
	auth := NewAuthenticator(true, []string{"sk-old"}, nil, nil)

	auth.Update(true, []string{"sk-new"})
	if ok, _ := auth.Valid(context.Background(), "sk-old"); ok {
		t.Error("old key still valid")
	}
	if ok, _ := auth.Valid(context.Background(), "sk-new"); !ok {
		t.Error("new key not valid")
	}

	auth.Update(false, nil)
	rr := httptest.NewRecorder()
	auth.Middleware(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/messages", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status with keys not required = %d", rr.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		given    string
		wantCode int
	}{
		{"valid", "admin-secret", "admin-secret", 200},
		{"wrong", "admin-secret", "nope", 401},
		{"missing", "admin-secret", "", 401},
		{"no token configured", "", "anything", 403},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
			if tt.given != "" {
				req.Header.Set("Authorization", "Bearer "+tt.given)
			}
			rr := httptest.NewRecorder()
			AdminAuth(tt.token)(okHandler).ServeHTTP(rr, req)
			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	var rejected rejections
	h := RateLimitMiddleware(ratelimit.New(2, time.Minute), &rejected)(okHandler)

	send := func(key, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if key != "" {
			req.Header.Set("x-api-key", key)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	send("sk-a", "/v1/messages")
	if rr := send("sk-a", "/v1/messages"); rr.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining = %q", rr.Header().Get("X-RateLimit-Remaining"))
	}

	rr := send("sk-a", "/v1/messages")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if env := decode(t, rr); env.Error.Type != "rate_limit_error" {
		t.Errorf("error.type = %q", env.Error.Type)
	}

	if rr := send("sk-b", "/v1/chat/completions"); rr.Code != http.StatusOK {
		t.Errorf("other key status = %d", rr.Code)
	}
	if rr := send("", "/v1/chat/completions"); rr.Code != http.StatusOK {
		t.Errorf("ip keyed status = %d", rr.Code)
	}
	if len(rejected) != 1 || rejected[0] != ReasonRateLimited {
		t.Errorf("rejections = %v", rejected)
	}
}

func TestBodyLimitMiddleware(t *testing.T) {
	var readErr error
	h := BodyLimitMiddleware(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("12345")))
	var tooLarge *http.MaxBytesError
	if !errors.As(readErr, &tooLarge) {
		t.Errorf("read error = %v, want MaxBytesError", readErr)
	}
}
