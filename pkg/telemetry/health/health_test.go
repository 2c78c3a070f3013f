package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

type fakePool struct{ available int }

func (f fakePool) AvailableCount() int { return f.available }

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "no checks",
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"pool":     PoolCheck(fakePool{available: 2}),
				"database": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "pool exhausted",
			checks: map[string]CheckFunc{
				"pool":     PoolCheck(fakePool{}),
				"database": func(context.Context) error { return nil },
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"pool"},
		},
		{
			name: "database down",
			checks: map[string]CheckFunc{
				"database": func(context.Context) error { return errors.New("database is locked") },
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"database"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, check := range tt.checks {
				c.RegisterCheck(name, check)
			}

			got := c.CheckReadiness(context.Background())
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
			if len(got.Checks) != len(tt.checks) {
				t.Errorf("len(Checks) = %d, want %d", len(got.Checks), len(tt.checks))
			}
			for _, name := range tt.wantFailed {
				if got.Checks[name].Status != StatusUnhealthy {
					t.Errorf("check %q = %+v, want unhealthy", name, got.Checks[name])
				}
			}
		})
	}
}

func TestCheckReadinessTimeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
		}
		return nil
	})

	got := c.CheckReadiness(context.Background())
	if got.Checks["slow"].Message != "health check timeout" {
		t.Errorf("slow check = %+v", got.Checks["slow"])
	}
	if got.Status != StatusDegraded {
		t.Errorf("Status = %q", got.Status)
	}
}

func TestListChecks(t *testing.T) {
	c := New(0)
	c.RegisterCheck("pool", PoolCheck(fakePool{}))
	c.RegisterCheck("database", func(context.Context) error { return nil })
	c.RegisterCheck("pool", PoolCheck(fakePool{available: 1}))

	if got, want := c.ListChecks(), []string{"database", "pool"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListChecks() = %v, want %v", got, want)
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("pool", PoolCheck(fakePool{}))

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		method   string
		wantCode int
		wantBody bool
	}{
		{"liveness", c.LivenessHandler(), http.MethodGet, http.StatusOK, true},
		{"liveness head", c.LivenessHandler(), http.MethodHead, http.StatusOK, false},
		{"liveness post", c.LivenessHandler(), http.MethodPost, http.StatusMethodNotAllowed, true},
		{"readiness", c.ReadinessHandler(), http.MethodGet, http.StatusServiceUnavailable, true},
		{"version", VersionHandler("1.2.3", "abc", "now"), http.MethodGet, http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.handler(rr, httptest.NewRequest(tt.method, "/", nil))
			if rr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rr.Code, tt.wantCode)
			}
			if (rr.Body.Len() > 0) != tt.wantBody {
				t.Errorf("body = %q", rr.Body.String())
			}
		})
	}
}

func TestReadinessHandlerBody(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("pool", PoolCheck(fakePool{available: 1}))

	rr := httptest.NewRecorder()
	c.ReadinessHandler()(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("code = %d", rr.Code)
	}

	var got HealthStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != StatusReady || got.Checks["pool"].Status != StatusOK {
		t.Errorf("body = %+v", got)
	}
}
