package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kiro-hq/gateway/pkg/config"
	"kiro-hq/gateway/pkg/pool"
	"kiro-hq/gateway/pkg/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:                true,
		Namespace:              "test",
		Subsystem:              "gw",
		RequestDurationBuckets: []float64{0.1, 0.5, 1.0, 5.0},
	}
}

func TestObserveRequest(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.ObserveRequest("anthropic", "claude-sonnet-4.5", "success", 200, 1200*time.Millisecond)
	c.ObserveRequest("anthropic", "claude-sonnet-4.5", "success", 200, 300*time.Millisecond)
	c.ObserveRequest("openai", "gpt-4", "upstream", 429, 10*time.Millisecond)

	tests := []struct {
		labels []string
		want   float64
	}{
		{[]string{"anthropic", "claude-sonnet-4.5", "success", "200"}, 2},
		{[]string{"openai", "gpt-4", "upstream", "429"}, 1},
		{[]string{"openai", "gpt-4", "success", "200"}, 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(c.requests.requestsTotal.WithLabelValues(tt.labels...))
		if got != tt.want {
			t.Errorf("requests_total%v = %v, want %v", tt.labels, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(c.requests.requestDuration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestObserveUsage(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.ObserveUsage("openai", "m", 100, 20, 0.25)
	c.ObserveUsage("openai", "m", 50, 0, 0)

	if got := testutil.ToFloat64(c.requests.tokensTotal.WithLabelValues("openai", "m", "input")); got != 150 {
		t.Errorf("input tokens = %v", got)
	}
	if got := testutil.ToFloat64(c.requests.tokensTotal.WithLabelValues("openai", "m", "output")); got != 20 {
		t.Errorf("output tokens = %v", got)
	}
	if got := testutil.ToFloat64(c.requests.creditsTotal.WithLabelValues("openai", "m")); got != 0.25 {
		t.Errorf("credits = %v", got)
	}
}

func TestObserveAttemptAndRefresh(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.ObserveAttempt("https://a/generateAssistantResponse", 429)
	c.ObserveAttempt("https://a/generateAssistantResponse", 0)
	c.ObserveRefresh("social", nil)
	c.ObserveRefresh("idc", errors.New("invalid_grant"))
	c.ObserveRejection("rate_limited")

	checks := []struct {
		name string
		got  float64
	}{
		{"429 attempt", testutil.ToFloat64(c.upstream.attempts.WithLabelValues("https://a/generateAssistantResponse", "429"))},
		{"transport attempt", testutil.ToFloat64(c.upstream.attempts.WithLabelValues("https://a/generateAssistantResponse", "transport_error"))},
		{"social refresh", testutil.ToFloat64(c.upstream.refreshes.WithLabelValues("social", "success"))},
		{"idc refresh", testutil.ToFloat64(c.upstream.refreshes.WithLabelValues("idc", "failure"))},
		{"rejection", testutil.ToFloat64(c.requests.rejectedTotal.WithLabelValues("rate_limited"))},
	}
	for _, ch := range checks {
		if ch.got != 1 {
			t.Errorf("%s = %v, want 1", ch.name, ch.got)
		}
	}
}

func TestDisabledCollectorRecordsNothing(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, prometheus.NewRegistry())

	c.ObserveRequest("openai", "m", "success", 200, time.Second)
	c.ObserveAttempt("e", 200)

	if n := testutil.CollectAndCount(c.requests.requestsTotal); n != 0 {
		t.Errorf("series = %d, want 0", n)
	}
}

func TestModelCardinalityLimit(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.models = NewCardinalityLimiter(2)

	for i := 0; i < 5; i++ {
		c.ObserveRequest("openai", fmt.Sprintf("model-%d", i), "success", 200, time.Millisecond)
	}

	if got := testutil.ToFloat64(c.requests.requestsTotal.WithLabelValues("openai", OtherLabel, "success", "200")); got != 3 {
		t.Errorf("other = %v, want 3", got)
	}
	if c.models.Count() != 2 {
		t.Errorf("Count() = %d", c.models.Count())
	}
}

type fakeRecorder struct{ written, dropped, failed uint64 }

func (f fakeRecorder) Stats() (uint64, uint64, uint64) { return f.written, f.dropped, f.failed }

func TestStateCollector(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	accounts := pool.New(storage.NewMemory(), pool.Options{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := accounts.Add(ctx, fmt.Sprintf("acct-%d", i), `{"refreshToken":"rt"}`, "social"); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	rec := accounts.List()[0]
	if err := accounts.SetStatus(ctx, rec.ID, pool.StatusDisabled); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	accounts.ReportSuccess(ctx, accounts.List()[1].ID, 10, 5, 1.5)

	if err := c.RegisterState(accounts, fakeRecorder{written: 7, dropped: 2}); err != nil {
		t.Fatalf("RegisterState() error = %v", err)
	}

	expected := `
# HELP test_gw_pool_accounts Accounts in the credential pool by state
# TYPE test_gw_pool_accounts gauge
test_gw_pool_accounts{state="active"} 2
test_gw_pool_accounts{state="cooldown"} 0
test_gw_pool_accounts{state="disabled"} 1
test_gw_pool_accounts{state="invalid"} 0
# HELP test_gw_audit_traces_total Audit traces by write result
# TYPE test_gw_audit_traces_total counter
test_gw_audit_traces_total{result="dropped"} 2
test_gw_audit_traces_total{result="failed"} 0
test_gw_audit_traces_total{result="written"} 7
# HELP test_gw_pool_credits Credits consumed by pooled accounts since they were added
# TYPE test_gw_pool_credits gauge
test_gw_pool_credits 1.5
`
	err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected),
		"test_gw_pool_accounts", "test_gw_audit_traces_total", "test_gw_pool_credits")
	if err != nil {
		t.Error(err)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	c := NewCollector(testConfig(), nil)
	c.ObserveRequest("anthropic", "m", "success", 200, time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(body), `test_gw_requests_total{model="m",outcome="success",protocol="anthropic",status="200"} 1`) {
		t.Errorf("body missing request counter:\n%s", body)
	}
}

func BenchmarkObserveRequest(b *testing.B) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.ObserveRequest("openai", "claude-sonnet-4.5", "success", 200, time.Second)
		}
	})
}
