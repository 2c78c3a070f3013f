package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kiro-hq/gateway/pkg/config"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewDisabled(t *testing.T) {
	tr, err := New(&config.TracingConfig{Enabled: false, ServiceName: "kirogate"}, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tr.Enabled() {
		t.Error("Enabled() = true")
	}

	ctx, span := tr.Start(context.Background(), "op")
	span.End()
	if TraceID(ctx) != "" {
		t.Errorf("noop span has trace id %q", TraceID(ctx))
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewNilConfig(t *testing.T) {
	if _, err := New(nil, "test"); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestNewEnabled(t *testing.T) {
	cfg := &config.TracingConfig{
		Enabled:     true,
		Sampler:     SamplerAlways,
		SampleRatio: 1.0,
		Endpoint:    "127.0.0.1:4317",
		ServiceName: "kirogate",
		Insecure:    true,
	}
	tr, err := New(cfg, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !tr.Enabled() {
		t.Error("Enabled() = false")
	}

	ctx, span := tr.Start(context.Background(), "op")
	if TraceID(ctx) == "" {
		t.Error("sampled span has no trace id")
	}
	span.End()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = tr.Shutdown(shutdownCtx)
}

func TestNewRejectsBadSampler(t *testing.T) {
	cfg := &config.TracingConfig{Enabled: true, Sampler: "sometimes", SampleRatio: 0.5, Endpoint: "127.0.0.1:4317"}
	if _, err := New(cfg, "test"); err == nil {
		t.Error("expected error for unknown sampler")
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 1.0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerParent, 0.1, false},
		{SamplerRatio, 1.5, true},
		{SamplerRatio, -0.1, true},
		{"bogus", 0.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			s, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
			}
			if !tt.wantErr && s == nil {
				t.Error("nil sampler")
			}
		})
	}
}

func TestSetStatus(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tracer := provider.Tracer("test")

	_, ok := tracer.Start(context.Background(), "ok")
	SetStatus(ok, nil)
	ok.End()

	_, failed := tracer.Start(context.Background(), "failed")
	SetStatus(failed, errors.New("upstream 503"))
	failed.End()

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d", len(spans))
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("ok status = %v", spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "upstream 503" {
		t.Errorf("failed status = %v", spans[1].Status())
	}
	if len(spans[1].Events()) != 1 {
		t.Errorf("error events = %d, want 1", len(spans[1].Events()))
	}
}

func TestHTTPMiddlewareEchoesTraceID(t *testing.T) {
	if _, err := New(&config.TracingConfig{ServiceName: "kirogate"}, "test"); err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var seen string
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	const want = "4bf92f3577b34da6a3ce929d0e0e4736"
	if seen != want {
		t.Errorf("handler trace id = %q, want %q", seen, want)
	}
	if got := rr.Header().Get(TraceIDHeader); got != want {
		t.Errorf("%s = %q, want %q", TraceIDHeader, got, want)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rr.Header().Get(TraceIDHeader); got != "" {
		t.Errorf("unexpected %s = %q", TraceIDHeader, got)
	}
}

func TestExtract(t *testing.T) {
	if _, err := New(&config.TracingConfig{ServiceName: "kirogate"}, "test"); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	in := http.Header{}
	in.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	if got := TraceID(Extract(context.Background(), in)); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("TraceID() = %q", got)
	}
	if got := TraceID(Extract(context.Background(), http.Header{})); got != "" {
		t.Errorf("TraceID() without traceparent = %q, want empty", got)
	}
}
