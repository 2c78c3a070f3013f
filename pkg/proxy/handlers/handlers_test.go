package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"kiro-hq/gateway/pkg/eventstream"
	"kiro-hq/gateway/pkg/gateway"
	"kiro-hq/gateway/pkg/models"
	"kiro-hq/gateway/pkg/pool"
	"kiro-hq/gateway/pkg/translate"
)

// fakeGateway replays events into whatever responder the handler supplies.
type fakeGateway struct {
	prepareErr error
	streamErr  error
	events     []eventstream.Event

	inbound *gateway.Inbound
}

func (f *fakeGateway) Prepare(ctx context.Context, in *gateway.Inbound) (*gateway.Call, error) {
	f.inbound = in
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	return &gateway.Call{
		ID:      "call-1",
		Inbound: in,
		Account: pool.Record{ID: "acct-1"},
		Meta:    translate.Meta{Model: in.Model, MaxTokens: 200000},
	}, nil
}

func (f *fakeGateway) Complete(ctx context.Context, call *gateway.Call, c translate.Collector) ([]byte, error) {
	for _, ev := range f.events {
		if err := c.Handle(ev); err != nil {
			return nil, err
		}
	}
	return c.Body()
}

func (f *fakeGateway) Stream(ctx context.Context, call *gateway.Call, s translate.Stream) error {
	if f.streamErr != nil {
		return f.streamErr
	}
	if err := s.Begin(); err != nil {
		return err
	}
	for _, ev := range f.events {
		if err := s.Handle(ev); err != nil {
			return err
		}
	}
	return nil
}

func helloEvents() []eventstream.Event {
	return []eventstream.Event{
		eventstream.Text("hel"),
		eventstream.Text("lo"),
		eventstream.Usage(10, 2),
		eventstream.Complete(),
	}
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer sk-test-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOpenAIHandlerComplete(t *testing.T) {
	gw := &fakeGateway{events: helloEvents()}
	h := NewOpenAIHandler(gw, 1<<20)

	rec := post(h, "/v1/chat/completions", `{"model":"claude-sonnet-4","messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if got := gjson.Get(body, "object").String(); got != "chat.completion" {
		t.Errorf("object = %q", got)
	}
	if got := gjson.Get(body, "choices.0.message.content").String(); got != "hello" {
		t.Errorf("content = %q, want hello", got)
	}
	if got := gjson.Get(body, "model").String(); got != "claude-sonnet-4" {
		t.Errorf("model = %q", got)
	}

	if gw.inbound == nil {
		t.Fatal("Prepare was not called")
	}
	if gw.inbound.APIKey != "sk-test-key" || gw.inbound.Path != "/v1/chat/completions" {
		t.Errorf("inbound metadata = key %q path %q", gw.inbound.APIKey, gw.inbound.Path)
	}
	if gw.inbound.Protocol != translate.ProtocolOpenAI {
		t.Errorf("protocol = %q", gw.inbound.Protocol)
	}
}

func TestOpenAIHandlerStream(t *testing.T) {
	h := NewOpenAIHandler(&fakeGateway{events: helloEvents()}, 1<<20)

	rec := post(h, "/v1/chat/completions", `{"model":"claude-sonnet-4","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasSuffix(strings.TrimSpace(rec.Body.String()), "data: [DONE]") {
		t.Errorf("stream does not end with [DONE]: %s", rec.Body.String())
	}
	if !rec.Flushed {
		t.Error("stream was not flushed")
	}
}

func TestAnthropicHandlerComplete(t *testing.T) {
	gw := &fakeGateway{events: helloEvents()}
	h := NewAnthropicHandler(gw, 1<<20)

	rec := post(h, "/v1/messages", `{"model":"claude-sonnet-4","max_tokens":64,"messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if got := gjson.Get(body, "type").String(); got != "message" {
		t.Errorf("type = %q", got)
	}
	if got := gjson.Get(body, "content.0.text").String(); got != "hello" {
		t.Errorf("text = %q, want hello", got)
	}
	if gw.inbound.Protocol != translate.ProtocolAnthropic {
		t.Errorf("protocol = %q", gw.inbound.Protocol)
	}
}

func TestAnthropicHandlerStream(t *testing.T) {
	h := NewAnthropicHandler(&fakeGateway{events: helloEvents()}, 1<<20)

	rec := post(h, "/v1/messages", `{"model":"claude-sonnet-4","stream":true,"max_tokens":64,"messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: message_start") {
		t.Errorf("stream does not open with message_start: %s", body)
	}
	if !strings.Contains(body, "event: message_stop") {
		t.Errorf("stream has no message_stop: %s", body)
	}
}

func TestChatHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.Handler
		path       string
		body       string
		wantStatus int
		wantPath   string
		wantValue  string
	}{
		{
			name:       "openai invalid json",
			handler:    NewOpenAIHandler(&fakeGateway{}, 1<<20),
			path:       "/v1/chat/completions",
			body:       `{"model":`,
			wantStatus: http.StatusBadRequest,
			wantPath:   "error.type",
			wantValue:  "invalid_request_error",
		},
		{
			name:       "openai missing model",
			handler:    NewOpenAIHandler(&fakeGateway{}, 1<<20),
			path:       "/v1/chat/completions",
			body:       `{"messages":[{"role":"user","content":"hi"}]}`,
			wantStatus: http.StatusBadRequest,
			wantPath:   "error.type",
			wantValue:  "invalid_request_error",
		},
		{
			name:       "openai body too large",
			handler:    NewOpenAIHandler(&fakeGateway{}, 16),
			path:       "/v1/chat/completions",
			body:       `{"model":"claude-sonnet-4","messages":[]}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantPath:   "error.code",
			wantValue:  "request_too_large",
		},
		{
			name:       "anthropic no account",
			handler:    NewAnthropicHandler(&fakeGateway{prepareErr: pool.ErrNoAvailable}, 1<<20),
			path:       "/v1/messages",
			body:       `{"model":"claude-sonnet-4","max_tokens":64,"messages":[{"role":"user","content":"hi"}]}`,
			wantStatus: http.StatusServiceUnavailable,
			wantPath:   "error.type",
			wantValue:  "overloaded_error",
		},
		{
			name:       "stream fails before first byte",
			handler:    NewOpenAIHandler(&fakeGateway{streamErr: &translate.EventError{Message: "boom"}}, 1<<20),
			path:       "/v1/chat/completions",
			body:       `{"model":"claude-sonnet-4","stream":true,"messages":[{"role":"user","content":"hi"}]}`,
			wantStatus: http.StatusBadGateway,
			wantPath:   "error.message",
			wantValue:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(tt.handler, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := gjson.Get(rec.Body.String(), tt.wantPath).String(); got != tt.wantValue {
				t.Errorf("%s = %q, want %q", tt.wantPath, got, tt.wantValue)
			}
		})
	}
}

func TestChatHandlerMethodNotAllowed(t *testing.T) {
	h := NewOpenAIHandler(&fakeGateway{}, 1<<20)
	req := httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow = %q", allow)
	}
}

type staticModels []models.ModelInfo

func (s staticModels) ListModels() []models.ModelInfo { return s }

func TestModelsHandler(t *testing.T) {
	h := NewModelsHandler(staticModels{
		{ID: "claude-sonnet-4", DisplayName: "Claude Sonnet 4", MaxTokens: 200000, OwnedBy: "anthropic", Enabled: true},
		{ID: "auto", OwnedBy: "kiro", Enabled: true},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if gjson.Get(body, "object").String() != "list" {
		t.Errorf("object = %q", gjson.Get(body, "object").String())
	}
	data := gjson.Get(body, "data").Array()
	if len(data) != 2 {
		t.Fatalf("len(data) = %d, want 2", len(data))
	}
	first := data[0]
	if first.Get("id").String() != "claude-sonnet-4" || first.Get("object").String() != "model" ||
		first.Get("owned_by").String() != "anthropic" || first.Get("created").Int() == 0 {
		t.Errorf("data[0] = %s", first.Raw)
	}
}
