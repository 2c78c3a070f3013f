package types

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func userMessage(text string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text}
}

func TestValidateChatRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       openai.ChatCompletionRequest
		wantField string
	}{
		{
			name: "valid",
			req:  openai.ChatCompletionRequest{Model: "claude-sonnet-4.5", Messages: []openai.ChatCompletionMessage{userMessage("hi")}},
		},
		{
			name: "developer role accepted",
			req: openai.ChatCompletionRequest{Model: "m", Messages: []openai.ChatCompletionMessage{
				{Role: "developer", Content: "be brief"}, userMessage("hi"),
			}},
		},
		{
			name:      "missing model",
			req:       openai.ChatCompletionRequest{Messages: []openai.ChatCompletionMessage{userMessage("hi")}},
			wantField: "model",
		},
		{
			name:      "no messages",
			req:       openai.ChatCompletionRequest{Model: "m"},
			wantField: "messages",
		},
		{
			name:      "temperature out of range",
			req:       openai.ChatCompletionRequest{Model: "m", Temperature: 2.5, Messages: []openai.ChatCompletionMessage{userMessage("hi")}},
			wantField: "temperature",
		},
		{
			name:      "top_p out of range",
			req:       openai.ChatCompletionRequest{Model: "m", TopP: 1.5, Messages: []openai.ChatCompletionMessage{userMessage("hi")}},
			wantField: "top_p",
		},
		{
			name:      "negative max tokens",
			req:       openai.ChatCompletionRequest{Model: "m", MaxTokens: -1, Messages: []openai.ChatCompletionMessage{userMessage("hi")}},
			wantField: "max_tokens",
		},
		{
			name:      "multiple choices",
			req:       openai.ChatCompletionRequest{Model: "m", N: 2, Messages: []openai.ChatCompletionMessage{userMessage("hi")}},
			wantField: "n",
		},
		{
			name:      "empty role",
			req:       openai.ChatCompletionRequest{Model: "m", Messages: []openai.ChatCompletionMessage{{Content: "hi"}}},
			wantField: "messages[0].role",
		},
		{
			name:      "unknown role",
			req:       openai.ChatCompletionRequest{Model: "m", Messages: []openai.ChatCompletionMessage{userMessage("hi"), {Role: "robot", Content: "x"}}},
			wantField: "messages[1].role",
		},
		{
			name: "tool message without id",
			req: openai.ChatCompletionRequest{Model: "m", Messages: []openai.ChatCompletionMessage{
				userMessage("hi"), {Role: openai.ChatMessageRoleTool, Content: "42"},
			}},
			wantField: "messages[1].tool_call_id",
		},
		{
			name: "function tool without name",
			req: openai.ChatCompletionRequest{
				Model:    "m",
				Messages: []openai.ChatCompletionMessage{userMessage("hi")},
				Tools:    []openai.Tool{{Type: openai.ToolTypeFunction, Function: &openai.FunctionDefinition{}}},
			},
			wantField: "tools[0].function.name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChatRequest(&tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateChatRequest() error = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateChatRequest() error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestErrorTypes(t *testing.T) {
	tests := []struct {
		status    int
		openai    string
		anthropic string
	}{
		{http.StatusBadRequest, ErrorTypeInvalidRequest, AnthropicInvalidRequest},
		{http.StatusRequestEntityTooLarge, ErrorTypeInvalidRequest, AnthropicInvalidRequest},
		{http.StatusUnauthorized, ErrorTypeAuthentication, AnthropicAuthentication},
		{http.StatusForbidden, ErrorTypePermissionDenied, AnthropicPermission},
		{http.StatusNotFound, ErrorTypeNotFound, AnthropicNotFound},
		{http.StatusTooManyRequests, ErrorTypeRateLimitExceeded, AnthropicRateLimit},
		{http.StatusBadGateway, ErrorTypeBadGateway, AnthropicAPIError},
		{http.StatusServiceUnavailable, ErrorTypeServiceUnavailable, AnthropicOverloaded},
		{http.StatusGatewayTimeout, ErrorTypeGatewayTimeout, AnthropicAPIError},
		{http.StatusInternalServerError, ErrorTypeServerError, AnthropicAPIError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := OpenAIErrorType(tt.status); got != tt.openai {
				t.Errorf("OpenAIErrorType(%d) = %q, want %q", tt.status, got, tt.openai)
			}
			if got := AnthropicErrorType(tt.status); got != tt.anthropic {
				t.Errorf("AnthropicErrorType(%d) = %q, want %q", tt.status, got, tt.anthropic)
			}
			if tt.status == http.StatusRequestEntityTooLarge {
				return
			}
			detail := NewOpenAIError(tt.status, "boom", "").Error
			if got := detail.HTTPStatusCode(); got != tt.status {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestAnthropicErrorEnvelope(t *testing.T) {
	data, err := json.Marshal(NewAnthropicError(http.StatusServiceUnavailable, "no accounts"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"type":"error","error":{"type":"overloaded_error","message":"no accounts"}}`
	if string(data) != want {
		t.Errorf("envelope = %s, want %s", data, want)
	}
}

func TestContentBlockMarshal(t *testing.T) {
	tests := []struct {
		name  string
		block ContentBlock
		want  string
	}{
		{
			name:  "text",
			block: ContentBlock{Type: BlockText, Text: "hello", Name: "ignored"},
			want:  `{"type":"text","text":"hello"}`,
		},
		{
			name:  "thinking",
			block: ContentBlock{Type: BlockThinking, Thinking: "hmm", Signature: "sig"},
			want:  `{"type":"thinking","thinking":"hmm","signature":"sig"}`,
		},
		{
			name:  "tool use",
			block: ContentBlock{Type: BlockToolUse, ID: "toolu_1", Name: "get_weather", Input: json.RawMessage(`{"city":"Lisbon"}`)},
			want:  `{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"Lisbon"}}`,
		},
		{
			name:  "tool use without input",
			block: ContentBlock{Type: BlockToolUse, ID: "toolu_2", Name: "now"},
			want:  `{"type":"tool_use","id":"toolu_2","name":"now","input":{}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.block)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal() = %s, want %s", data, tt.want)
			}
		})
	}
}
