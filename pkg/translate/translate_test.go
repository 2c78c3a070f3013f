package translate

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
)

func mustOpenAI(t *testing.T, body string) *openai.ChatCompletionRequest {
	t.Helper()
	req, err := ParseOpenAI([]byte(body))
	if err != nil {
		t.Fatalf("ParseOpenAI() error = %v", err)
	}
	return req
}

func mustAnthropic(t *testing.T, body string) *AnthropicRequest {
	t.Helper()
	req, err := ParseAnthropic([]byte(body))
	if err != nil {
		t.Fatalf("ParseAnthropic() error = %v", err)
	}
	return req
}

func marshalPayload(t *testing.T, tr *Translation) gjson.Result {
	t.Helper()
	data, err := tr.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return gjson.ParseBytes(data)
}

func TestTranslateOpenAISimple(t *testing.T) {
	req := mustOpenAI(t, `{"model":"claude-sonnet-4","messages":[{"role":"user","content":"hi"}]}`)
	tr, err := TranslateOpenAI(req, Options{ModelID: "CLAUDE_SONNET_4_20250514_V1_0"})
	if err != nil {
		t.Fatalf("TranslateOpenAI() error = %v", err)
	}
	doc := marshalPayload(t, tr)

	if got := doc.Get("conversationState.history.#").Int(); got != 0 {
		t.Errorf("history length = %d, want 0", got)
	}
	cur := doc.Get("conversationState.currentMessage.userInputMessage")
	if cur.Get("content").String() != "hi" {
		t.Errorf("content = %q, want hi", cur.Get("content").String())
	}
	if cur.Get("modelId").String() != "CLAUDE_SONNET_4_20250514_V1_0" {
		t.Errorf("modelId = %q", cur.Get("modelId").String())
	}
	if cur.Get("origin").String() != OriginAIEditor {
		t.Errorf("origin = %q", cur.Get("origin").String())
	}
	if doc.Get("conversationState.chatTriggerType").String() != TriggerManual {
		t.Errorf("chatTriggerType = %q", doc.Get("conversationState.chatTriggerType").String())
	}
	if doc.Get("profileArn").Exists() {
		t.Error("profileArn should be omitted when empty")
	}
	if cur.Get("userInputMessageContext").Exists() {
		t.Error("context should be omitted without tools or results")
	}
}

func TestTranslateOpenAISystemAndHistory(t *testing.T) {
	req := mustOpenAI(t, `{"model":"m","messages":[
		{"role":"system","content":"be brief"},
		{"role":"developer","content":"use go"},
		{"role":"user","content":"q1"},
		{"role":"assistant","content":"a1"},
		{"role":"user","content":"q2"}
	]}`)
	tr, err := TranslateOpenAI(req, Options{ModelID: "M", ProfileARN: "arn:aws:x"})
	if err != nil {
		t.Fatalf("TranslateOpenAI() error = %v", err)
	}
	doc := marshalPayload(t, tr)
	h := doc.Get("conversationState.history").Array()
	if len(h) != 4 {
		t.Fatalf("history length = %d, want 4", len(h))
	}
	if got := h[0].Get("userInputMessage.content").String(); got != "be brief\nuse go" {
		t.Errorf("system turn = %q", got)
	}
	if got := h[1].Get("assistantResponseMessage.content").String(); got != SystemAcknowledgment {
		t.Errorf("system ack = %q", got)
	}
	if got := h[2].Get("userInputMessage.content").String(); got != "q1" {
		t.Errorf("history user = %q", got)
	}
	if got := h[3].Get("assistantResponseMessage.content").String(); got != "a1" {
		t.Errorf("history assistant = %q", got)
	}
	if got := doc.Get("conversationState.currentMessage.userInputMessage.content").String(); got != "q2" {
		t.Errorf("current = %q", got)
	}
	if got := doc.Get("profileArn").String(); got != "arn:aws:x" {
		t.Errorf("profileArn = %q", got)
	}
}

func TestTranslateOpenAIThinkingDirective(t *testing.T) {
	req := mustOpenAI(t, `{"model":"m","messages":[{"role":"user","content":"hi"}]}`)
	tr, err := TranslateOpenAI(req, Options{ModelID: "M", Thinking: true, ThinkingBudget: 2000})
	if err != nil {
		t.Fatalf("TranslateOpenAI() error = %v", err)
	}
	doc := marshalPayload(t, tr)
	sys := doc.Get("conversationState.history.0.userInputMessage.content").String()
	if !strings.HasPrefix(sys, "<thinking_mode>enabled</thinking_mode>") {
		t.Errorf("system prompt = %q, want thinking directive", sys)
	}
	if !strings.Contains(sys, "<max_thinking_length>2000</max_thinking_length>") {
		t.Errorf("system prompt = %q, want budget 2000", sys)
	}
}

func TestTranslateOpenAIToolRoundTrip(t *testing.T) {
	req := mustOpenAI(t, `{"model":"m",
		"tools":[{"type":"function","function":{"name":"get-weather","description":"weather","parameters":{"type":"object","properties":{"city":{"type":"string"}}}}}],
		"messages":[
			{"role":"user","content":"weather in NYC?"},
			{"role":"assistant","content":"","tool_calls":[{"id":"t1","type":"function","function":{"name":"get-weather","arguments":"{\"city\":\"NYC\"}"}}]},
			{"role":"tool","tool_call_id":"t1","content":"sunny"}
		]}`)
	tr, err := TranslateOpenAI(req, Options{ModelID: "M"})
	if err != nil {
		t.Fatalf("TranslateOpenAI() error = %v", err)
	}
	doc := marshalPayload(t, tr)

	h := doc.Get("conversationState.history").Array()
	if len(h) != 2 {
		t.Fatalf("history length = %d, want 2", len(h))
	}
	asst := h[1].Get("assistantResponseMessage")
	if asst.Get("content").String() != OrphanAcknowledgment {
		t.Errorf("tool-only assistant content = %q", asst.Get("content").String())
	}
	if got := asst.Get("toolUses.0.name").String(); got != "get_weather" {
		t.Errorf("tool use name = %q, want get_weather", got)
	}
	if got := asst.Get("toolUses.0.input.city").String(); got != "NYC" {
		t.Errorf("tool use input city = %q", got)
	}

	ctx := doc.Get("conversationState.currentMessage.userInputMessage.userInputMessageContext")
	if got := ctx.Get("tools.0.toolSpecification.name").String(); got != "get_weather" {
		t.Errorf("tool name = %q", got)
	}
	if got := ctx.Get("tools.0.toolSpecification.inputSchema.json.type").String(); got != "object" {
		t.Errorf("schema type = %q", got)
	}
	if got := ctx.Get("toolResults.0.toolUseId").String(); got != "t1" {
		t.Errorf("tool result id = %q", got)
	}
	if got := ctx.Get("toolResults.0.status").String(); got != ToolStatusSuccess {
		t.Errorf("tool result status = %q", got)
	}
	if got := ctx.Get("toolResults.0.content.0.text").String(); got != "sunny" {
		t.Errorf("tool result text = %q", got)
	}
	if got := doc.Get("conversationState.currentMessage.userInputMessage.content").String(); got != ContinuePrompt {
		t.Errorf("current content = %q, want %q", got, ContinuePrompt)
	}

	if orig := tr.Tools.Reverse()["get_weather"]; orig != "get-weather" {
		t.Errorf("reverse name = %q, want get-weather", orig)
	}
}

func TestTranslateOpenAIEdgeCases(t *testing.T) {
	t.Run("system only", func(t *testing.T) {
		req := mustOpenAI(t, `{"model":"m","messages":[{"role":"system","content":"rules"}]}`)
		tr, err := TranslateOpenAI(req, Options{ModelID: "M"})
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if got := tr.Payload.ConversationState.CurrentMessage.UserInputMessage.Content; got != "Hello" {
			t.Errorf("current = %q, want Hello", got)
		}
	})

	t.Run("orphan user in history", func(t *testing.T) {
		req := mustOpenAI(t, `{"model":"m","messages":[
			{"role":"user","content":"a"},
			{"role":"user","content":"b"},
			{"role":"assistant","content":"c"},
			{"role":"user","content":"d"}
		]}`)
		tr, err := TranslateOpenAI(req, Options{ModelID: "M"})
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		h := tr.Payload.ConversationState.History
		if len(h) != 2 || h[0].UserInputMessage.Content != "a\nb" {
			t.Fatalf("history = %+v", h)
		}
	})

	t.Run("trailing assistant", func(t *testing.T) {
		req := mustOpenAI(t, `{"model":"m","messages":[
			{"role":"user","content":"a"},
			{"role":"assistant","content":"b"}
		]}`)
		tr, err := TranslateOpenAI(req, Options{ModelID: "M"})
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		h := tr.Payload.ConversationState.History
		if len(h) != 2 {
			t.Fatalf("history length = %d, want 2", len(h))
		}
		if got := tr.Payload.ConversationState.CurrentMessage.UserInputMessage.Content; got != ContinuePrompt {
			t.Errorf("current = %q, want %q", got, ContinuePrompt)
		}
	})

	t.Run("invalid arguments wrapped", func(t *testing.T) {
		req := mustOpenAI(t, `{"model":"m","messages":[
			{"role":"user","content":"a"},
			{"role":"assistant","tool_calls":[{"id":"x","type":"function","function":{"name":"f","arguments":"not json"}}]},
			{"role":"tool","tool_call_id":"x","content":"r"}
		]}`)
		tr, err := TranslateOpenAI(req, Options{ModelID: "M"})
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		input := tr.Payload.ConversationState.History[1].AssistantResponseMessage.ToolUses[0].Input
		if got := gjson.GetBytes(input, "raw").String(); got != "not json" {
			t.Errorf("raw = %q", got)
		}
	})

	t.Run("image part", func(t *testing.T) {
		req := mustOpenAI(t, `{"model":"m","messages":[{"role":"user","content":[
			{"type":"text","text":"look"},
			{"type":"image_url","image_url":{"url":"https://x/y.png"}}
		]}]}`)
		tr, err := TranslateOpenAI(req, Options{ModelID: "M"})
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		want := "look\n[image: https://x/y.png]"
		if got := tr.Payload.ConversationState.CurrentMessage.UserInputMessage.Content; got != want {
			t.Errorf("current = %q, want %q", got, want)
		}
	})

	t.Run("empty messages", func(t *testing.T) {
		req := mustOpenAI(t, `{"model":"m","messages":[]}`)
		if _, err := TranslateOpenAI(req, Options{ModelID: "M"}); err == nil {
			t.Fatal("expected error for empty messages")
		}
	})
}

func TestTranslateOpenAIToolChoice(t *testing.T) {
	const tools = `"tools":[{"type":"function","function":{"name":"get_weather","parameters":{"type":"object"}}}]`
	tests := []struct {
		name string
		body string
		want string
	}{
		{"absent", `{"model":"m",` + tools + `,"messages":[{"role":"user","content":"hi"}]}`, TriggerManual},
		{"auto", `{"model":"m",` + tools + `,"tool_choice":"auto","messages":[{"role":"user","content":"hi"}]}`, TriggerManual},
		{"required", `{"model":"m",` + tools + `,"tool_choice":"required","messages":[{"role":"user","content":"hi"}]}`, TriggerAuto},
		{"named function", `{"model":"m",` + tools + `,"tool_choice":{"type":"function","function":{"name":"get_weather"}},"messages":[{"role":"user","content":"hi"}]}`, TriggerAuto},
		{"required without tools", `{"model":"m","tool_choice":"required","messages":[{"role":"user","content":"hi"}]}`, TriggerManual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := TranslateOpenAI(mustOpenAI(t, tt.body), Options{ModelID: "m"})
			if err != nil {
				t.Fatalf("TranslateOpenAI() error = %v", err)
			}
			if got := marshalPayload(t, tr).Get("conversationState.chatTriggerType").String(); got != tt.want {
				t.Errorf("chatTriggerType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseOpenAIInvalid(t *testing.T) {
	_, err := ParseOpenAI([]byte(`{"model":`))
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if !strings.Contains(te.Error(), "invalid request body") {
		t.Errorf("error = %q", te.Error())
	}
}

func TestParseAnthropic(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantBudget int
		thinking   bool
	}{
		{name: "valid", body: `{"model":"claude","max_tokens":10,"messages":[]}`},
		{name: "not json", body: `{`, wantErr: true},
		{name: "array", body: `[]`, wantErr: true},
		{name: "missing model", body: `{"messages":[]}`, wantErr: true},
		{name: "thinking enabled", body: `{"model":"c","thinking":{"type":"enabled","budget_tokens":1500}}`, wantBudget: 1500, thinking: true},
		{name: "thinking disabled", body: `{"model":"c","thinking":{"type":"disabled","budget_tokens":1500}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseAnthropic([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if req.ThinkingBudget != tt.wantBudget {
				t.Errorf("ThinkingBudget = %d, want %d", req.ThinkingBudget, tt.wantBudget)
			}
			if req.ThinkingRequested() != tt.thinking {
				t.Errorf("ThinkingRequested() = %v, want %v", req.ThinkingRequested(), tt.thinking)
			}
		})
	}
}

func TestTranslateAnthropic(t *testing.T) {
	req := mustAnthropic(t, `{"model":"claude-sonnet-4","max_tokens":100,
		"system":[{"type":"text","text":"sys1"},{"type":"text","text":"sys2"}],
		"tools":[
			{"name":"read.file","description":"read","input_schema":{"type":"object"}},
			{"name":"web_search","description":"search"}
		],
		"tool_choice":{"type":"any"},
		"messages":[
			{"role":"user","content":"open it"},
			{"role":"assistant","content":[
				{"type":"thinking","thinking":"plan"},
				{"type":"tool_use","id":"tu1","name":"read.file","input":{"path":"a.txt"}}
			]},
			{"role":"user","content":[
				{"type":"tool_result","tool_use_id":"tu1","content":[{"type":"text","text":"contents"}],"is_error":true},
				{"type":"text","text":"now summarize"}
			]}
		]}`)
	tr, err := TranslateAnthropic(req, Options{ModelID: "M"})
	if err != nil {
		t.Fatalf("TranslateAnthropic() error = %v", err)
	}
	doc := marshalPayload(t, tr)

	h := doc.Get("conversationState.history").Array()
	if len(h) != 4 {
		t.Fatalf("history length = %d, want 4", len(h))
	}
	if got := h[0].Get("userInputMessage.content").String(); got != "sys1\nsys2" {
		t.Errorf("system = %q", got)
	}
	asst := h[3].Get("assistantResponseMessage")
	if got := asst.Get("content").String(); got != "<thinking>plan</thinking>" {
		t.Errorf("assistant content = %q", got)
	}
	if got := asst.Get("toolUses.0.name").String(); got != "read_file" {
		t.Errorf("tool use name = %q", got)
	}
	if got := asst.Get("toolUses.0.input.path").String(); got != "a.txt" {
		t.Errorf("tool input = %q", got)
	}

	cur := doc.Get("conversationState.currentMessage.userInputMessage")
	if got := cur.Get("content").String(); got != "now summarize" {
		t.Errorf("current = %q", got)
	}
	if n := cur.Get("userInputMessageContext.tools.#").Int(); n != 1 {
		t.Errorf("tools = %d, want 1 (web_search skipped)", n)
	}
	res := cur.Get("userInputMessageContext.toolResults.0")
	if res.Get("status").String() != ToolStatusError || res.Get("content.0.text").String() != "contents" {
		t.Errorf("tool result = %s", res.Raw)
	}
	if got := doc.Get("conversationState.chatTriggerType").String(); got != TriggerAuto {
		t.Errorf("chatTriggerType = %q, want AUTO", got)
	}
}

func TestTranslateAnthropicThinkingBudget(t *testing.T) {
	req := mustAnthropic(t, `{"model":"c","system":"rules","thinking":{"type":"enabled","budget_tokens":1234},
		"messages":[{"role":"user","content":"hi"}]}`)
	tr, err := TranslateAnthropic(req, Options{ModelID: "M", Thinking: true, ThinkingBudget: 9999})
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	sys := tr.Payload.ConversationState.History[0].UserInputMessage.Content
	if !strings.Contains(sys, "<max_thinking_length>1234</max_thinking_length>") || !strings.HasSuffix(sys, "\nrules") {
		t.Errorf("system = %q", sys)
	}
}

func TestToolDescriptionTruncated(t *testing.T) {
	long := strings.Repeat("é", MaxToolDescription+50)
	tools := openAITools([]openai.Tool{{
		Type:     openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{Name: "f", Description: long},
	}}, NewToolNames())
	if got := len([]rune(tools[0].ToolSpecification.Description)); got != MaxToolDescription {
		t.Errorf("description runes = %d, want %d", got, MaxToolDescription)
	}
	if string(tools[0].ToolSpecification.InputSchema.JSON) != "{}" {
		t.Errorf("schema = %s, want {}", tools[0].ToolSpecification.InputSchema.JSON)
	}
}

func TestNormalizeObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{`"{\"a\":1}"`, `{"a":1}`},
		{`[1,2]`, `{}`},
		{`"text"`, `{}`},
		{``, `{}`},
	}
	for _, tt := range tests {
		if got := string(normalizeObject(json.RawMessage(tt.in))); got != tt.want {
			t.Errorf("normalizeObject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeToolName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"get_weather", "get_weather"},
		{"get-weather", "get_weather"},
		{"mcp__server__tool", "mcp_server_tool"},
		{"a.b.c", "a_b_c"},
		{"9lives", "t_9lives"},
		{"---", "tool"},
		{"名前", "tool"},
	}
	for _, tt := range tests {
		if got := SanitizeToolName(tt.in); got != tt.want {
			t.Errorf("SanitizeToolName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToolNamesCollision(t *testing.T) {
	names := NewToolNames()
	a := names.Register("a-b")
	b := names.Register("a.b")
	c := names.Register("a_b")
	if a != "a_b" || b != "a_b_2" || c != "a_b_3" {
		t.Fatalf("names = %q %q %q", a, b, c)
	}
	if again := names.Register("a.b"); again != b {
		t.Errorf("re-register = %q, want %q", again, b)
	}
	rev := names.Reverse()
	for _, orig := range []string{"a-b", "a.b", "a_b"} {
		up, _ := names.Upstream(orig)
		if rev[up] != orig {
			t.Errorf("reverse(%q) = %q, want %q", up, rev[up], orig)
		}
	}
	if names.Len() != 3 {
		t.Errorf("Len() = %d, want 3", names.Len())
	}
}
