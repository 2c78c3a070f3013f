package translate

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// AnthropicRequest is a parsed Anthropic Messages request. Content fields
// may be strings or block arrays, so the body is kept as a gjson document.
type AnthropicRequest struct {
	Model          string
	Stream         bool
	MaxTokens      int
	ThinkingBudget int
	doc            gjson.Result
}

// ParseAnthropic validates and parses an Anthropic Messages request body.
func ParseAnthropic(body []byte) (*AnthropicRequest, error) {
	if !gjson.ValidBytes(body) {
		return nil, &Error{Message: "request body is not valid JSON"}
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, &Error{Message: "request body must be a JSON object"}
	}
	req := &AnthropicRequest{
		Model:     doc.Get("model").String(),
		Stream:    doc.Get("stream").Bool(),
		MaxTokens: int(doc.Get("max_tokens").Int()),
		doc:       doc,
	}
	if req.Model == "" {
		return nil, &Error{Field: "model", Message: "model is required"}
	}
	if t := doc.Get("thinking"); t.IsObject() && t.Get("type").String() != "disabled" {
		req.ThinkingBudget = int(t.Get("budget_tokens").Int())
	}
	return req, nil
}

// ThinkingRequested reports whether the request enabled extended thinking.
func (r *AnthropicRequest) ThinkingRequested() bool {
	t := r.doc.Get("thinking")
	return t.IsObject() && t.Get("type").String() == "enabled"
}

// TranslateAnthropic builds the upstream payload for an Anthropic request.
func TranslateAnthropic(req *AnthropicRequest, opts Options) (*Translation, error) {
	messages := req.doc.Get("messages").Array()
	if len(messages) == 0 {
		return nil, &Error{Field: "messages", Message: "messages must not be empty"}
	}

	b := newBuilder(opts.ModelID, opts.ProfileARN)
	names := NewToolNames()

	b.system(systemPrompt(opts, req.ThinkingBudget, anthropicSystem(req.doc.Get("system"))))

	start := len(messages)
	for start > 0 && messages[start-1].Get("role").String() == "user" {
		start--
	}

	var pending []gjson.Result
	for _, m := range messages[:start] {
		switch m.Get("role").String() {
		case "user":
			pending = append(pending, m)
		case "assistant":
			if len(pending) > 0 {
				b.user(mergeAnthropicUser(pending))
				pending = nil
			}
			text, uses := anthropicAssistant(m.Get("content"), names)
			b.assistant(text, uses)
		}
	}
	if len(pending) > 0 {
		b.user(mergeAnthropicUser(pending))
		b.assistant(OrphanAcknowledgment, nil)
	}

	tools := anthropicTools(req.doc.Get("tools"), names)

	var texts []string
	var results []ToolResult
	for _, m := range messages[start:] {
		text, res := anthropicUser(m.Get("content"))
		texts = append(texts, text)
		results = append(results, res...)
	}
	b.current(joinNonEmpty(texts, ContinuePrompt), tools, results)

	if len(tools) > 0 {
		switch req.doc.Get("tool_choice.type").String() {
		case "any", "tool":
			b.p.ConversationState.ChatTriggerType = TriggerAuto
		}
	}

	return &Translation{Payload: b.p, Tools: names}, nil
}

func anthropicSystem(sys gjson.Result) []string {
	switch {
	case sys.Type == gjson.String:
		if s := sys.String(); s != "" {
			return []string{s}
		}
	case sys.IsArray():
		var parts []string
		for _, item := range sys.Array() {
			if t := item.Get("text"); t.Exists() {
				parts = append(parts, t.String())
			}
		}
		return parts
	}
	return nil
}

// anthropicUser extracts the text and tool results of a user turn.
func anthropicUser(content gjson.Result) (string, []ToolResult) {
	if content.Type == gjson.String {
		return content.String(), nil
	}
	var texts []string
	var results []ToolResult
	for _, block := range content.Array() {
		switch block.Get("type").String() {
		case "text":
			texts = append(texts, block.Get("text").String())
		case "tool_result":
			status := ToolStatusSuccess
			if block.Get("is_error").Bool() {
				status = ToolStatusError
			}
			results = append(results, ToolResult{
				ToolUseID: block.Get("tool_use_id").String(),
				Status:    status,
				Content:   []ToolResultContent{{Text: blockText(block.Get("content"))}},
			})
		}
	}
	return strings.Join(texts, "\n"), results
}

func mergeAnthropicUser(msgs []gjson.Result) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		text, _ := anthropicUser(m.Get("content"))
		parts = append(parts, text)
	}
	return joinNonEmpty(parts, ContinuePrompt)
}

func anthropicAssistant(content gjson.Result, names *ToolNames) (string, []ToolUse) {
	if content.Type == gjson.String {
		return content.String(), nil
	}
	var texts []string
	var thinking strings.Builder
	var uses []ToolUse
	for _, block := range content.Array() {
		switch block.Get("type").String() {
		case "thinking":
			thinking.WriteString(block.Get("thinking").String())
		case "text":
			texts = append(texts, block.Get("text").String())
		case "tool_use":
			uses = append(uses, ToolUse{
				ToolUseID: block.Get("id").String(),
				Name:      names.Register(block.Get("name").String()),
				Input:     normalizeObject(json.RawMessage(rawOrEmpty(block.Get("input")))),
			})
		}
	}

	text := strings.Join(texts, "\n")
	if thinking.Len() > 0 {
		wrapped := "<thinking>" + thinking.String() + "</thinking>"
		if len(texts) == 0 {
			text = wrapped
		} else {
			text = wrapped + "\n\n" + text
		}
	}
	if text == "" && len(uses) > 0 {
		text = OrphanAcknowledgment
	}
	return text, uses
}

func anthropicTools(tools gjson.Result, names *ToolNames) []Tool {
	var out []Tool
	for _, t := range tools.Array() {
		name := t.Get("name").String()
		if strings.EqualFold(name, "web_search") || strings.EqualFold(name, "websearch") {
			continue
		}
		out = append(out, Tool{ToolSpecification: ToolSpecification{
			Name:        names.Register(name),
			Description: truncateDescription(t.Get("description").String()),
			InputSchema: InputSchema{JSON: normalizeObject(json.RawMessage(rawOrEmpty(t.Get("input_schema"))))},
		}})
	}
	return out
}

// blockText flattens a string or an array of text blocks.
func blockText(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	var parts []string
	for _, item := range v.Array() {
		if t := item.Get("text"); t.Exists() {
			parts = append(parts, t.String())
		}
	}
	return strings.Join(parts, "\n")
}

func rawOrEmpty(v gjson.Result) string {
	if !v.Exists() {
		return "{}"
	}
	return v.Raw
}
