package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ParseOpenAI decodes an OpenAI chat completion request body.
func ParseOpenAI(body []byte) (*openai.ChatCompletionRequest, error) {
	var req openai.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &Error{Message: fmt.Sprintf("invalid request body: %v", err)}
	}
	return &req, nil
}

// TranslateOpenAI builds the upstream payload for an OpenAI chat request.
func TranslateOpenAI(req *openai.ChatCompletionRequest, opts Options) (*Translation, error) {
	if len(req.Messages) == 0 {
		return nil, &Error{Field: "messages", Message: "messages must not be empty"}
	}

	b := newBuilder(opts.ModelID, opts.ProfileARN)
	names := NewToolNames()

	var sys []string
	var msgs []openai.ChatCompletionMessage
	for _, m := range req.Messages {
		if isSystemRole(m.Role) {
			if text := openAIText(m); text != "" {
				sys = append(sys, text)
			}
			continue
		}
		msgs = append(msgs, m)
	}
	b.system(systemPrompt(opts, 0, sys))

	tools := openAITools(req.Tools, names)

	if len(msgs) == 0 {
		b.current("Hello", tools, nil)
		setOpenAITrigger(b.p, req.ToolChoice, tools)
		return &Translation{Payload: b.p, Tools: names}, nil
	}

	// The current turn is the trailing run of user and tool messages.
	start := len(msgs)
	for start > 0 && isCurrentTurnRole(msgs[start-1].Role) {
		start--
	}

	var pending []openai.ChatCompletionMessage
	for _, m := range msgs[:start] {
		switch m.Role {
		case openai.ChatMessageRoleUser, openai.ChatMessageRoleTool:
			pending = append(pending, m)
		case openai.ChatMessageRoleAssistant:
			if len(pending) > 0 {
				b.user(mergeOpenAIUser(pending))
				pending = nil
			}
			text, uses := openAIAssistant(m, names)
			b.assistant(text, uses)
		}
	}
	if len(pending) > 0 {
		b.user(mergeOpenAIUser(pending))
		b.assistant(OrphanAcknowledgment, nil)
	}

	var texts []string
	var results []ToolResult
	for _, m := range msgs[start:] {
		if m.Role == openai.ChatMessageRoleTool {
			results = append(results, ToolResult{
				ToolUseID: m.ToolCallID,
				Status:    ToolStatusSuccess,
				Content:   []ToolResultContent{{Text: openAIText(m)}},
			})
			continue
		}
		texts = append(texts, openAIUserText(m))
	}
	b.current(joinNonEmpty(texts, ContinuePrompt), tools, results)
	setOpenAITrigger(b.p, req.ToolChoice, tools)

	return &Translation{Payload: b.p, Tools: names}, nil
}

// setOpenAITrigger marks the turn AUTO when tool_choice forces a tool call,
// either "required" or a named function.
func setOpenAITrigger(p *Payload, choice any, tools []Tool) {
	if len(tools) == 0 {
		return
	}
	forced := false
	switch c := choice.(type) {
	case string:
		forced = c == "required"
	case openai.ToolChoice:
		forced = c.Type == openai.ToolTypeFunction
	case *openai.ToolChoice:
		forced = c != nil && c.Type == openai.ToolTypeFunction
	case map[string]any:
		forced = c["type"] == string(openai.ToolTypeFunction)
	}
	if forced {
		p.ConversationState.ChatTriggerType = TriggerAuto
	}
}

func isSystemRole(role string) bool {
	return role == openai.ChatMessageRoleSystem || role == "developer"
}

func isCurrentTurnRole(role string) bool {
	return role == openai.ChatMessageRoleUser || role == openai.ChatMessageRoleTool
}

// openAIText returns the text of a message, joining text parts.
func openAIText(m openai.ChatCompletionMessage) string {
	if len(m.MultiContent) == 0 {
		return m.Content
	}
	var parts []string
	for _, p := range m.MultiContent {
		if p.Type == openai.ChatMessagePartTypeText {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// openAIUserText is openAIText plus image references.
func openAIUserText(m openai.ChatCompletionMessage) string {
	if len(m.MultiContent) == 0 {
		return m.Content
	}
	var parts []string
	for _, p := range m.MultiContent {
		switch p.Type {
		case openai.ChatMessagePartTypeText:
			parts = append(parts, p.Text)
		case openai.ChatMessagePartTypeImageURL:
			if p.ImageURL != nil {
				parts = append(parts, "[image: "+p.ImageURL.URL+"]")
			}
		}
	}
	return strings.Join(parts, "\n")
}

func mergeOpenAIUser(msgs []openai.ChatCompletionMessage) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == openai.ChatMessageRoleTool {
			parts = append(parts, fmt.Sprintf("[Tool Result: %s] %s", m.ToolCallID, openAIText(m)))
			continue
		}
		parts = append(parts, openAIUserText(m))
	}
	return joinNonEmpty(parts, ContinuePrompt)
}

func openAIAssistant(m openai.ChatCompletionMessage, names *ToolNames) (string, []ToolUse) {
	text := openAIText(m)
	var uses []ToolUse
	for _, tc := range m.ToolCalls {
		input := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(input) || !strings.HasPrefix(strings.TrimSpace(tc.Function.Arguments), "{") {
			raw, _ := json.Marshal(map[string]string{"raw": tc.Function.Arguments})
			input = raw
		}
		uses = append(uses, ToolUse{
			ToolUseID: tc.ID,
			Name:      names.Register(tc.Function.Name),
			Input:     input,
		})
	}
	if text == "" && len(uses) > 0 {
		text = OrphanAcknowledgment
	}
	return text, uses
}

func openAITools(tools []openai.Tool, names *ToolNames) []Tool {
	var out []Tool
	for _, t := range tools {
		if t.Type != openai.ToolTypeFunction || t.Function == nil {
			continue
		}
		schema := json.RawMessage(`{}`)
		if t.Function.Parameters != nil {
			if raw, err := json.Marshal(t.Function.Parameters); err == nil {
				schema = normalizeObject(raw)
			}
		}
		out = append(out, Tool{ToolSpecification: ToolSpecification{
			Name:        names.Register(t.Function.Name),
			Description: truncateDescription(t.Function.Description),
			InputSchema: InputSchema{JSON: schema},
		}})
	}
	return out
}
