package translate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Protocol identifies a public API surface.
type Protocol string

const (
	ProtocolOpenAI    Protocol = "openai"
	ProtocolAnthropic Protocol = "anthropic"
)

// DefaultThinkingBudget is used when neither the request nor Options set one.
const DefaultThinkingBudget = 4000

// Options controls how a request is translated.
type Options struct {
	// ModelID is the resolved upstream model.
	ModelID string

	// Thinking enables the synthetic reasoning directive.
	Thinking bool

	// ThinkingBudget is the default max_thinking_length.
	ThinkingBudget int

	// ProfileARN is copied from the account's auth material when present.
	ProfileARN string
}

// Translation is a built upstream request.
type Translation struct {
	Payload *Payload
	Tools   *ToolNames
}

// Marshal encodes the payload as the upstream request body.
func (t *Translation) Marshal() ([]byte, error) {
	return json.Marshal(t.Payload)
}

// Error is a malformed public request.
type Error struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// thinkingDirective is prepended to the system prompt in thinking mode.
func thinkingDirective(budget int) string {
	return fmt.Sprintf("<thinking_mode>enabled</thinking_mode><max_thinking_length>%d</max_thinking_length>", budget)
}

func systemPrompt(opts Options, budget int, parts []string) string {
	prompt := strings.Join(parts, "\n")
	if !opts.Thinking {
		return prompt
	}
	if budget <= 0 {
		budget = opts.ThinkingBudget
	}
	if budget <= 0 {
		budget = DefaultThinkingBudget
	}
	if prompt == "" {
		return thinkingDirective(budget)
	}
	return thinkingDirective(budget) + "\n" + prompt
}

// joinNonEmpty newline-joins the non-empty parts, or returns fallback.
func joinNonEmpty(parts []string, fallback string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return fallback
	}
	return strings.Join(kept, "\n")
}

// normalizeObject returns raw if it is a JSON object, parses it if it is a
// JSON string holding an object, and returns {} otherwise.
func normalizeObject(raw json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			s = strings.TrimSpace(s)
			if strings.HasPrefix(s, "{") && json.Valid([]byte(s)) {
				return json.RawMessage(s)
			}
		}
	}
	return json.RawMessage(`{}`)
}
