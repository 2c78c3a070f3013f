package types

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ValidateChatRequest checks an OpenAI chat completion request.
// It checks that required fields are present and values are within acceptable ranges.
func ValidateChatRequest(r *openai.ChatCompletionRequest) error {
	if r.Model == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}

	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Message: "messages must contain at least one message"}
	}

	if r.Temperature < 0 || r.Temperature > 2 {
		return &ValidationError{Field: "temperature", Message: "temperature must be between 0.0 and 2.0"}
	}

	if r.TopP < 0 || r.TopP > 1 {
		return &ValidationError{Field: "top_p", Message: "top_p must be between 0.0 and 1.0"}
	}

	if r.MaxTokens < 0 || r.MaxCompletionTokens < 0 {
		return &ValidationError{Field: "max_tokens", Message: "max_tokens must not be negative"}
	}

	// The upstream produces a single answer per call.
	if r.N > 1 {
		return &ValidationError{Field: "n", Message: "n greater than 1 is not supported"}
	}

	for i, msg := range r.Messages {
		switch msg.Role {
		case openai.ChatMessageRoleSystem, "developer", openai.ChatMessageRoleUser,
			openai.ChatMessageRoleAssistant, openai.ChatMessageRoleTool:
		case "":
			return &ValidationError{Field: fmt.Sprintf("messages[%d].role", i), Message: "message role is required"}
		default:
			return &ValidationError{Field: fmt.Sprintf("messages[%d].role", i), Message: fmt.Sprintf("unsupported role %q", msg.Role)}
		}
		if msg.Role == openai.ChatMessageRoleTool && msg.ToolCallID == "" {
			return &ValidationError{Field: fmt.Sprintf("messages[%d].tool_call_id", i), Message: "tool messages require tool_call_id"}
		}
	}

	for i, tool := range r.Tools {
		if tool.Type == openai.ToolTypeFunction && (tool.Function == nil || tool.Function.Name == "") {
			return &ValidationError{Field: fmt.Sprintf("tools[%d].function.name", i), Message: "function tools require a name"}
		}
	}

	return nil
}

// ValidationError represents a request validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
