package translate

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Upstream payload constants.
const (
	OriginAIEditor       = "AI_EDITOR"
	AgentTaskVibe        = "vibe"
	TriggerManual        = "MANUAL"
	TriggerAuto          = "AUTO"
	ToolStatusSuccess    = "success"
	ToolStatusError      = "error"
	MaxToolDescription   = 10000
	SystemAcknowledgment = "I will follow these instructions."
	OrphanAcknowledgment = "OK"
	ContinuePrompt       = "continue"
)

// Payload is the upstream generateAssistantResponse request body.
type Payload struct {
	ConversationState ConversationState `json:"conversationState"`
	ProfileARN        string            `json:"profileArn,omitempty"`
}

// ConversationState is the conversation sent upstream.
type ConversationState struct {
	ConversationID      string         `json:"conversationId"`
	AgentContinuationID string         `json:"agentContinuationId"`
	AgentTaskType       string         `json:"agentTaskType"`
	ChatTriggerType     string         `json:"chatTriggerType"`
	History             []HistoryTurn  `json:"history"`
	CurrentMessage      CurrentMessage `json:"currentMessage"`
}

// HistoryTurn holds exactly one of a user or an assistant message.
type HistoryTurn struct {
	UserInputMessage         *UserInputMessage         `json:"userInputMessage,omitempty"`
	AssistantResponseMessage *AssistantResponseMessage `json:"assistantResponseMessage,omitempty"`
}

// CurrentMessage is the turn the upstream answers.
type CurrentMessage struct {
	UserInputMessage UserInputMessage `json:"userInputMessage"`
}

// UserInputMessage is a user turn.
type UserInputMessage struct {
	Content                 string                   `json:"content"`
	ModelID                 string                   `json:"modelId"`
	Origin                  string                   `json:"origin"`
	UserInputMessageContext *UserInputMessageContext `json:"userInputMessageContext,omitempty"`
}

// UserInputMessageContext carries tool definitions and tool results.
type UserInputMessageContext struct {
	Tools       []Tool       `json:"tools,omitempty"`
	ToolResults []ToolResult `json:"toolResults,omitempty"`
}

// AssistantResponseMessage is an assistant turn.
type AssistantResponseMessage struct {
	Content  string    `json:"content"`
	ToolUses []ToolUse `json:"toolUses,omitempty"`
}

// Tool is a tool definition.
type Tool struct {
	ToolSpecification ToolSpecification `json:"toolSpecification"`
}

// ToolSpecification describes a callable tool.
type ToolSpecification struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema wraps a JSON schema.
type InputSchema struct {
	JSON json.RawMessage `json:"json"`
}

// ToolUse is a tool invocation made by the assistant in history.
type ToolUse struct {
	ToolUseID string          `json:"toolUseId"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
}

// ToolResult is the caller's answer to a tool invocation.
type ToolResult struct {
	ToolUseID string              `json:"toolUseId"`
	Status    string              `json:"status"`
	Content   []ToolResultContent `json:"content"`
}

// ToolResultContent is one text part of a tool result.
type ToolResultContent struct {
	Text string `json:"text"`
}

// builder assembles a Payload turn by turn.
type builder struct {
	modelID string
	p       *Payload
}

func newBuilder(modelID, profileARN string) *builder {
	return &builder{
		modelID: modelID,
		p: &Payload{
			ProfileARN: profileARN,
			ConversationState: ConversationState{
				ConversationID:      uuid.NewString(),
				AgentContinuationID: uuid.NewString(),
				AgentTaskType:       AgentTaskVibe,
				ChatTriggerType:     TriggerManual,
				History:             []HistoryTurn{},
			},
		},
	}
}

func (b *builder) user(content string) {
	b.p.ConversationState.History = append(b.p.ConversationState.History, HistoryTurn{
		UserInputMessage: &UserInputMessage{Content: content, ModelID: b.modelID, Origin: OriginAIEditor},
	})
}

func (b *builder) assistant(content string, toolUses []ToolUse) {
	b.p.ConversationState.History = append(b.p.ConversationState.History, HistoryTurn{
		AssistantResponseMessage: &AssistantResponseMessage{Content: content, ToolUses: toolUses},
	})
}

func (b *builder) system(prompt string) {
	if prompt == "" {
		return
	}
	b.user(prompt)
	b.assistant(SystemAcknowledgment, nil)
}

func (b *builder) current(content string, tools []Tool, results []ToolResult) {
	msg := UserInputMessage{Content: content, ModelID: b.modelID, Origin: OriginAIEditor}
	if len(tools) > 0 || len(results) > 0 {
		msg.UserInputMessageContext = &UserInputMessageContext{Tools: tools, ToolResults: results}
	}
	b.p.ConversationState.CurrentMessage = CurrentMessage{UserInputMessage: msg}
}

func truncateDescription(s string) string {
	r := []rune(s)
	if len(r) <= MaxToolDescription {
		return s
	}
	return string(r[:MaxToolDescription])
}
