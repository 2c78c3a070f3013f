package translate

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"kiro-hq/gateway/pkg/eventstream"
	"kiro-hq/gateway/pkg/proxy/types"
)

// Done terminates an OpenAI event stream.
const Done = "[DONE]"

func completionID() string {
	return "chatcmpl-" + shortID(24)
}

func callID(toolUseID string) string {
	return "call_" + toolUseID
}

func finishReason(toolCalls int) openai.FinishReason {
	if toolCalls > 0 {
		return openai.FinishReasonToolCalls
	}
	return openai.FinishReasonStop
}

// OpenAIStream writes chat.completion.chunk events.
type OpenAIStream struct {
	core
	w         io.Writer
	id        string
	created   int64
	toolIndex int
}

// NewOpenAIStream creates a streaming responder writing to w.
func NewOpenAIStream(w io.Writer, meta Meta) *OpenAIStream {
	return &OpenAIStream{core: newCore(meta), w: w, id: completionID(), created: time.Now().Unix()}
}

// Begin writes the assistant role chunk.
func (s *OpenAIStream) Begin() error {
	return s.chunk(openai.ChatCompletionStreamChoiceDelta{Role: openai.ChatMessageRoleAssistant}, "", nil)
}

// Handle implements Responder.
func (s *OpenAIStream) Handle(ev eventstream.Event) error {
	return s.dispatch(s, ev)
}

// Summary implements Responder.
func (s *OpenAIStream) Summary() Summary {
	return s.summary()
}

// Fail writes an error object as a data frame and ends the stream.
func (s *OpenAIStream) Fail(status int, message string) error {
	data, err := json.Marshal(types.NewOpenAIError(status, message, types.CodeUpstreamError))
	if err != nil {
		return err
	}
	if err := writeSSE(s.w, "", data); err != nil {
		return err
	}
	return writeSSE(s.w, "", []byte(Done))
}

func (s *OpenAIStream) chunk(delta openai.ChatCompletionStreamChoiceDelta, finish openai.FinishReason, usage *openai.Usage) error {
	data, err := json.Marshal(openai.ChatCompletionStreamResponse{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.meta.Model,
		Choices: []openai.ChatCompletionStreamChoice{{Index: 0, Delta: delta, FinishReason: finish}},
		Usage:   usage,
	})
	if err != nil {
		return err
	}
	return writeSSE(s.w, "", data)
}

func (s *OpenAIStream) reasoning(text string) error {
	return s.chunk(openai.ChatCompletionStreamChoiceDelta{ReasoningContent: text}, "", nil)
}

func (s *OpenAIStream) text(text string) error {
	return s.chunk(openai.ChatCompletionStreamChoiceDelta{Content: text}, "", nil)
}

func (s *OpenAIStream) toolStart(id, name string) error {
	idx := s.toolIndex
	return s.chunk(openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{{
		Index:    &idx,
		ID:       callID(id),
		Type:     openai.ToolTypeFunction,
		Function: openai.FunctionCall{Name: name},
	}}}, "", nil)
}

func (s *OpenAIStream) toolInput(_, fragment string) error {
	idx := s.toolIndex
	return s.chunk(openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{{
		Index:    &idx,
		Type:     openai.ToolTypeFunction,
		Function: openai.FunctionCall{Arguments: fragment},
	}}}, "", nil)
}

func (s *OpenAIStream) toolEnd(string) error {
	s.toolIndex++
	return nil
}

func (s *OpenAIStream) complete() error {
	in, out := s.usage.Totals()
	usage := &openai.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
	if err := s.chunk(openai.ChatCompletionStreamChoiceDelta{}, finishReason(s.toolCalls), usage); err != nil {
		return err
	}
	return writeSSE(s.w, "", []byte(Done))
}

// OpenAICollector buffers events into a chat.completion response.
type OpenAICollector struct {
	core
	content   strings.Builder
	reasoned  strings.Builder
	calls     []openai.ToolCall
	openCalls map[string]int
}

// NewOpenAICollector creates a non-streaming responder.
func NewOpenAICollector(meta Meta) *OpenAICollector {
	return &OpenAICollector{core: newCore(meta), openCalls: make(map[string]int)}
}

// Handle implements Responder.
func (c *OpenAICollector) Handle(ev eventstream.Event) error {
	return c.dispatch(c, ev)
}

// Summary implements Responder.
func (c *OpenAICollector) Summary() Summary {
	return c.summary()
}

// Body implements Collector.
func (c *OpenAICollector) Body() ([]byte, error) {
	return json.Marshal(c.Response())
}

// Response builds the completion. Call it after Complete has been handled.
func (c *OpenAICollector) Response() openai.ChatCompletionResponse {
	in, out := c.usage.Totals()
	msg := openai.ChatCompletionMessage{
		Role:             openai.ChatMessageRoleAssistant,
		Content:          c.content.String(),
		ReasoningContent: c.reasoned.String(),
		ToolCalls:        c.calls,
	}
	return openai.ChatCompletionResponse{
		ID:      completionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   c.meta.Model,
		Choices: []openai.ChatCompletionChoice{{
			Index:        0,
			Message:      msg,
			FinishReason: finishReason(len(c.calls)),
		}},
		Usage: openai.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}
}

func (c *OpenAICollector) reasoning(s string) error {
	c.reasoned.WriteString(s)
	return nil
}

func (c *OpenAICollector) text(s string) error {
	c.content.WriteString(s)
	return nil
}

func (c *OpenAICollector) toolStart(id, name string) error {
	c.openCalls[id] = len(c.calls)
	c.calls = append(c.calls, openai.ToolCall{
		ID:       callID(id),
		Type:     openai.ToolTypeFunction,
		Function: openai.FunctionCall{Name: name},
	})
	return nil
}

func (c *OpenAICollector) toolInput(id, fragment string) error {
	if i, ok := c.openCalls[id]; ok {
		c.calls[i].Function.Arguments += fragment
	}
	return nil
}

func (c *OpenAICollector) toolEnd(id string) error {
	delete(c.openCalls, id)
	return nil
}

func (c *OpenAICollector) complete() error {
	return nil
}
