package translate

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"kiro-hq/gateway/pkg/eventstream"
	"kiro-hq/gateway/pkg/proxy/types"
)

// Anthropic stop reasons.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

func messageID() string {
	return "msg_" + shortID(24)
}

func signature() string {
	return "sig_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func toolUseID(id string) string {
	return "toolu_" + id
}

func stopReason(toolCalls int) string {
	if toolCalls > 0 {
		return StopToolUse
	}
	return StopEndTurn
}

// toolInputObject returns raw as a JSON object, wrapping anything else as {"raw": raw}.
func toolInputObject(raw string) json.RawMessage {
	if strings.TrimSpace(raw) == "" {
		return json.RawMessage(`{}`)
	}
	if gjson.Valid(raw) && gjson.Parse(raw).IsObject() {
		return json.RawMessage(raw)
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": raw})
	return wrapped
}

type blockState int

const (
	blockNone blockState = iota
	blockThinking
	blockTextOpen
	blockTool
)

type anthropicDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

type blockStartEvent struct {
	Type         string             `json:"type"`
	Index        int                `json:"index"`
	ContentBlock types.ContentBlock `json:"content_block"`
}

type blockDeltaEvent struct {
	Type  string         `json:"type"`
	Index int            `json:"index"`
	Delta anthropicDelta `json:"delta"`
}

type blockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type messageStartEvent struct {
	Type    string                 `json:"type"`
	Message types.AnthropicMessage `json:"message"`
}

type messageDeltaEvent struct {
	Type  string `json:"type"`
	Delta struct {
		StopReason   string  `json:"stop_reason"`
		StopSequence *string `json:"stop_sequence"`
	} `json:"delta"`
	Usage types.AnthropicUsage `json:"usage"`
}

// AnthropicStream writes Messages API streaming events. Content blocks are
// numbered from zero and never overlap: opening a block closes the previous one.
type AnthropicStream struct {
	core
	w         io.Writer
	id        string
	signature string
	index     int
	state     blockState
}

// NewAnthropicStream creates a streaming responder writing to w.
func NewAnthropicStream(w io.Writer, meta Meta) *AnthropicStream {
	return &AnthropicStream{core: newCore(meta), w: w, id: messageID(), signature: signature()}
}

// Begin writes message_start.
func (s *AnthropicStream) Begin() error {
	return s.send("message_start", messageStartEvent{
		Type: "message_start",
		Message: types.AnthropicMessage{
			ID:      s.id,
			Type:    "message",
			Role:    "assistant",
			Model:   s.meta.Model,
			Content: []types.ContentBlock{},
		},
	})
}

// Handle implements Responder.
func (s *AnthropicStream) Handle(ev eventstream.Event) error {
	return s.dispatch(s, ev)
}

// Summary implements Responder.
func (s *AnthropicStream) Summary() Summary {
	return s.summary()
}

// Fail writes an error event.
func (s *AnthropicStream) Fail(status int, message string) error {
	return s.send("error", types.NewAnthropicError(status, message))
}

func (s *AnthropicStream) send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeSSE(s.w, event, data)
}

func (s *AnthropicStream) open(state blockState, block types.ContentBlock) error {
	if err := s.closeBlock(); err != nil {
		return err
	}
	s.state = state
	return s.send("content_block_start", blockStartEvent{Type: "content_block_start", Index: s.index, ContentBlock: block})
}

func (s *AnthropicStream) closeBlock() error {
	if s.state == blockNone {
		return nil
	}
	if err := s.send("content_block_stop", blockStopEvent{Type: "content_block_stop", Index: s.index}); err != nil {
		return err
	}
	s.state = blockNone
	s.index++
	return nil
}

func (s *AnthropicStream) delta(d anthropicDelta) error {
	return s.send("content_block_delta", blockDeltaEvent{Type: "content_block_delta", Index: s.index, Delta: d})
}

func (s *AnthropicStream) reasoning(text string) error {
	if s.state != blockThinking {
		if err := s.open(blockThinking, types.ContentBlock{Type: types.BlockThinking, Signature: s.signature}); err != nil {
			return err
		}
	}
	return s.delta(anthropicDelta{Type: "thinking_delta", Thinking: text})
}

func (s *AnthropicStream) text(text string) error {
	if s.state != blockTextOpen {
		if err := s.open(blockTextOpen, types.ContentBlock{Type: types.BlockText}); err != nil {
			return err
		}
	}
	return s.delta(anthropicDelta{Type: "text_delta", Text: text})
}

func (s *AnthropicStream) toolStart(id, name string) error {
	return s.open(blockTool, types.ContentBlock{Type: types.BlockToolUse, ID: toolUseID(id), Name: name})
}

func (s *AnthropicStream) toolInput(_, fragment string) error {
	if s.state != blockTool {
		return nil
	}
	return s.delta(anthropicDelta{Type: "input_json_delta", PartialJSON: fragment})
}

func (s *AnthropicStream) toolEnd(string) error {
	if s.state != blockTool {
		return nil
	}
	return s.closeBlock()
}

func (s *AnthropicStream) complete() error {
	if err := s.closeBlock(); err != nil {
		return err
	}
	in, out := s.usage.Totals()
	md := messageDeltaEvent{Type: "message_delta", Usage: types.AnthropicUsage{InputTokens: in, OutputTokens: out}}
	md.Delta.StopReason = stopReason(s.toolCalls)
	if err := s.send("message_delta", md); err != nil {
		return err
	}
	return s.send("message_stop", struct {
		Type string `json:"type"`
	}{"message_stop"})
}

type collectedTool struct {
	id    string
	name  string
	input strings.Builder
}

// AnthropicCollector buffers events into a single Messages response.
type AnthropicCollector struct {
	core
	visible  strings.Builder
	thoughts strings.Builder
	tools    []*collectedTool
	open     map[string]*collectedTool
}

// NewAnthropicCollector creates a non-streaming responder.
func NewAnthropicCollector(meta Meta) *AnthropicCollector {
	return &AnthropicCollector{core: newCore(meta), open: make(map[string]*collectedTool)}
}

// Handle implements Responder.
func (c *AnthropicCollector) Handle(ev eventstream.Event) error {
	return c.dispatch(c, ev)
}

// Summary implements Responder.
func (c *AnthropicCollector) Summary() Summary {
	return c.summary()
}

// Body implements Collector.
func (c *AnthropicCollector) Body() ([]byte, error) {
	return json.Marshal(c.Response())
}

// Response builds the message: thinking first, then text, then tool uses.
func (c *AnthropicCollector) Response() types.AnthropicMessage {
	content := make([]types.ContentBlock, 0, len(c.tools)+2)
	if c.thoughts.Len() > 0 {
		content = append(content, types.ContentBlock{Type: types.BlockThinking, Thinking: c.thoughts.String(), Signature: signature()})
	}
	if c.visible.Len() > 0 {
		content = append(content, types.ContentBlock{Type: types.BlockText, Text: c.visible.String()})
	}
	for _, t := range c.tools {
		content = append(content, types.ContentBlock{
			Type:  types.BlockToolUse,
			ID:    toolUseID(t.id),
			Name:  t.name,
			Input: toolInputObject(t.input.String()),
		})
	}

	in, out := c.usage.Totals()
	reason := stopReason(len(c.tools))
	return types.AnthropicMessage{
		ID:         messageID(),
		Type:       "message",
		Role:       "assistant",
		Model:      c.meta.Model,
		Content:    content,
		StopReason: &reason,
		Usage:      types.AnthropicUsage{InputTokens: in, OutputTokens: out},
	}
}

func (c *AnthropicCollector) reasoning(s string) error {
	c.thoughts.WriteString(s)
	return nil
}

func (c *AnthropicCollector) text(s string) error {
	c.visible.WriteString(s)
	return nil
}

func (c *AnthropicCollector) toolStart(id, name string) error {
	t := &collectedTool{id: id, name: name}
	c.tools = append(c.tools, t)
	c.open[id] = t
	return nil
}

func (c *AnthropicCollector) toolInput(id, fragment string) error {
	if t, ok := c.open[id]; ok {
		t.input.WriteString(fragment)
	}
	return nil
}

func (c *AnthropicCollector) toolEnd(id string) error {
	delete(c.open, id)
	return nil
}

func (c *AnthropicCollector) complete() error {
	return nil
}
