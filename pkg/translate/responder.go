package translate

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"kiro-hq/gateway/pkg/eventstream"
	"kiro-hq/gateway/pkg/thinking"
)

// Meta describes the response being assembled.
type Meta struct {
	// Model is the model name echoed to the caller.
	Model string

	// MaxTokens is the model context size used for usage estimation.
	MaxTokens int

	// Thinking runs Text events through the thinking tag extractor.
	Thinking bool

	// Tools restores caller tool names. May be nil.
	Tools *ToolNames
}

// Summary is what a responder observed.
type Summary struct {
	InputTokens  int
	OutputTokens int
	Credits      float64
	ToolCalls    int
	Completed    bool
	Estimated    bool
}

// Responder consumes upstream events in the order the decoder produced them.
type Responder interface {
	Handle(ev eventstream.Event) error
	Summary() Summary
}

// Collector is a Responder that assembles a single JSON response.
type Collector interface {
	Responder

	// Body encodes the assembled response. Each call builds fresh ids.
	Body() ([]byte, error)
}

// Stream is a Responder that writes Server-Sent Events.
type Stream interface {
	Responder

	// Begin writes the preamble, if the protocol has one.
	Begin() error

	// Fail writes an in-stream error frame.
	Fail(status int, message string) error
}

// EventError is an error event reported inside the upstream stream.
type EventError struct {
	Message string
}

// Error implements the error interface.
func (e *EventError) Error() string {
	return "upstream stream error: " + e.Message
}

// Throttled reports whether the upstream signalled a throttling exception.
func (e *EventError) Throttled() bool {
	return strings.Contains(e.Message, "Throttling")
}

// sink receives the protocol-neutral pieces of a response.
type sink interface {
	reasoning(s string) error
	text(s string) error
	toolStart(id, name string) error
	toolInput(id, fragment string) error
	toolEnd(id string) error
	complete() error
}

// core holds the state shared by every responder.
type core struct {
	meta      Meta
	extractor *thinking.Extractor
	usage     *UsageTracker
	reverse   map[string]string
	toolCalls int
	completed bool
}

func newCore(meta Meta) core {
	c := core{meta: meta, usage: NewUsageTracker(meta.MaxTokens)}
	if meta.Thinking {
		c.extractor = thinking.NewExtractor()
	}
	if meta.Tools != nil {
		c.reverse = meta.Tools.Reverse()
	}
	return c
}

func (c *core) dispatch(s sink, ev eventstream.Event) error {
	switch ev.Kind {
	case eventstream.KindText:
		if c.extractor == nil {
			c.usage.AddOutput(ev.Text)
			return s.text(ev.Text)
		}
		return c.emit(s, c.extractor.Feed(ev.Text))

	case eventstream.KindReasoning:
		c.usage.AddOutput(ev.Text)
		return s.reasoning(ev.Text)

	case eventstream.KindToolStart:
		// Text held back as a possible tag prefix belongs before the tool.
		if c.extractor != nil {
			if err := c.emit(s, c.extractor.Finish()); err != nil {
				return err
			}
		}
		c.toolCalls++
		return s.toolStart(ev.ToolID, restoreName(c.reverse, ev.ToolName))

	case eventstream.KindToolInput:
		c.usage.AddOutput(ev.Text)
		return s.toolInput(ev.ToolID, ev.Text)

	case eventstream.KindToolEnd:
		return s.toolEnd(ev.ToolID)

	case eventstream.KindUsage, eventstream.KindContextUsage, eventstream.KindCredits:
		c.usage.Observe(ev)

	case eventstream.KindComplete:
		if c.completed {
			return nil
		}
		if c.extractor != nil {
			if err := c.emit(s, c.extractor.Finish()); err != nil {
				return err
			}
		}
		c.completed = true
		return s.complete()

	case eventstream.KindError:
		return &EventError{Message: ev.Text}
	}
	return nil
}

func (c *core) emit(s sink, r thinking.Result) error {
	if r.Reasoning != "" {
		c.usage.AddOutput(r.Reasoning)
		if err := s.reasoning(r.Reasoning); err != nil {
			return err
		}
	}
	if r.Visible != "" {
		c.usage.AddOutput(r.Visible)
		return s.text(r.Visible)
	}
	return nil
}

func (c *core) summary() Summary {
	in, out := c.usage.Totals()
	return Summary{
		InputTokens:  in,
		OutputTokens: out,
		Credits:      c.usage.Credits(),
		ToolCalls:    c.toolCalls,
		Completed:    c.completed,
		Estimated:    c.usage.Estimated(),
	}
}

// shortID returns n hex characters of a random UUID.
func shortID(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

// writeSSE writes one event and flushes when the writer supports it.
// An empty event name writes a data-only frame.
func writeSSE(w io.Writer, event string, data []byte) error {
	var err error
	if event != "" {
		_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	} else {
		_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	}
	if err != nil {
		return err
	}
	if f, ok := w.(interface{ Flush() }); ok {
		f.Flush()
	}
	return nil
}
