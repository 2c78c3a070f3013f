package eventstream

import "fmt"

// Kind identifies the variant carried by an Event.
type Kind int

const (
	// KindText carries visible assistant text in Event.Text.
	KindText Kind = iota
	// KindReasoning carries native reasoning text in Event.Text.
	KindReasoning
	// KindToolStart opens a tool call (Event.ToolID, Event.ToolName).
	KindToolStart
	// KindToolInput carries a JSON fragment of the tool input in Event.Text.
	KindToolInput
	// KindToolEnd closes the tool call named by Event.ToolID.
	KindToolEnd
	// KindUsage carries reported token counts.
	KindUsage
	// KindCredits carries consumed cost units in Event.Credits.
	KindCredits
	// KindContextUsage carries the context window usage in Event.Percent.
	KindContextUsage
	// KindComplete marks the end of the stream.
	KindComplete
	// KindError carries an upstream exception message in Event.Text.
	KindError
)

var kindNames = [...]string{
	KindText:         "text",
	KindReasoning:    "reasoning",
	KindToolStart:    "tool_start",
	KindToolInput:    "tool_input",
	KindToolEnd:      "tool_end",
	KindUsage:        "usage",
	KindCredits:      "credits",
	KindContextUsage: "context_usage",
	KindComplete:     "complete",
	KindError:        "error",
}

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is a single decoded upstream event. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind Kind

	// Text holds content for KindText, KindReasoning, KindToolInput and KindError.
	Text string

	// ToolID and ToolName identify the tool call for the tool kinds.
	ToolID   string
	ToolName string

	// InputTokens and OutputTokens are set for KindUsage.
	InputTokens  int
	OutputTokens int

	// Credits is set for KindCredits.
	Credits float64

	// Percent is set for KindContextUsage.
	Percent float64
}

// Text returns a KindText event.
func Text(s string) Event { return Event{Kind: KindText, Text: s} }

// Reasoning returns a KindReasoning event.
func Reasoning(s string) Event { return Event{Kind: KindReasoning, Text: s} }

// ToolStart returns a KindToolStart event.
func ToolStart(id, name string) Event { return Event{Kind: KindToolStart, ToolID: id, ToolName: name} }

// ToolInput returns a KindToolInput event.
func ToolInput(id, fragment string) Event { return Event{Kind: KindToolInput, ToolID: id, Text: fragment} }

// ToolEnd returns a KindToolEnd event.
func ToolEnd(id string) Event { return Event{Kind: KindToolEnd, ToolID: id} }

// Usage returns a KindUsage event.
func Usage(input, output int) Event {
	return Event{Kind: KindUsage, InputTokens: input, OutputTokens: output}
}

// Credits returns a KindCredits event.
func Credits(amount float64) Event { return Event{Kind: KindCredits, Credits: amount} }

// ContextUsage returns a KindContextUsage event.
func ContextUsage(percent float64) Event { return Event{Kind: KindContextUsage, Percent: percent} }

// Complete returns a KindComplete event.
func Complete() Event { return Event{Kind: KindComplete} }

// Error returns a KindError event.
func Error(msg string) Event { return Event{Kind: KindError, Text: msg} }
