package gateway

import (
	openai "github.com/sashabaranov/go-openai"

	"kiro-hq/gateway/pkg/translate"
)

// Inbound is a parsed public request plus the facts about its caller that
// end up in the audit trace.
type Inbound struct {
	Protocol translate.Protocol

	// Model is the model name as sent by the caller.
	Model  string
	Stream bool

	// Thinking is set when the caller asked for reasoning explicitly, as
	// opposed to through the model name suffix.
	Thinking bool

	// Body is the raw request body.
	Body []byte

	RequestID string
	Path      string
	ClientIP  string
	APIKey    string

	openAI    *openai.ChatCompletionRequest
	anthropic *translate.AnthropicRequest
}

// NewOpenAIInbound wraps a parsed chat completion request.
func NewOpenAIInbound(req *openai.ChatCompletionRequest, body []byte) *Inbound {
	return &Inbound{
		Protocol: translate.ProtocolOpenAI,
		Model:    req.Model,
		Stream:   req.Stream,
		Body:     body,
		openAI:   req,
	}
}

// NewAnthropicInbound wraps a parsed Messages request.
func NewAnthropicInbound(req *translate.AnthropicRequest, body []byte) *Inbound {
	return &Inbound{
		Protocol:  translate.ProtocolAnthropic,
		Model:     req.Model,
		Stream:    req.Stream,
		Thinking:  req.ThinkingRequested(),
		Body:      body,
		anthropic: req,
	}
}

func (in *Inbound) translate(opts translate.Options) (*translate.Translation, error) {
	switch {
	case in.openAI != nil:
		return translate.TranslateOpenAI(in.openAI, opts)
	case in.anthropic != nil:
		return translate.TranslateAnthropic(in.anthropic, opts)
	default:
		return nil, &translate.Error{Message: "request body is empty"}
	}
}
