package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"kiro-hq/gateway/pkg/gateway"
	"kiro-hq/gateway/pkg/proxy"
	"kiro-hq/gateway/pkg/proxy/types"
	"kiro-hq/gateway/pkg/telemetry/logging"
	"kiro-hq/gateway/pkg/translate"
)

// protocolSurface is what differs between the two public chat endpoints.
type protocolSurface struct {
	protocol  translate.Protocol
	parse     func(body []byte) (*gateway.Inbound, error)
	collector func(meta translate.Meta) translate.Collector
	stream    func(w io.Writer, meta translate.Meta) translate.Stream
}

var openAISurface = protocolSurface{
	protocol: translate.ProtocolOpenAI,
	parse: func(body []byte) (*gateway.Inbound, error) {
		req, err := translate.ParseOpenAI(body)
		if err != nil {
			return nil, err
		}
		if err := types.ValidateChatRequest(req); err != nil {
			return nil, err
		}
		return gateway.NewOpenAIInbound(req, body), nil
	},
	collector: func(meta translate.Meta) translate.Collector { return translate.NewOpenAICollector(meta) },
	stream:    func(w io.Writer, meta translate.Meta) translate.Stream { return translate.NewOpenAIStream(w, meta) },
}

var anthropicSurface = protocolSurface{
	protocol: translate.ProtocolAnthropic,
	parse: func(body []byte) (*gateway.Inbound, error) {
		req, err := translate.ParseAnthropic(body)
		if err != nil {
			return nil, err
		}
		return gateway.NewAnthropicInbound(req, body), nil
	},
	collector: func(meta translate.Meta) translate.Collector { return translate.NewAnthropicCollector(meta) },
	stream:    func(w io.Writer, meta translate.Meta) translate.Stream { return translate.NewAnthropicStream(w, meta) },
}

// ChatHandler serves POST /v1/chat/completions (OpenAI) or POST /v1/messages
// (Anthropic), streamed or buffered.
type ChatHandler struct {
	gateway      Orchestrator
	surface      protocolSurface
	maxBodyBytes int64
}

// NewOpenAIHandler creates the handler for POST /v1/chat/completions.
func NewOpenAIHandler(gw Orchestrator, maxBodyBytes int64) *ChatHandler {
	return &ChatHandler{gateway: gw, surface: openAISurface, maxBodyBytes: maxBodyBytes}
}

// NewAnthropicHandler creates the handler for POST /v1/messages.
func NewAnthropicHandler(gw Orchestrator, maxBodyBytes int64) *ChatHandler {
	return &ChatHandler{gateway: gw, surface: anthropicSurface, maxBodyBytes: maxBodyBytes}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	protocol := h.surface.protocol
	requestID := logging.GetRequestID(ctx)
	start := time.Now()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		_ = proxy.WriteError(w, protocol, http.StatusMethodNotAllowed, "Method "+r.Method+" not allowed. Use POST instead.", types.CodeInvalidValue)
		return
	}

	body, err := proxy.ReadBody(w, r, h.maxBodyBytes)
	if err != nil {
		proxy.HandleError(w, r, protocol, err)
		return
	}
	in, err := h.surface.parse(body)
	if err != nil {
		slog.WarnContext(ctx, "rejected malformed request", "request_id", requestID, "protocol", protocol, "error", err)
		proxy.HandleError(w, r, protocol, err)
		return
	}
	proxy.Annotate(in, r)

	slog.DebugContext(ctx, "processing chat request",
		"request_id", requestID,
		"protocol", protocol,
		"model", in.Model,
		"stream", in.Stream,
	)

	call, err := h.gateway.Prepare(ctx, in)
	if err != nil {
		proxy.HandleError(w, r, protocol, err)
		return
	}

	if in.Stream {
		fw := proxy.NewFlushWriter(w)
		err := h.gateway.Stream(ctx, call, h.surface.stream(fw, call.Meta))
		if err != nil && !fw.Started() {
			proxy.HandleError(w, r, protocol, err)
		}
		slog.DebugContext(ctx, "stream finished",
			"request_id", requestID,
			"account_id", call.Account.ID,
			"error", err,
			"total_latency_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	resp, err := h.gateway.Complete(ctx, call, h.surface.collector(call.Meta))
	if err != nil {
		proxy.HandleError(w, r, protocol, err)
		return
	}
	if err := proxy.WriteRawJSON(w, http.StatusOK, resp); err != nil {
		slog.DebugContext(ctx, "failed to write response", "request_id", requestID, "error", err)
	}
}
