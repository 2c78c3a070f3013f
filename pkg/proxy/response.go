package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"kiro-hq/gateway/pkg/proxy/types"
	"kiro-hq/gateway/pkg/translate"
)

// WriteJSONResponse writes v as a JSON response with the given status.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteRawJSON writes an already encoded JSON body.
func WriteRawJSON(w http.ResponseWriter, statusCode int, body []byte) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err := w.Write(body)
	return err
}

// WriteError writes an error in the native envelope of protocol. The OpenAI
// code may be empty.
//
//	OpenAI:    {"error":{"message":"...","type":"...","code":"..."}}
//	Anthropic: {"type":"error","error":{"type":"...","message":"..."}}
func WriteError(w http.ResponseWriter, protocol translate.Protocol, status int, message, code string) error {
	if protocol == translate.ProtocolAnthropic {
		return WriteJSONResponse(w, status, types.NewAnthropicError(status, message))
	}
	return WriteJSONResponse(w, status, types.NewOpenAIError(status, message, code))
}

// SetSSEHeaders sets the headers of a Server-Sent Events response.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// FlushWriter flushes after every write so each SSE frame reaches the
// client as soon as it is produced. The first write sends the SSE headers
// with a 200 status.
type FlushWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

// NewFlushWriter wraps w.
func NewFlushWriter(w http.ResponseWriter) *FlushWriter {
	return &FlushWriter{w: w, rc: http.NewResponseController(w)}
}

// Write implements io.Writer.
func (f *FlushWriter) Write(p []byte) (int, error) {
	if !f.started {
		SetSSEHeaders(f.w)
		f.w.WriteHeader(http.StatusOK)
		f.started = true
	}
	return f.w.Write(p)
}

// Flush pushes buffered frames to the client.
func (f *FlushWriter) Flush() {
	_ = f.rc.Flush()
}

// Started reports whether anything was written.
func (f *FlushWriter) Started() bool {
	return f.started
}
