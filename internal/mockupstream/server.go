// Package mockupstream is an in-process stand-in for the upstream chat service
// and its auth endpoints, used by tests.
package mockupstream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"kiro-hq/gateway/pkg/eventstream"
)

// StreamPath is the path of the streaming chat endpoint.
const StreamPath = "/generateAssistantResponse"

// DefaultAccessToken is issued by the refresh endpoints.
const DefaultAccessToken = "mock-access-token"

// Reply is the canned answer to one streaming call.
type Reply struct {
	// Status defaults to 200.
	Status int

	// Body is written for non-200 replies.
	Body string

	// Frames are written in order for 200 replies, each flushed separately.
	Frames [][]byte

	// Delay is applied before the response headers.
	Delay time.Duration
}

// Request is a recorded inbound request.
type Request struct {
	Path   string
	Header http.Header
	Body   []byte
}

// Server serves the streaming endpoint, the social and OIDC refresh
// endpoints and the REST helpers.
type Server struct {
	server *httptest.Server

	mu          sync.Mutex
	replies     []Reply
	requests    []Request
	refreshes   int
	accessToken string
	refreshErr  int
}

// New starts a server. Close it when done.
func New() *Server {
	s := &Server{accessToken: DefaultAccessToken}
	s.server = httptest.NewServer(http.HandlerFunc(s.handler))
	return s
}

// URL returns the base URL, usable as the social and OIDC base URL.
func (s *Server) URL() string {
	return s.server.URL
}

// StreamEndpoint returns the URL of the streaming endpoint.
func (s *Server) StreamEndpoint() string {
	return s.server.URL + StreamPath
}

// Close shuts the server down.
func (s *Server) Close() {
	s.server.Close()
}

// Enqueue queues replies for the next streaming calls. When the queue is
// empty a call is answered with a single "hello" text frame.
func (s *Server) Enqueue(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// FailRefresh makes the refresh endpoints answer with status until reset
// with 0.
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshErr = status
}

// Requests returns every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// StreamRequests returns the recorded streaming calls.
func (s *Server) StreamRequests() []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == StreamPath {
			out = append(out, r)
		}
	}
	return out
}

// RefreshCount returns the number of refresh calls served.
func (s *Server) RefreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, Request{Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
	s.mu.Unlock()

	switch {
	case r.URL.Path == StreamPath:
		s.handleStream(w, r)
	case r.URL.Path == "/refreshToken", r.URL.Path == "/token":
		s.handleRefresh(w, body)
	case r.URL.Path == "/getUsageLimits":
		writeJSON(w, http.StatusOK, map[string]any{
			"daysUntilReset": 12,
			"usageBreakdownList": []map[string]any{{
				"resourceType":              "CREDIT",
				"currentUsageWithPrecision": 12.5,
				"usageLimitWithPrecision":   50,
			}},
		})
	case strings.EqualFold(r.URL.Path, "/ListAvailableModels"):
		writeJSON(w, http.StatusOK, map[string]any{
			"models": []map[string]any{{"modelId": "claude-sonnet-4.5"}, {"modelId": "claude-haiku-4.5"}},
		})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, body []byte) {
	s.mu.Lock()
	s.refreshes++
	failStatus := s.refreshErr
	token := s.accessToken
	s.mu.Unlock()

	if failStatus != 0 {
		writeJSON(w, failStatus, map[string]string{"error": "invalid_grant"})
		return
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.Unmarshal(body, &req)
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  token,
		"refreshToken": req.RefreshToken,
		"expiresIn":    3600,
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reply := Reply{Frames: [][]byte{TextFrame("hello")}}
	if len(s.replies) > 0 {
		reply = s.replies[0]
		s.replies = s.replies[1:]
	}
	token := s.accessToken
	s.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if reply.Status == 0 && r.Header.Get("Authorization") != "Bearer "+token {
		reply = Reply{Status: http.StatusForbidden, Body: `{"message":"The bearer token included in the request is invalid."}`}
	}
	if reply.Status != 0 && reply.Status != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.Status)
		_, _ = io.WriteString(w, reply.Body)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.amazon.eventstream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, f := range reply.Frames {
		if _, err := w.Write(f); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// TextFrame is an assistant text event.
func TextFrame(text string) []byte {
	return jsonEvent(eventstream.EventAssistantResponse, map[string]any{"content": text})
}

// ReasoningFrame is a native reasoning event.
func ReasoningFrame(text string) []byte {
	return jsonEvent(eventstream.EventReasoningContent, map[string]any{"text": text})
}

// ToolFrames are the tool use events of one call: one per input fragment,
// then a stop event.
func ToolFrames(id, name string, fragments ...string) [][]byte {
	frames := make([][]byte, 0, len(fragments)+1)
	if len(fragments) == 0 {
		frames = append(frames, jsonEvent(eventstream.EventToolUse, map[string]any{"toolUseId": id, "name": name}))
	}
	for _, f := range fragments {
		frames = append(frames, jsonEvent(eventstream.EventToolUse, map[string]any{"toolUseId": id, "name": name, "input": f}))
	}
	return append(frames, jsonEvent(eventstream.EventToolUse, map[string]any{"toolUseId": id, "name": name, "stop": true}))
}

// UsageFrame is a message metadata event carrying token counts.
func UsageFrame(input, output int) []byte {
	return jsonEvent(eventstream.EventMessageMetadata, map[string]any{
		"usage": map[string]int{"inputTokens": input, "outputTokens": output},
	})
}

// ContextUsageFrame is a context usage percentage event.
func ContextUsageFrame(percent float64) []byte {
	return jsonEvent(eventstream.EventContextUsage, map[string]any{"contextUsagePercentage": percent})
}

// MeteringFrame is a credit charge event.
func MeteringFrame(credits float64) []byte {
	return jsonEvent(eventstream.EventMetering, map[string]any{"credits": credits, "unit": "credit"})
}

// ExceptionFrame is an in-stream exception.
func ExceptionFrame(exceptionType, message string) []byte {
	return eventstream.EncodeFrame([]eventstream.Header{
		{Name: ":message-type", Value: "exception"},
		{Name: ":exception-type", Value: exceptionType},
		{Name: ":content-type", Value: "application/json"},
	}, []byte(fmt.Sprintf(`{"message":%q}`, message)))
}

// Frames flattens frame groups into one list.
func Frames(groups ...any) [][]byte {
	var out [][]byte
	for _, g := range groups {
		switch v := g.(type) {
		case []byte:
			out = append(out, v)
		case [][]byte:
			out = append(out, v...)
		}
	}
	return out
}

func jsonEvent(eventType string, v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return eventstream.EncodeEvent(eventType, payload)
}
