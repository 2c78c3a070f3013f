package audit

import (
	"context"
	"time"
)

// Trace is the audit record of one gateway request.
type Trace struct {
	// ID is the trace id, also returned to the caller in X-Request-ID.
	ID   string    `json:"id"`
	Time time.Time `json:"time"`

	Protocol       string `json:"protocol"`
	Path           string `json:"path"`
	RequestedModel string `json:"requested_model"`
	ResolvedModel  string `json:"resolved_model"`
	Stream         bool   `json:"stream"`

	AccountID      string `json:"account_id,omitempty"`
	Endpoint       string `json:"endpoint,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	Attempts       int    `json:"attempts,omitempty"`

	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Credits      float64 `json:"credits"`
	ToolCalls    int     `json:"tool_calls"`

	Latency time.Duration `json:"latency"`

	// Status is the HTTP status returned to the caller.
	Status    int    `json:"status"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	ClientIP string `json:"client_ip,omitempty"`
	APIKey   string `json:"api_key,omitempty"`

	// Bodies are stored separately from the request log and may be truncated.
	RequestBody     string `json:"request_body,omitempty"`
	UpstreamPayload string `json:"upstream_payload,omitempty"`
	ResponseBody    string `json:"response_body,omitempty"`
}

// Failed reports whether the request ended in an error.
func (t *Trace) Failed() bool {
	return t.Error != "" || t.Status >= 400
}

// Query filters traces. Zero fields do not filter.
type Query struct {
	Since     *time.Time
	Until     *time.Time
	AccountID string
	Model     string
	Protocol  string

	// Status is "success", "error" or empty.
	Status string

	// WithBodies joins the stored request and response bodies.
	WithBodies bool

	// Limit defaults to 100.
	Limit  int
	Offset int
}

// Store persists traces.
type Store interface {
	InsertTrace(ctx context.Context, t *Trace) error
	QueryTraces(ctx context.Context, q Query) ([]*Trace, error)
	CountTraces(ctx context.Context, q Query) (int64, error)

	// PruneRequestLogs keeps the newest keep request log rows.
	PruneRequestLogs(ctx context.Context, keep int) (int64, error)

	// PruneTraceBodies keeps the bodies of the newest keep traces.
	PruneTraceBodies(ctx context.Context, keep int) (int64, error)
}
