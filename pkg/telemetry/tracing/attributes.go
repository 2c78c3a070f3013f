package tracing

// Span attribute keys shared by the gateway, upstream client and token
// manager. Keys outside the OpenTelemetry semantic conventions use the
// "kiro." prefix.
const (
	// Request attributes
	AttrProtocol       = "kiro.protocol"
	AttrRequestedModel = "kiro.model.requested"
	AttrResolvedModel  = "kiro.model.resolved"
	AttrStream         = "kiro.stream"
	AttrAccountID      = "kiro.account.id"
	AttrHTTPStatus     = "http.response.status_code"

	// Token attributes
	AttrInputTokens  = "kiro.tokens.input"
	AttrOutputTokens = "kiro.tokens.output"

	// Upstream attributes
	AttrEndpoint = "kiro.upstream.endpoint"
	AttrStatus   = "kiro.upstream.status"
	AttrAttempts = "kiro.upstream.attempts"

	// Auth attributes
	AttrAuthMethod = "kiro.auth.method"
	AttrAuthRegion = "kiro.auth.region"

	// Error attributes
	AttrError     = "error"
	AttrErrorKind = "kiro.error.kind"
)
