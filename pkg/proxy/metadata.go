package proxy

import (
	"net/http"

	"kiro-hq/gateway/pkg/gateway"
	"kiro-hq/gateway/pkg/telemetry/logging"
)

// Annotate copies the caller facts recorded in audit traces from r onto in.
func Annotate(in *gateway.Inbound, r *http.Request) *gateway.Inbound {
	in.RequestID = logging.GetRequestID(r.Context())
	in.Path = r.URL.Path
	in.ClientIP = ClientIP(r)
	in.APIKey = ExtractAPIKey(r)
	return in
}
