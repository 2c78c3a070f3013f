package proxy

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"kiro-hq/gateway/pkg/gateway"
	"kiro-hq/gateway/pkg/translate"
)

// ProtocolForPath returns the protocol whose error envelope a path answers
// with. Only the Messages endpoint speaks Anthropic.
func ProtocolForPath(path string) translate.Protocol {
	if strings.HasSuffix(strings.TrimSuffix(path, "/"), "/messages") {
		return translate.ProtocolAnthropic
	}
	return translate.ProtocolOpenAI
}

// HandleError writes err to w in the envelope of protocol. Request errors
// keep their own status; everything else goes through gateway.Classify.
// Nothing is written for a failure already delivered in a stream or for a
// client that went away.
func HandleError(w http.ResponseWriter, r *http.Request, protocol translate.Protocol, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		writeOrLog(w, r, protocol, reqErr.Status, reqErr.Message, reqErr.Code)
		return
	}

	gwErr := gateway.Classify(err)
	if gwErr == nil || gwErr.Delivered || gwErr.Kind == gateway.KindCanceled {
		return
	}
	message := gwErr.Message
	if gwErr.Kind == gateway.KindInternal {
		message = "An internal error occurred. Please try again later."
	}
	writeOrLog(w, r, protocol, gwErr.Status, message, gwErr.Code())
}

func writeOrLog(w http.ResponseWriter, r *http.Request, protocol translate.Protocol, status int, message, code string) {
	if err := WriteError(w, protocol, status, message, code); err != nil {
		slog.DebugContext(r.Context(), "failed to write error response", "error", err)
	}
}
