package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"kiro-hq/gateway/pkg/proxy/types"
)

const (
	liveBuffer       = 64
	liveWriteTimeout = 10 * time.Second
	livePingInterval = 30 * time.Second
)

// The admin token already gates the route, so any origin may connect.
var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// live streams every recorded trace to a websocket client as a JSON text
// message. Bodies are stripped; GET /admin/logs?bodies=true returns them.
//
// The client sends nothing. Anything it sends is discarded, and a read
// error ends the stream.
func (h *AdminHandler) live(w http.ResponseWriter, r *http.Request) {
	if h.Recorder == nil {
		adminError(w, http.StatusServiceUnavailable, "request log is not configured", types.CodeServiceUnavailable)
		return
	}

	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		h.Logger.Debug("live feed upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	traces, cancel := h.Recorder.Subscribe(liveBuffer)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()

	h.Logger.Info("live feed connected", "remote", r.RemoteAddr)
	defer h.Logger.Info("live feed disconnected", "remote", r.RemoteAddr)

	for {
		select {
		case t, ok := <-traces:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(liveWriteTimeout))
				return
			}
			t.RequestBody, t.UpstreamPayload, t.ResponseBody = "", "", ""
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(t); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
