package control

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatpilot/chatpilot/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// handleLogStream upgrades to a websocket and pushes every log line of the
// session, from the first, as a text frame. The socket is closed normally
// once the session ends.
func (h *handlers) handleLogStream(w http.ResponseWriter, r *http.Request) {
	handle := handleOf(r)
	if _, err := h.sessions.Get(handle); err != nil {
		writeMappedError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("control", "Websocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the reader only notices the peer going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	lines, err := h.sessions.Follow(ctx, handle)
	if err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case line, ok := <-lines:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
