package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/alertbridge/alertbridge/internal/hub"
	"github.com/alertbridge/alertbridge/internal/metrics"
	"github.com/alertbridge/alertbridge/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins — callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades a subscriber connection and serves its session.
//
// Per-session states: Connecting -> Authenticating -> Active -> Closed.
// Auth and capacity failures go straight to Closed with distinct close
// codes so the remote end can tell them apart. Blocks until the session's
// transport closes.
func (b *Bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	s := hub.NewSession(conn)

	if !b.authorized(bearerToken(r)) {
		slog.Warn("subscriber rejected: authentication failed", "session", s.ID)
		metrics.SessionsRejectedTotal.WithLabelValues("auth").Inc()
		s.Close(protocol.CloseAuthFailed, "authentication failed")
		return
	}

	if err := b.attach(s); err != nil {
		if errors.Is(err, hub.ErrCapacityExceeded) {
			slog.Warn("subscriber rejected: connection limit reached",
				"session", s.ID, "max", b.maxConnections)
			metrics.SessionsRejectedTotal.WithLabelValues("capacity").Inc()
			s.Close(protocol.CloseCapacityFull, "max connections limit reached")
			return
		}
		slog.Error("subscriber attach failed", "session", s.ID, "err", err)
		s.Close(protocol.CloseAuthFailed, "attach failed")
		return
	}

	slog.Info("subscriber connected",
		"session", s.ID, "remote", r.RemoteAddr, "total", b.hub.Count())

	s.Run(func(msg protocol.ClientMessage) {
		b.handleClientMessage(s, msg)
	})

	b.hub.Remove(s)
	slog.Info("subscriber disconnected",
		"session", s.ID, "total", b.hub.Count())
}
