package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alertbridge/alertbridge/pkg/protocol"
)

const (
	// writeTimeout is the deadline for a single write to a subscriber.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often ping frames are sent. Must be less
	// than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-session outgoing message buffer depth.
	sendBufSize = 32

	// readLimit bounds inbound frames; subscribers only send small acks.
	readLimit = 1024
)

// Session is one live subscriber connection. Sessions are stateless relays:
// they carry no alert state of their own, the registry is the single source
// of truth.
type Session struct {
	// ID is a process-unique transport-level handle, used only for logging
	// and ack attribution.
	ID string

	EstablishedAt time.Time

	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewSession wraps an upgraded connection in a Session.
func NewSession(conn *websocket.Conn) *Session {
	return &Session{
		ID:            uuid.NewString(),
		EstablishedAt: time.Now().UTC(),
		conn:          conn,
		send:          make(chan []byte, sendBufSize),
		done:          make(chan struct{}),
	}
}

// Queue enqueues data for delivery without blocking. It returns false when
// the session's buffer is full.
func (s *Session) Queue(data []byte) bool {
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// Run starts the session's write pump and blocks in the read loop until the
// transport closes or errors. Inbound client messages are decoded and passed
// to onMessage; undecodable frames are logged and skipped.
func (s *Session) Run(onMessage func(protocol.ClientMessage)) {
	go s.writePump()
	s.readLoop(onMessage)
}

// Close signals the remote end with the given close code and tears down the
// transport. Safe to call multiple times and concurrently with Run.
func (s *Session) Close(code int, reason string) {
	deadline := time.Now().Add(writeTimeout)
	s.conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
		websocket.FormatCloseMessage(code, reason), deadline)
	s.conn.Close()
}

// detach marks the session as removed exactly once. The write pump and any
// in-flight broadcast sends observe done and stop; the send buffer itself is
// never closed, so concurrent senders cannot panic.
func (s *Session) detach() {
	s.once.Do(func() { close(s.done) })
}

// writePump drains the send buffer onto the connection and keeps the
// connection alive with periodic pings. Runs in its own goroutine.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			// Session was removed from the set.
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			s.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(protocol.CloseNormal, ""))
			return

		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop reads frames until the connection closes. Each decoded client
// message is handed to onMessage synchronously.
func (s *Session) readLoop(onMessage func(protocol.ClientMessage)) {
	defer s.conn.Close()

	s.conn.SetReadLimit(readLimit)
	s.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("hub: invalid message from subscriber", "session", s.ID, "err", err)
			continue
		}
		if onMessage != nil {
			onMessage(msg)
		}
	}
}
