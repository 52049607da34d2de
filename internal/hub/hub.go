package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alertbridge/alertbridge/internal/metrics"
	"github.com/alertbridge/alertbridge/pkg/protocol"
)

// ErrCapacityExceeded is returned by Add when the connection limit is
// reached. Callers must close the rejected transport with
// protocol.CloseCapacityFull so the remote end can tell "server full" from
// an auth failure or a normal close.
var ErrCapacityExceeded = errors.New("hub: connection capacity exceeded")

// Hub tracks live subscriber sessions and fans broadcasts out to them.
//
// Delivery is best-effort and isolated per session: a slow or broken
// subscriber is dropped after a bounded send timeout and never blocks or
// fails delivery to the others.
type Hub struct {
	max         int
	sendTimeout time.Duration
	workers     int

	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

// New creates a Hub allowing at most max concurrent sessions. sendTimeout
// bounds how long one broadcast waits on a single stalled session; workers
// bounds fan-out parallelism.
func New(max int, sendTimeout time.Duration, workers int) *Hub {
	if workers <= 0 {
		workers = 4
	}
	return &Hub{
		max:         max,
		sendTimeout: sendTimeout,
		workers:     workers,
		sessions:    make(map[*Session]struct{}),
	}
}

// Add registers a session, failing with ErrCapacityExceeded at the limit.
func (h *Hub) Add(s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.sessions) >= h.max {
		return ErrCapacityExceeded
	}
	h.sessions[s] = struct{}{}
	metrics.ConnectedClients.Set(float64(len(h.sessions)))
	return nil
}

// Remove unregisters a session and stops its write pump. Removing a session
// twice is a no-op.
func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; ok {
		delete(h.sessions, s)
		s.detach()
	}
	metrics.ConnectedClients.Set(float64(len(h.sessions)))
	h.mu.Unlock()
}

// Count returns the number of currently connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Broadcast delivers ev to every current session. Sessions whose buffers
// stay full past the send timeout are dropped from the set; delivery to the
// remaining sessions is unaffected.
func (h *Hub) Broadcast(ev protocol.ServerEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("hub: marshal broadcast", "type", ev.Type, "err", err)
		return
	}
	metrics.BroadcastsTotal.WithLabelValues(ev.Type).Inc()

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var g errgroup.Group
	g.SetLimit(h.workers)
	for _, s := range targets {
		s := s
		g.Go(func() error {
			h.sendWithTimeout(s, data)
			return nil
		})
	}
	g.Wait() //nolint:errcheck
}

// sendWithTimeout queues data on one session, waiting at most the configured
// send timeout before giving up and dropping the session.
func (h *Hub) sendWithTimeout(s *Session, data []byte) {
	if s.Queue(data) {
		return
	}

	t := time.NewTimer(h.sendTimeout)
	defer t.Stop()
	select {
	case s.send <- data:
	case <-s.done:
	case <-t.C:
		slog.Warn("hub: subscriber too slow, dropping session",
			"session", s.ID, "timeout", h.sendTimeout)
		metrics.SendFailuresTotal.Inc()
		h.Remove(s)
	}
}

// CloseAll signals every session with the given close code and empties the
// set. Used on server shutdown, where the code distinguishes a clean
// shutdown from error closes.
func (h *Hub) CloseAll(code int, reason string) {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
		delete(h.sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close(code, reason)
		s.detach()
	}
	metrics.ConnectedClients.Set(0)
}
