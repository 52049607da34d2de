package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alertbridge/alertbridge/internal/config"
	"github.com/alertbridge/alertbridge/internal/hub"
	"github.com/alertbridge/alertbridge/internal/ingest"
	"github.com/alertbridge/alertbridge/internal/metrics"
	"github.com/alertbridge/alertbridge/internal/registry"
	"github.com/alertbridge/alertbridge/pkg/protocol"
)

// AckFunc is called for every acknowledgement received from a subscriber.
// The bridge itself only logs and counts acks; a deployment can plug in a
// sink that persists them.
type AckFunc func(sessionID, alertID string)

// Bridge wires webhook ingestion to registry updates and push broadcast.
//
// A single mutex serialises webhook batches against session attachment, so
// the snapshot a joining session receives always reflects a fully applied
// batch — never a torn one. Broadcast sends inside the critical section are
// bounded by the hub's per-session send timeout.
type Bridge struct {
	reg            *registry.Registry
	hub            *hub.Hub
	maxConnections int
	startedAt      time.Time
	ackFn          AckFunc

	// mu covers the registry-mutate + broadcast sequence and the
	// attach + init-snapshot sequence.
	mu sync.Mutex

	// authMu guards the reloadable auth settings.
	authMu      sync.RWMutex
	authEnabled bool
	token       string
}

// New creates a Bridge from cfg. ackFn may be nil.
func New(cfg *config.Config, ackFn AckFunc) *Bridge {
	b := &Bridge{
		reg: registry.New(cfg.Limits.MaxAlerts),
		hub: hub.New(cfg.Limits.MaxConnections,
			cfg.Broadcast.SendTimeout, cfg.Broadcast.Workers),
		maxConnections: cfg.Limits.MaxConnections,
		startedAt:      time.Now().UTC(),
		ackFn:          ackFn,
	}
	b.setAuth(cfg.Auth)

	metrics.MaxAlerts.Set(float64(cfg.Limits.MaxAlerts))
	metrics.MaxConnections.Set(float64(cfg.Limits.MaxConnections))
	return b
}

// ApplyConfig adopts the reloadable parts of a fresh config: auth settings.
// Ports, limits, and broadcast tuning stay as they were at startup.
func (b *Bridge) ApplyConfig(cfg *config.Config) {
	b.setAuth(cfg.Auth)
	slog.Info("bridge: auth settings applied", "auth_enabled", cfg.Auth.Enabled)
}

func (b *Bridge) setAuth(a config.AuthConfig) {
	b.authMu.Lock()
	b.authEnabled = a.Enabled
	b.token = a.Token()
	b.authMu.Unlock()
}

// authorized reports whether the presented token passes the shared-secret
// check. With auth disabled every caller passes.
func (b *Bridge) authorized(presented string) bool {
	b.authMu.RLock()
	defer b.authMu.RUnlock()
	if !b.authEnabled {
		return true
	}
	return presented != "" && presented == b.token
}

// Registry exposes the alert registry for health and metrics reads.
func (b *Bridge) Registry() *registry.Registry { return b.reg }

// Hub exposes the connection set for health and metrics reads.
func (b *Bridge) Hub() *hub.Hub { return b.hub }

// Process applies one normalised webhook batch: registry mutations first,
// then one alert event per record in batch order, then a single sync
// snapshot that lets already-connected clients repair any missed events.
// It returns the number of active alerts after the batch.
func (b *Bridge) Process(res ingest.Result) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, a := range res.Alerts {
		switch a.Status {
		case protocol.StatusResolved:
			if b.reg.Remove(a.ID) {
				slog.Info("alert resolved",
					"id", a.ID, "name", a.Name, "instance", a.Instance)
			}
		default:
			if evicted := b.reg.Upsert(a); evicted != "" {
				metrics.EvictionsTotal.Inc()
			}
			slog.Info("alert firing",
				"id", a.ID, "name", a.Name,
				"severity", a.Severity, "instance", a.Instance)
		}
		metrics.AlertsIngestedTotal.WithLabelValues(a.Status).Inc()
	}

	for _, a := range res.Alerts {
		ev := protocol.NewEvent(protocol.EventAlert)
		ev.Data = &a
		b.hub.Broadcast(ev)
	}

	snap := protocol.NewEvent(protocol.EventSync)
	snap.Alerts = b.reg.Snapshot()
	b.hub.Broadcast(snap)

	active := b.reg.Count()
	metrics.ActiveAlerts.Set(float64(active))
	metrics.CriticalAlerts.Set(float64(b.reg.CriticalCount()))
	return active
}

// attach admits a session: capacity check, registration, and the init
// snapshot queued atomically with respect to webhook batches.
func (b *Bridge) attach(s *hub.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.hub.Add(s); err != nil {
		return err
	}

	init := protocol.NewEvent(protocol.EventInit)
	init.Alerts = b.reg.Snapshot()
	data, err := marshalEvent(init)
	if err != nil {
		b.hub.Remove(s)
		return err
	}
	// A fresh session's buffer is empty, so this cannot fail.
	s.Queue(data)
	return nil
}

// handleClientMessage dispatches one inbound subscriber message. Unknown
// types are ignored for forward compatibility.
func (b *Bridge) handleClientMessage(s *hub.Session, msg protocol.ClientMessage) {
	switch msg.Type {
	case protocol.MessageAck:
		if msg.AlertID == "" {
			return
		}
		metrics.AcksTotal.Inc()
		slog.Debug("ack received", "session", s.ID, "alert_id", msg.AlertID)
		if b.ackFn != nil {
			b.ackFn(s.ID, msg.AlertID)
		}
	default:
		slog.Debug("ignoring unknown client message",
			"session", s.ID, "type", msg.Type)
	}
}

// Shutdown closes every active session with a clean going-away code.
func (b *Bridge) Shutdown() {
	b.hub.CloseAll(protocol.CloseGoingAway, "server shutting down")
}

// Uptime returns how long the bridge has been running.
func (b *Bridge) Uptime() time.Duration {
	return time.Since(b.startedAt)
}
