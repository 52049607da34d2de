package protocol

import "time"

// Alert severities, lowest to highest. Unrecognised values normalise to
// SeverityWarning at the ingestion boundary.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert statuses.
const (
	StatusFiring   = "firing"
	StatusResolved = "resolved"
)

// Server-to-client event types.
const (
	EventInit  = "init"  // full snapshot, sent once on attach
	EventSync  = "sync"  // full snapshot, sent after every webhook batch
	EventAlert = "alert" // single changed alert
)

// Client-to-server message types.
const (
	MessageAck = "ack"
)

// WebSocket close codes used by the bridge. Distinct codes let a subscriber
// tell "server full" from "bad token" from a clean shutdown.
const (
	CloseNormal       = 1000 // client-initiated close
	CloseGoingAway    = 1001 // server shutdown
	CloseAuthFailed   = 1008 // token mismatch (policy violation)
	CloseCapacityFull = 1013 // connection limit reached (try again later)
)

// Alert is the canonical unit of state relayed by the bridge. The identity
// key is ID; two firing alerts with the same ID overwrite, never merge.
type Alert struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Severity    string `json:"severity"`
	Instance    string `json:"instance"`
	Job         string `json:"job"`
	Description string `json:"description"`
	Summary     string `json:"summary"`

	// StartsAt is the upstream start time in RFC 3339 form. When the
	// upstream value does not parse it is carried verbatim for display.
	StartsAt     string `json:"starts_at"`
	GeneratorURL string `json:"generator_url"`

	// Raw is the original payload fragment, kept opaque so fields the
	// bridge does not model survive the round trip.
	Raw map[string]any `json:"raw,omitempty"`
}

// StartTime returns the parsed StartsAt, or the zero time when the upstream
// value was not RFC 3339. Eviction ordering treats unparseable times as
// oldest.
func (a Alert) StartTime() time.Time {
	t, err := time.Parse(time.RFC3339, a.StartsAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ServerEvent is the envelope for every server-to-client push message.
// Init and sync events carry Alerts; alert events carry Data.
type ServerEvent struct {
	Type      string  `json:"type"`
	Alerts    []Alert `json:"alerts,omitempty"`
	Data      *Alert  `json:"data,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// NewEvent builds a ServerEvent of the given type stamped with the current
// time.
func NewEvent(typ string) ServerEvent {
	return ServerEvent{Type: typ, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// ClientMessage is the envelope for every client-to-server message. Only
// acks are defined today; unknown types are ignored by the server.
type ClientMessage struct {
	Type    string `json:"type"`
	AlertID string `json:"alert_id,omitempty"`
}
