package ingest

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"time"

	"github.com/alertbridge/alertbridge/pkg/protocol"
)

// Payload is the Alertmanager-shaped webhook body. Group-level fields other
// than the alert list are accepted and ignored.
type Payload struct {
	Alerts []json.RawMessage `json:"alerts"`
}

// entry is one alert record inside a Payload. Labels and annotations are
// user-defined; only alertname is reliably present.
type entry struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     string            `json:"startsAt"`
	GeneratorURL string            `json:"generatorURL"`
	Fingerprint  string            `json:"fingerprint"`
}

// Result is the outcome of normalising one webhook payload.
type Result struct {
	// Alerts holds the canonical records in payload order.
	Alerts []protocol.Alert

	// Dropped counts entries that could not be normalised. Each drop is
	// logged with its reason; a drop never fails the batch.
	Dropped int
}

// Normalize parses body as an Alertmanager webhook payload and converts
// every entry to a canonical Alert. Per-entry failures are logged and
// counted in Result.Dropped. An error is returned only when the payload
// itself is not valid JSON.
func Normalize(body []byte) (Result, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Result{}, fmt.Errorf("ingest: decode payload: %w", err)
	}

	res := Result{Alerts: make([]protocol.Alert, 0, len(p.Alerts))}
	for i, raw := range p.Alerts {
		a, err := normalizeEntry(raw)
		if err != nil {
			slog.Warn("ingest: dropping alert entry", "index", i, "err", err)
			res.Dropped++
			continue
		}
		res.Alerts = append(res.Alerts, a)
	}
	return res, nil
}

// normalizeEntry converts one raw payload fragment to a canonical Alert.
func normalizeEntry(raw json.RawMessage) (protocol.Alert, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return protocol.Alert{}, fmt.Errorf("decode entry: %w", err)
	}

	name := e.label("alertname")
	instance := e.label("instance")

	id := e.Fingerprint
	if id == "" {
		// No fingerprint from upstream — derive a stable identity so
		// firing and resolved records for the same alert still match.
		if name == "" && instance == "" {
			return protocol.Alert{}, fmt.Errorf("no fingerprint and no identifying labels")
		}
		id = hashID(name, instance, e.StartsAt)
	}

	// The raw fragment rides along untouched so fields the bridge does not
	// model survive for downstream consumers.
	var rawMap map[string]any
	if err := json.Unmarshal(raw, &rawMap); err != nil {
		return protocol.Alert{}, fmt.Errorf("decode entry: %w", err)
	}

	return protocol.Alert{
		ID:           id,
		Name:         name,
		Status:       normalizeStatus(e.Status),
		Severity:     normalizeSeverity(e.label("severity")),
		Instance:     instance,
		Job:          e.label("job"),
		Description:  e.annotation("description"),
		Summary:      e.annotation("summary"),
		StartsAt:     normalizeStartsAt(e.StartsAt),
		GeneratorURL: e.GeneratorURL,
		Raw:          rawMap,
	}, nil
}

func (e entry) label(name string) string {
	return e.Labels[name]
}

func (e entry) annotation(name string) string {
	return e.Annotations[name]
}

// normalizeSeverity lower-cases the label value and maps anything outside
// the known set to warning.
func normalizeSeverity(s string) string {
	switch strings.ToLower(s) {
	case protocol.SeverityCritical:
		return protocol.SeverityCritical
	case protocol.SeverityHigh:
		return protocol.SeverityHigh
	case protocol.SeverityInfo:
		return protocol.SeverityInfo
	default:
		return protocol.SeverityWarning
	}
}

// normalizeStatus defaults missing or unknown statuses to firing.
func normalizeStatus(s string) string {
	if strings.EqualFold(s, protocol.StatusResolved) {
		return protocol.StatusResolved
	}
	return protocol.StatusFiring
}

// normalizeStartsAt re-renders parseable timestamps in UTC RFC 3339 and
// keeps anything else verbatim for display.
func normalizeStartsAt(s string) string {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return s
}

// hashID derives a deterministic identity for entries without an upstream
// fingerprint.
func hashID(name, instance, startsAt string) string {
	h := fnv.New64a()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(instance))
	h.Write([]byte{0})
	h.Write([]byte(startsAt))
	return fmt.Sprintf("%016x", h.Sum64())
}
