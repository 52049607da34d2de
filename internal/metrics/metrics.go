// Package metrics provides Prometheus metrics for the alert bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "alertbridge"

// Registry and capacity gauges. These back the flat counters exposed on
// GET /metrics and mirror the fields of the health endpoint.
var (
	// ActiveAlerts tracks the number of firing alerts currently held.
	ActiveAlerts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_alerts",
		Help:      "Number of firing alerts currently in the registry",
	})

	// CriticalAlerts tracks the number of held alerts at critical severity.
	CriticalAlerts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "critical_alerts",
		Help:      "Number of critical-severity alerts currently in the registry",
	})

	// ConnectedClients tracks live subscriber sessions.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected_clients",
		Help:      "Number of currently connected subscriber sessions",
	})

	// MaxAlerts exports the configured registry capacity.
	MaxAlerts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "max_alerts",
		Help:      "Configured registry capacity",
	})

	// MaxConnections exports the configured connection capacity.
	MaxConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "max_connections",
		Help:      "Configured subscriber connection capacity",
	})
)

// Webhook ingestion metrics.
var (
	// WebhooksTotal counts webhook requests by outcome (ok, error, unauthorized).
	WebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "requests_total",
		Help:      "Total webhook requests by outcome",
	}, []string{"outcome"})

	// AlertsIngestedTotal counts normalised alert records by status.
	AlertsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "alerts_total",
		Help:      "Total alert records processed by status",
	}, []string{"status"})

	// EntriesDroppedTotal counts payload entries the normaliser rejected.
	EntriesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "entries_dropped_total",
		Help:      "Total payload entries dropped during normalisation",
	})

	// EvictionsTotal counts registry entries evicted at capacity.
	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registry_evictions_total",
		Help:      "Total alerts evicted from the registry at capacity",
	})
)

// Push channel metrics.
var (
	// BroadcastsTotal counts events broadcast to all sessions, by type.
	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "push",
		Name:      "broadcasts_total",
		Help:      "Total events broadcast by event type",
	}, []string{"type"})

	// SendFailuresTotal counts per-session delivery failures that caused a
	// session to be dropped.
	SendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "push",
		Name:      "send_failures_total",
		Help:      "Total per-session send failures leading to disconnect",
	})

	// SessionsRejectedTotal counts subscribe attempts rejected before
	// reaching Active, by reason (capacity, auth).
	SessionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "push",
		Name:      "sessions_rejected_total",
		Help:      "Total subscribe attempts rejected by reason",
	}, []string{"reason"})

	// AcksTotal counts acknowledgements received from subscribers.
	AcksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "push",
		Name:      "acks_total",
		Help:      "Total ack messages received from subscribers",
	})
)
