package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alertbridge/alertbridge/internal/ingest"
	"github.com/alertbridge/alertbridge/internal/metrics"
	"github.com/alertbridge/alertbridge/internal/version"
	"github.com/alertbridge/alertbridge/pkg/protocol"
)

// maxWebhookBody bounds webhook payload size; Alertmanager batches are
// small, anything larger is misdirected traffic.
const maxWebhookBody = 4 << 20

// Router returns the HTTP API: webhook ingress, health, and metrics.
// CORS is wide open, matching the deployments this bridge fronts; restrict
// at the reverse proxy if needed.
func (b *Bridge) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Post("/webhook", b.handleWebhook)
	r.Get("/health", b.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// WSRouter returns the push-channel listener handler.
func (b *Bridge) WSRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", b.handleWS)
	return r
}

// handleWebhook accepts one Alertmanager-shaped POST. The response reports
// counts only and is decoupled from broadcast success — a failed delivery
// to some subscriber never fails the webhook.
func (b *Bridge) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(bearerToken(r)) {
		metrics.WebhooksTotal.WithLabelValues("unauthorized").Inc()
		jsonResp(w, http.StatusUnauthorized, errorResponse{
			Status: "error", Message: "invalid token",
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("error").Inc()
		jsonResp(w, http.StatusInternalServerError, errorResponse{
			Status: "error", Message: "read body: " + err.Error(),
		})
		return
	}

	res, err := ingest.Normalize(body)
	if err != nil {
		slog.Error("webhook: bad payload", "err", err)
		metrics.WebhooksTotal.WithLabelValues("error").Inc()
		jsonResp(w, http.StatusInternalServerError, errorResponse{
			Status: "error", Message: err.Error(),
		})
		return
	}
	if res.Dropped > 0 {
		metrics.EntriesDroppedTotal.Add(float64(res.Dropped))
	}

	active := b.Process(res)

	metrics.WebhooksTotal.WithLabelValues("ok").Inc()
	jsonResp(w, http.StatusOK, webhookResponse{
		Status:       "ok",
		Received:     len(res.Alerts),
		ActiveAlerts: active,
	})
}

// handleHealth reports bridge liveness and the current resource counts.
func (b *Bridge) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, healthResponse{
		Status:           "healthy",
		ActiveAlerts:     b.reg.Count(),
		CriticalAlerts:   b.reg.CriticalCount(),
		ConnectedClients: b.hub.Count(),
		MaxAlerts:        b.reg.Max(),
		MaxConnections:   b.maxConnections,
		Uptime:           b.Uptime().Truncate(1e9).String(),
		Version:          version.Version,
	})
}

// bearerToken extracts the shared secret from the Authorization header.
// Both "Bearer <token>" and a bare token are accepted.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return h
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func marshalEvent(ev protocol.ServerEvent) ([]byte, error) {
	return json.Marshal(ev)
}
