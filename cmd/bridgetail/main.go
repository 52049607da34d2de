// Command bridgetail is a console subscriber for the alert bridge. It
// follows the push feed over a reconnecting WebSocket and logs every alert
// transition, optionally acknowledging alerts as they arrive and showing
// bridge-side stats scraped from the metrics endpoint.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alertbridge/alertbridge/internal/scrape"
	"github.com/alertbridge/alertbridge/pkg/client"
	"github.com/alertbridge/alertbridge/pkg/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:8081/ws", "bridge push channel URL")
	token := flag.String("token", os.Getenv("AUTH_TOKEN"), "shared secret (defaults to AUTH_TOKEN)")
	retry := flag.Duration("retry", client.DefaultRetryDelay, "delay between reconnect attempts")
	autoAck := flag.Bool("ack", false, "acknowledge every alert on arrival")
	metricsURL := flag.String("metrics", "", "bridge metrics URL to poll, e.g. http://localhost:8080/metrics (empty disables)")
	metricsEvery := flag.Duration("metrics-interval", 30*time.Second, "bridge metrics poll interval")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	view := &alertView{alerts: make(map[string]protocol.Alert)}
	c := client.New(client.Options{
		URL:        *url,
		Token:      *token,
		RetryDelay: *retry,
	}, view)
	if *autoAck {
		view.ack = c.SendAck
	}

	if *metricsURL != "" {
		go pollStats(ctx, scrape.New(*metricsURL, *token), *metricsEvery)
	}

	slog.Info("bridgetail starting", "url", *url)
	c.Run(ctx)
	slog.Info("bridgetail stopped")
}

// alertView is the client.Handler keeping a local mirror of the registry.
type alertView struct {
	mu     sync.Mutex
	alerts map[string]protocol.Alert
	ack    func(alertID string)
}

func (v *alertView) OnConnectionChange(connected bool) {
	if connected {
		slog.Info("connected to bridge")
	} else {
		slog.Warn("disconnected from bridge")
	}
}

func (v *alertView) OnEvent(ev protocol.ServerEvent) {
	switch ev.Type {
	case protocol.EventInit, protocol.EventSync:
		v.replace(ev.Alerts)
		slog.Info("snapshot received", "type", ev.Type, "active", len(ev.Alerts))

	case protocol.EventAlert:
		if ev.Data == nil {
			return
		}
		v.apply(*ev.Data)
	}
}

// replace swaps the whole local view for a snapshot.
func (v *alertView) replace(alerts []protocol.Alert) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alerts = make(map[string]protocol.Alert, len(alerts))
	for _, a := range alerts {
		v.alerts[a.ID] = a
	}
}

// apply folds one alert event into the local view.
func (v *alertView) apply(a protocol.Alert) {
	v.mu.Lock()
	if a.Status == protocol.StatusResolved {
		delete(v.alerts, a.ID)
	} else {
		v.alerts[a.ID] = a
	}
	total := len(v.alerts)
	ack := v.ack
	v.mu.Unlock()

	if a.Status == protocol.StatusResolved {
		slog.Info("RESOLVED", "name", a.Name, "instance", a.Instance, "active", total)
	} else {
		slog.Info("FIRING",
			"name", a.Name,
			"severity", a.Severity,
			"instance", a.Instance,
			"summary", a.Summary,
			"active", total,
		)
	}

	if ack != nil {
		ack(a.ID)
	}
}

// pollStats logs bridge-side gauges on a fixed interval until ctx ends.
func pollStats(ctx context.Context, s *scrape.Scraper, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			stats, err := s.Scrape(ctx)
			if err != nil {
				slog.Warn("bridge stats unavailable", "err", err)
				continue
			}
			slog.Info("bridge stats",
				"active_alerts", stats.ActiveAlerts,
				"critical_alerts", stats.CriticalAlerts,
				"connected_clients", stats.ConnectedClients,
				"max_alerts", stats.MaxAlerts,
				"max_connections", stats.MaxConnections,
			)
		}
	}
}
