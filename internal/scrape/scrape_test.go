package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const exposition = `# HELP alertbridge_active_alerts Number of active alerts held by the bridge.
# TYPE alertbridge_active_alerts gauge
alertbridge_active_alerts 3
# TYPE alertbridge_critical_alerts gauge
alertbridge_critical_alerts 1
# TYPE alertbridge_connected_clients gauge
alertbridge_connected_clients 2
# TYPE alertbridge_max_alerts gauge
alertbridge_max_alerts 1000
# TYPE alertbridge_max_connections gauge
alertbridge_max_connections 100
`

func TestScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(exposition)) //nolint:errcheck
	}))
	defer srv.Close()

	stats, err := New(srv.URL, "").Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}

	if stats.ActiveAlerts != 3 {
		t.Errorf("ActiveAlerts: got %v, want 3", stats.ActiveAlerts)
	}
	if stats.CriticalAlerts != 1 {
		t.Errorf("CriticalAlerts: got %v, want 1", stats.CriticalAlerts)
	}
	if stats.ConnectedClients != 2 {
		t.Errorf("ConnectedClients: got %v, want 2", stats.ConnectedClients)
	}
	if stats.MaxAlerts != 1000 || stats.MaxConnections != 100 {
		t.Errorf("limits: got %v/%v", stats.MaxAlerts, stats.MaxConnections)
	}
	if stats.ScrapedAt.IsZero() {
		t.Error("ScrapedAt: zero")
	}
}

func TestScrape_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(exposition)) //nolint:errcheck
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "sekrit").Scrape(context.Background()); err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if gotAuth != "Bearer sekrit" {
		t.Errorf("Authorization: got %q", gotAuth)
	}
}

func TestScrape_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "").Scrape(context.Background()); err == nil {
		t.Fatal("Scrape: want error for non-200 response")
	}
}

func TestScrape_MissingFamiliesReadAsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# TYPE alertbridge_active_alerts gauge\nalertbridge_active_alerts 5\n")) //nolint:errcheck
	}))
	defer srv.Close()

	stats, err := New(srv.URL, "").Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if stats.ActiveAlerts != 5 {
		t.Errorf("ActiveAlerts: got %v", stats.ActiveAlerts)
	}
	if stats.ConnectedClients != 0 || stats.MaxAlerts != 0 {
		t.Errorf("absent gauges: got %v/%v, want zeros", stats.ConnectedClients, stats.MaxAlerts)
	}
}
