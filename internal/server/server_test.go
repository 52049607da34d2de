package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alertbridge/alertbridge/internal/config"
	"github.com/alertbridge/alertbridge/internal/server"
	"github.com/alertbridge/alertbridge/pkg/protocol"
)

// --- helpers ----------------------------------------------------------------

func testConfig(maxAlerts, maxConns int, auth bool) *config.Config {
	return &config.Config{
		Host:     "127.0.0.1",
		HTTPPort: 8080,
		WSPort:   8081,
		Auth:     config.AuthConfig{Enabled: auth},
		Limits:   config.LimitsConfig{MaxAlerts: maxAlerts, MaxConnections: maxConns},
		Broadcast: config.BroadcastConfig{
			Workers:     2,
			SendTimeout: 200 * time.Millisecond,
		},
		Log: config.LogConfig{Level: "info"},
	}
}

// startBridge serves the HTTP API and push channel from one Bridge.
func startBridge(t *testing.T, cfg *config.Config, ackFn server.AckFunc) (b *server.Bridge, httpURL, wsURL string) {
	t.Helper()

	b = server.New(cfg, ackFn)
	api := httptest.NewServer(b.Router())
	push := httptest.NewServer(b.WSRouter())
	t.Cleanup(func() {
		b.Shutdown()
		api.Close()
		push.Close()
	})

	return b, api.URL, "ws" + strings.TrimPrefix(push.URL, "http") + "/ws"
}

func postWebhook(t *testing.T, url, token string, payload string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url+"/webhook", bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /webhook: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body) //nolint:errcheck
	return resp, body
}

func dialWS(t *testing.T, wsURL, token string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) protocol.ServerEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var ev protocol.ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return ev
}

func firingPayload(fingerprint, severity string) string {
	return `{"alerts": [{
		"status": "firing",
		"labels": {"alertname": "TestAlert", "severity": "` + severity + `", "instance": "web-1"},
		"annotations": {"summary": "it broke"},
		"startsAt": "2024-03-01T10:00:00Z",
		"fingerprint": "` + fingerprint + `"
	}]}`
}

func resolvedPayload(fingerprint string) string {
	return `{"alerts": [{
		"status": "resolved",
		"labels": {"alertname": "TestAlert"},
		"fingerprint": "` + fingerprint + `"
	}]}`
}

// --- tests ------------------------------------------------------------------

func TestEndToEnd_FiringInitResolve(t *testing.T) {
	b, httpURL, wsURL := startBridge(t, testConfig(100, 10, false), nil)

	// Fire a1.
	resp, body := postWebhook(t, httpURL, "", firingPayload("a1", "critical"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if body["status"] != "ok" || body["received"] != float64(1) || body["active_alerts"] != float64(1) {
		t.Fatalf("webhook response: got %v", body)
	}
	if b.Registry().Count() != 1 {
		t.Fatalf("registry: got %d entries, want 1", b.Registry().Count())
	}

	// A freshly attached session immediately receives the snapshot.
	conn := dialWS(t, wsURL, "")
	init := readEvent(t, conn)
	if init.Type != protocol.EventInit {
		t.Fatalf("first event: got %q, want init", init.Type)
	}
	if len(init.Alerts) != 1 || init.Alerts[0].ID != "a1" {
		t.Fatalf("init alerts: got %+v", init.Alerts)
	}
	if init.Alerts[0].Severity != protocol.SeverityCritical {
		t.Errorf("init severity: got %q", init.Alerts[0].Severity)
	}

	// Resolve a1: active session sees the resolved event, then the sync
	// snapshot without it.
	_, body = postWebhook(t, httpURL, "", resolvedPayload("a1"))
	if body["active_alerts"] != float64(0) {
		t.Fatalf("active after resolve: got %v", body["active_alerts"])
	}

	ev := readEvent(t, conn)
	if ev.Type != protocol.EventAlert || ev.Data == nil {
		t.Fatalf("event after resolve: got %+v", ev)
	}
	if ev.Data.ID != "a1" || ev.Data.Status != protocol.StatusResolved {
		t.Errorf("resolved event: got %+v", ev.Data)
	}

	sync := readEvent(t, conn)
	if sync.Type != protocol.EventSync {
		t.Fatalf("expected sync after batch, got %q", sync.Type)
	}
	if len(sync.Alerts) != 0 {
		t.Errorf("sync alerts: got %d, want 0", len(sync.Alerts))
	}

	if b.Registry().Count() != 0 {
		t.Errorf("registry after resolve: got %d, want 0", b.Registry().Count())
	}
}

func TestWebhook_BatchEventOrder(t *testing.T) {
	_, httpURL, wsURL := startBridge(t, testConfig(100, 10, false), nil)

	conn := dialWS(t, wsURL, "")
	if ev := readEvent(t, conn); ev.Type != protocol.EventInit {
		t.Fatalf("first event: got %q", ev.Type)
	}

	payload := `{"alerts": [
		{"status": "firing", "labels": {"alertname": "one"}, "fingerprint": "b1"},
		{"status": "firing", "labels": {"alertname": "two"}, "fingerprint": "b2"}
	]}`
	_, body := postWebhook(t, httpURL, "", payload)
	if body["received"] != float64(2) {
		t.Fatalf("received: got %v", body["received"])
	}

	// Alert events arrive in payload order, then one sync.
	first := readEvent(t, conn)
	second := readEvent(t, conn)
	sync := readEvent(t, conn)

	if first.Data == nil || first.Data.ID != "b1" {
		t.Errorf("first event: got %+v", first.Data)
	}
	if second.Data == nil || second.Data.ID != "b2" {
		t.Errorf("second event: got %+v", second.Data)
	}
	if sync.Type != protocol.EventSync || len(sync.Alerts) != 2 {
		t.Errorf("sync: got type %q with %d alerts", sync.Type, len(sync.Alerts))
	}
}

func TestWebhook_MalformedPayload(t *testing.T) {
	_, httpURL, _ := startBridge(t, testConfig(100, 10, false), nil)

	resp, body := postWebhook(t, httpURL, "", `{not json`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", resp.StatusCode)
	}
	if body["status"] != "error" || body["message"] == "" {
		t.Errorf("body: got %v", body)
	}
}

func TestWebhook_AuthEnforced(t *testing.T) {
	t.Setenv("AUTH_TOKEN", "sekrit")
	_, httpURL, _ := startBridge(t, testConfig(100, 10, true), nil)

	resp, _ := postWebhook(t, httpURL, "", firingPayload("a1", "warning"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: got %d, want 401", resp.StatusCode)
	}

	resp, _ = postWebhook(t, httpURL, "wrong", firingPayload("a1", "warning"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token: got %d, want 401", resp.StatusCode)
	}

	resp, body := postWebhook(t, httpURL, "sekrit", firingPayload("a1", "warning"))
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("valid token: got %d %v", resp.StatusCode, body)
	}
}

func TestWS_CapacityRejectedWithDistinctCode(t *testing.T) {
	_, _, wsURL := startBridge(t, testConfig(100, 1, false), nil)

	first := dialWS(t, wsURL, "")
	if ev := readEvent(t, first); ev.Type != protocol.EventInit {
		t.Fatalf("first client init: got %q", ev.Type)
	}

	second := dialWS(t, wsURL, "")
	second.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, _, err := second.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("second client: got %v, want CloseError", err)
	}
	if closeErr.Code != protocol.CloseCapacityFull {
		t.Errorf("close code: got %d, want %d", closeErr.Code, protocol.CloseCapacityFull)
	}
}

func TestWS_AuthRejectedWithDistinctCode(t *testing.T) {
	t.Setenv("AUTH_TOKEN", "sekrit")
	_, _, wsURL := startBridge(t, testConfig(100, 10, true), nil)

	conn := dialWS(t, wsURL, "wrong")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("got %v, want CloseError", err)
	}
	if closeErr.Code != protocol.CloseAuthFailed {
		t.Errorf("close code: got %d, want %d", closeErr.Code, protocol.CloseAuthFailed)
	}

	// With the right token the session reaches Active and gets its init.
	ok1 := dialWS(t, wsURL, "sekrit")
	if ev := readEvent(t, ok1); ev.Type != protocol.EventInit {
		t.Errorf("authed client: got %q, want init", ev.Type)
	}
}

func TestWS_AckReachesSink(t *testing.T) {
	acks := make(chan string, 1)
	_, _, wsURL := startBridge(t, testConfig(100, 10, false),
		func(sessionID, alertID string) { acks <- alertID })

	conn := dialWS(t, wsURL, "")
	readEvent(t, conn) // init

	msg, _ := json.Marshal(protocol.ClientMessage{Type: protocol.MessageAck, AlertID: "a1"})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	select {
	case id := <-acks:
		if id != "a1" {
			t.Errorf("ack id: got %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ack never reached the sink")
	}
}

func TestHealth(t *testing.T) {
	_, httpURL, wsURL := startBridge(t, testConfig(42, 7, false), nil)

	conn := dialWS(t, wsURL, "")
	readEvent(t, conn) // init, so the session is counted

	resp, err := http.Get(httpURL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status: got %v", body["status"])
	}
	if body["max_alerts"] != float64(42) || body["max_connections"] != float64(7) {
		t.Errorf("limits: got %v/%v", body["max_alerts"], body["max_connections"])
	}
	if body["connected_clients"] != float64(1) {
		t.Errorf("connected_clients: got %v, want 1", body["connected_clients"])
	}
	if body["version"] == "" {
		t.Error("version: missing")
	}
}

func TestMetricsExposition(t *testing.T) {
	_, httpURL, _ := startBridge(t, testConfig(100, 10, false), nil)

	postWebhook(t, httpURL, "", firingPayload("m1", "critical"))

	resp, err := http.Get(httpURL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body) //nolint:errcheck
	text := buf.String()

	for _, want := range []string{
		"alertbridge_active_alerts",
		"alertbridge_connected_clients",
		"alertbridge_max_alerts",
		"alertbridge_max_connections",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %s", want)
		}
	}
}
