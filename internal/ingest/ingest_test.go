package ingest

import (
	"strings"
	"testing"

	"github.com/alertbridge/alertbridge/pkg/protocol"
)

func TestNormalize_FullEntry(t *testing.T) {
	body := []byte(`{
		"alerts": [{
			"status": "firing",
			"labels": {"alertname": "HighCPU", "severity": "CRITICAL", "instance": "web-1:9100", "job": "node"},
			"annotations": {"description": "CPU above 95%", "summary": "High CPU"},
			"startsAt": "2024-03-01T10:00:00Z",
			"generatorURL": "http://grafana/d/abc",
			"fingerprint": "f00dcafe"
		}]
	}`)

	res, err := Normalize(body)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Dropped != 0 {
		t.Fatalf("Dropped: got %d, want 0", res.Dropped)
	}
	if len(res.Alerts) != 1 {
		t.Fatalf("Alerts: got %d, want 1", len(res.Alerts))
	}

	a := res.Alerts[0]
	if a.ID != "f00dcafe" {
		t.Errorf("ID: got %q, want f00dcafe", a.ID)
	}
	if a.Name != "HighCPU" {
		t.Errorf("Name: got %q", a.Name)
	}
	if a.Severity != protocol.SeverityCritical {
		t.Errorf("Severity: got %q, want critical (lower-cased)", a.Severity)
	}
	if a.Status != protocol.StatusFiring {
		t.Errorf("Status: got %q", a.Status)
	}
	if a.Instance != "web-1:9100" || a.Job != "node" {
		t.Errorf("Instance/Job: got %q/%q", a.Instance, a.Job)
	}
	if a.Description != "CPU above 95%" || a.Summary != "High CPU" {
		t.Errorf("annotations: got %q/%q", a.Description, a.Summary)
	}
	if a.StartsAt != "2024-03-01T10:00:00Z" {
		t.Errorf("StartsAt: got %q", a.StartsAt)
	}
	if a.Raw == nil {
		t.Error("Raw: missing")
	}
}

func TestNormalize_SeverityDefaults(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"missing", "", protocol.SeverityWarning},
		{"unrecognized", "page-me-now", protocol.SeverityWarning},
		{"mixed case high", "High", protocol.SeverityHigh},
		{"info", "info", protocol.SeverityInfo},
		{"warning", "warning", protocol.SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeSeverity(tt.label); got != tt.want {
				t.Errorf("normalizeSeverity(%q): got %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestNormalize_StatusDefaultsToFiring(t *testing.T) {
	body := []byte(`{"alerts": [{"labels": {"alertname": "NoStatus"}, "fingerprint": "aa"}]}`)

	res, err := Normalize(body)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Alerts[0].Status != protocol.StatusFiring {
		t.Errorf("Status: got %q, want firing", res.Alerts[0].Status)
	}
}

func TestNormalize_MissingFingerprintUsesHash(t *testing.T) {
	body := []byte(`{"alerts": [
		{"labels": {"alertname": "A", "instance": "i1"}, "startsAt": "2024-03-01T10:00:00Z"},
		{"labels": {"alertname": "A", "instance": "i1"}, "startsAt": "2024-03-01T10:00:00Z"}
	]}`)

	res, err := Normalize(body)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Alerts) != 2 {
		t.Fatalf("Alerts: got %d, want 2", len(res.Alerts))
	}
	if res.Alerts[0].ID == "" {
		t.Fatal("ID: empty, want derived hash")
	}
	// Identical inputs must derive identical identity so firing and
	// resolved records still match.
	if res.Alerts[0].ID != res.Alerts[1].ID {
		t.Errorf("hash not deterministic: %q vs %q", res.Alerts[0].ID, res.Alerts[1].ID)
	}
}

func TestNormalize_UnidentifiableEntryDroppedNotFatal(t *testing.T) {
	body := []byte(`{"alerts": [
		{"labels": {}, "annotations": {}},
		{"labels": {"alertname": "Kept"}, "fingerprint": "bb"}
	]}`)

	res, err := Normalize(body)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Dropped != 1 {
		t.Errorf("Dropped: got %d, want 1", res.Dropped)
	}
	if len(res.Alerts) != 1 || res.Alerts[0].Name != "Kept" {
		t.Errorf("surviving alerts: got %+v", res.Alerts)
	}
}

func TestNormalize_PreservesPayloadOrder(t *testing.T) {
	body := []byte(`{"alerts": [
		{"labels": {"alertname": "first"}, "fingerprint": "1"},
		{"labels": {"alertname": "second"}, "fingerprint": "2"},
		{"labels": {"alertname": "third"}, "fingerprint": "3"}
	]}`)

	res, err := Normalize(body)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, a := range res.Alerts {
		if a.Name != want[i] {
			t.Errorf("order[%d]: got %q, want %q", i, a.Name, want[i])
		}
	}
}

func TestNormalize_UnparseableStartsAtKeptVerbatim(t *testing.T) {
	body := []byte(`{"alerts": [{"labels": {"alertname": "A"}, "fingerprint": "cc", "startsAt": "yesterday-ish"}]}`)

	res, err := Normalize(body)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := res.Alerts[0].StartsAt; got != "yesterday-ish" {
		t.Errorf("StartsAt: got %q, want verbatim fallback", got)
	}
}

func TestNormalize_BadPayloadIsError(t *testing.T) {
	_, err := Normalize([]byte(`{not json`))
	if err == nil {
		t.Fatal("Normalize: want error for invalid JSON payload")
	}
	if !strings.Contains(err.Error(), "decode payload") {
		t.Errorf("err: got %v", err)
	}
}

func TestNormalize_EmptyAlertList(t *testing.T) {
	res, err := Normalize([]byte(`{"alerts": []}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Alerts) != 0 || res.Dropped != 0 {
		t.Errorf("got %d alerts, %d dropped, want 0/0", len(res.Alerts), res.Dropped)
	}
}
