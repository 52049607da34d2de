package scrape

import (
	"context"
	"fmt"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const defaultTimeout = 10 * time.Second

// Bridge metric names we track.
const (
	metricActiveAlerts     = "alertbridge_active_alerts"
	metricCriticalAlerts   = "alertbridge_critical_alerts"
	metricConnectedClients = "alertbridge_connected_clients"
	metricMaxAlerts        = "alertbridge_max_alerts"
	metricMaxConnections   = "alertbridge_max_connections"
)

// Stats holds the bridge-side gauges from one scrape of /metrics.
type Stats struct {
	ActiveAlerts     float64
	CriticalAlerts   float64
	ConnectedClients float64
	MaxAlerts        float64
	MaxConnections   float64
	ScrapedAt        time.Time
}

// Scraper periodically fetches the bridge's Prometheus exposition so a
// subscriber can show server-side state next to its local view.
type Scraper struct {
	url    string
	token  string
	client *http.Client
}

// New creates a Scraper for the bridge metrics endpoint, e.g.
// http://bridge:8080/metrics. token is sent as a Bearer header when set.
func New(url, token string) *Scraper {
	return &Scraper{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// Scrape fetches and parses the exposition once.
func (s *Scraper) Scrape(ctx context.Context) (*Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("scrape: build request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape %q: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape %q: unexpected status %d", s.url, resp.StatusCode)
	}

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("scrape %q: parse exposition: %w", s.url, err)
	}

	return &Stats{
		ActiveAlerts:     gaugeValue(mfs[metricActiveAlerts]),
		CriticalAlerts:   gaugeValue(mfs[metricCriticalAlerts]),
		ConnectedClients: gaugeValue(mfs[metricConnectedClients]),
		MaxAlerts:        gaugeValue(mfs[metricMaxAlerts]),
		MaxConnections:   gaugeValue(mfs[metricMaxConnections]),
		ScrapedAt:        time.Now().UTC(),
	}, nil
}

// gaugeValue sums all samples in a family. Bridge gauges are unlabelled,
// so this is the single sample value; a nil family reads as zero.
func gaugeValue(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		if g := m.GetGauge(); g != nil {
			total += g.GetValue()
		} else if c := m.GetCounter(); c != nil {
			total += c.GetValue()
		}
	}
	return total
}
