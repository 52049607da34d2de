package server

// webhookResponse is the payload for a successful POST /webhook.
type webhookResponse struct {
	Status       string `json:"status"`
	Received     int    `json:"received"`
	ActiveAlerts int    `json:"active_alerts"`
}

// healthResponse is the payload for GET /health.
type healthResponse struct {
	Status           string `json:"status"`
	ActiveAlerts     int    `json:"active_alerts"`
	CriticalAlerts   int    `json:"critical_alerts"`
	ConnectedClients int    `json:"connected_clients"`
	MaxAlerts        int    `json:"max_alerts"`
	MaxConnections   int    `json:"max_connections"`
	Uptime           string `json:"uptime"`
	Version          string `json:"version"`
}

// errorResponse is the generic JSON error body.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
