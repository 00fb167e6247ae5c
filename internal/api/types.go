package api

import "github.com/deluthium/dexmon/internal/model"

// UptimeResponse is one endpoint's uptime over the standard dashboard
// windows. Without a durable log all three reflect the bounded in-memory
// history (see store.Uptime).
type UptimeResponse struct {
	Endpoint  string  `json:"endpoint"`
	Uptime24h float64 `json:"uptime_24h"`
	Uptime7d  float64 `json:"uptime_7d"`
	Uptime30d float64 `json:"uptime_30d"`
}

// DashboardEndpoint is one endpoint's row in the dashboard summary.
type DashboardEndpoint struct {
	Name           string               `json:"name"`
	Classification model.Classification `json:"classification"`
	LatencyMs      int64                `json:"latency_ms"`
	Uptime24h      float64              `json:"uptime_24h"`
	ObservedAt     string               `json:"observed_at,omitempty"` // RFC3339
}

// DashboardResponse is the payload for GET /api/dashboard.
type DashboardResponse struct {
	Status       model.Classification `json:"status"`
	AvgUptime24h float64              `json:"avg_uptime_24h"`
	Endpoints    []DashboardEndpoint  `json:"endpoints"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
