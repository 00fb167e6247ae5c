package model

import "time"

// Classification is the coarse-grained health verdict for a single probe.
type Classification string

const (
	Healthy  Classification = "healthy"
	Degraded Classification = "degraded"
	Down     Classification = "down"
)

// ProbeOutcome is the immutable result of one health probe against one
// endpoint. Ownership transfers to the store on record; callers must not
// modify an outcome after recording it.
type ProbeOutcome struct {
	Endpoint       string         `json:"endpoint"`
	Classification Classification `json:"classification"`
	LatencyMs      int64          `json:"latency_ms"`
	ObservedAt     time.Time      `json:"observed_at"`

	// Error holds the failure reason when a hard failure occurred
	// (network error, timeout, server fault). Empty for healthy outcomes.
	Error string `json:"error,omitempty"`
}

// LatencySample is the immutable result of one synthetic call against one
// operation of the monitored system.
type LatencySample struct {
	Operation  string    `json:"operation"`
	LatencyMs  int64     `json:"latency_ms"`
	ObservedAt time.Time `json:"observed_at"`
	Success    bool      `json:"success"`

	// StatusCode is 0 when the call failed before an HTTP response arrived.
	StatusCode int `json:"status_code,omitempty"`
}

// LatencyStats is the percentile summary for one operation over a trailing
// window. All fields are zero when the window holds no samples.
type LatencyStats struct {
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}
