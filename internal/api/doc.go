// Package api implements the dexmon query API.
//
// New returns an http.Handler that serves:
//
//	GET  /health                  — process liveness (public)
//	GET  /metrics                 — Prometheus self-instrumentation (public)
//	GET  /api/health              — all endpoints' latest outcome
//	GET  /api/health/{endpoint}   — single endpoint's latest outcome; 404 if unknown
//	POST /api/health/check        — force an immediate health check, return results
//	GET  /api/latency?hours=N     — per-operation percentile stats
//	GET  /api/latency/{operation} — stats for one operation; 404 if unknown
//	POST /api/latency/check       — force an immediate latency run, return samples
//	GET  /api/uptime              — 24h/7d/30d uptime per endpoint
//	GET  /api/uptime/{endpoint}   — same, single endpoint; 404 if unknown
//	GET  /api/dashboard           — composed summary for the dashboard
//
// All endpoints respond with Content-Type: application/json. Store read
// failures surface as 500 with a generic message — backend detail never
// leaks. Authentication and rate limiting are applied by the auth gate
// wrapping this handler, not here.
package api
