// Package telemetry holds dexmon's own Prometheus instrumentation: probe and
// synthetic-call counters, probe duration histograms, and rate-limit
// rejection counts, exposed on the public /metrics route.
package telemetry
