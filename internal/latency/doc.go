// Package latency implements the synthetic-latency tracker.
//
// A Tracker replays a fixed set of API operations against the monitored
// Deluthium system, one at a time — the operations share a single downstream
// and are deliberately not amplified concurrently. Each call is measured and
// recorded as a LatencySample; any failure, including timeout, becomes a
// failed sample rather than an error.
package latency
