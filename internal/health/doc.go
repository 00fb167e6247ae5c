// Package health implements the endpoint health checker.
//
// A Checker probes a fixed set of endpoints on demand: request-response
// endpoints with a single bounded HTTP GET, persistent-connection endpoints
// with a WebSocket handshake that is torn down as soon as it completes.
// CheckAll fans out across all endpoints concurrently; every probe failure
// is captured as a down outcome, never returned as an error.
package health
