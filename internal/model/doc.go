// Package model defines the domain types shared by the probers, the metrics
// store, and the query API: probe outcomes, latency samples, and the
// aggregate statistics derived from them.
package model
