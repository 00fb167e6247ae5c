// Package durable implements the optional on-disk outcome log backing exact
// long-window uptime queries.
//
// The log is an embedded Badger database. Every probe outcome and latency
// sample is appended under a key that orders entries by name and observation
// time, so windowed reads are single prefix scans. The log is unbounded;
// retention is a property of the volatile store only.
package durable
