// Package config loads and validates the dexmon configuration file.
//
// Configuration is YAML, parsed into Config by Load. Missing fields are
// filled with defaults before validation. Secrets (the dashboard API key and
// the Deluthium credential) are never stored in the file — the file names the
// environment variable that holds them, and the value is resolved at read
// time.
//
// Watch (watch.go) observes the file for changes. Endpoint and operation
// definitions are immutable for the process lifetime, so a change is only
// logged with a restart-required notice.
package config
