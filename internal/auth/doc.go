// Package auth gates the query API with API-key authentication and
// per-client rate limiting.
//
// Behaviour:
//   - Requests to the public allow-list bypass the gate entirely.
//   - With no process-wide key configured, every request is anonymous and
//     allowed. This fail-open stance is a deliberate operability trade-off
//     (a misdeployed key must not blind the dashboard) and is announced with
//     a warning at startup.
//   - Otherwise the client presents the key via the configured header or the
//     api_key query parameter. A missing key is rejected as unauthorized, a
//     mismatched one as forbidden. The comparison is constant-time in the
//     key content.
//
// Allowed requests then pass the fixed-window rate limiter, keyed by client
// network identity. Rejections carry the seconds remaining until the window
// resets.
package auth
