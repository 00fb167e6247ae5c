// Package store implements the metrics store behind the probers and the
// query API.
//
// The store keeps a volatile fast path — latest status per endpoint, a
// bounded recent-history ring, and a retention-bounded per-operation sample
// index for percentile queries — and optionally mirrors every write into the
// durable log. Percentile queries wider than the volatile retention are
// answered from the log, which still holds what the index has evicted. The
// volatile write always succeeds; a durable write failure is logged and
// swallowed so dashboards keep working with degraded durability.
package store
