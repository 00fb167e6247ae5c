// Package sched runs the recurring probe jobs.
//
// Each Job ticks on its own fixed interval. A tick that comes due while the
// previous run of the same job is still in flight is skipped, never queued —
// a slow downstream must not cause a burst of catch-up probes.
package sched
