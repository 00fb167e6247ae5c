package store

import (
	"testing"
	"time"

	"github.com/deluthium/dexmon/internal/durable"
	"github.com/deluthium/dexmon/internal/model"
)

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func outcome(endpoint string, c model.Classification, at time.Time) model.ProbeOutcome {
	return model.ProbeOutcome{Endpoint: endpoint, Classification: c, LatencyMs: 50, ObservedAt: at}
}

func sample(op string, latencyMs int64, at time.Time) model.LatencySample {
	return model.LatencySample{Operation: op, LatencyMs: latencyMs, ObservedAt: at, Success: true}
}

func mustStats(t *testing.T, st *Store, op string, hours int) model.LatencyStats {
	t.Helper()
	stats, err := st.LatencyStats(op, hours)
	if err != nil {
		t.Fatalf("LatencyStats: %v", err)
	}
	return stats
}

func TestRecordHealthCheck_LatestOverwrites(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()

	st.RecordHealthCheck(outcome("rest-api", model.Healthy, base))
	st.RecordHealthCheck(outcome("rest-api", model.Down, base.Add(30*time.Second)))

	o, ok := st.HealthStatus("rest-api")
	if !ok {
		t.Fatal("HealthStatus: expected outcome, got none")
	}
	if o.Classification != model.Down {
		t.Errorf("Classification: got %q, want down", o.Classification)
	}
}

func TestHealthStatus_Missing(t *testing.T) {
	st := New(nil)
	if _, ok := st.HealthStatus("unknown"); ok {
		t.Fatal("HealthStatus on empty store: expected false, got true")
	}
}

func TestAllHealthStatus_SortedByName(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()
	st.RecordHealthCheck(outcome("mm-hub", model.Healthy, base))
	st.RecordHealthCheck(outcome("rest-api", model.Degraded, base))

	all := st.AllHealthStatus()
	if len(all) != 2 {
		t.Fatalf("AllHealthStatus: got %d entries, want 2", len(all))
	}
	if all[0].Endpoint != "mm-hub" || all[1].Endpoint != "rest-api" {
		t.Errorf("order: got [%s %s], want [mm-hub rest-api]", all[0].Endpoint, all[1].Endpoint)
	}
}

func TestLatencyStats_EmptyWindow(t *testing.T) {
	st := New(nil)
	stats := mustStats(t, st, "get-quote", 24)
	if stats != (model.LatencyStats{}) {
		t.Errorf("stats on empty window: got %+v, want zero value", stats)
	}
}

func TestLatencyStats_AvgAndCount(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()
	st.now = fixedClock(base)

	// Latencies 10, 20, ..., 100 — avg 55.
	const n = 10
	for i := 1; i <= n; i++ {
		st.RecordLatency(sample("get-quote", int64(10*i), base.Add(time.Duration(i)*time.Second)))
	}

	stats := mustStats(t, st, "get-quote", 24)
	if stats.Count != n {
		t.Errorf("Count: got %d, want %d", stats.Count, n)
	}
	if stats.Avg != 55 {
		t.Errorf("Avg: got %v, want 55", stats.Avg)
	}
}

func TestLatencyStats_PercentileRule(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()
	st.now = fixedClock(base)

	// 100 samples 1..100ms: ceil(p/100*100)-1 gives values p50=50, p95=95, p99=99.
	for i := 1; i <= 100; i++ {
		st.RecordLatency(sample("get-quote", int64(i), base.Add(time.Duration(i)*time.Millisecond)))
	}

	stats := mustStats(t, st, "get-quote", 24)
	if stats.P50 != 50 || stats.P95 != 95 || stats.P99 != 99 {
		t.Errorf("percentiles: got p50=%v p95=%v p99=%v, want 50/95/99", stats.P50, stats.P95, stats.P99)
	}
}

func TestLatencyStats_Monotonic(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()
	st.now = fixedClock(base)

	for i, ms := range []int64{420, 8, 37, 9001, 12, 12, 777} {
		st.RecordLatency(sample("fetch-markets", ms, base.Add(time.Duration(i)*time.Second)))
	}

	stats := mustStats(t, st, "fetch-markets", 24)
	if stats.P50 > stats.P95 || stats.P95 > stats.P99 {
		t.Errorf("monotonicity violated: p50=%v p95=%v p99=%v", stats.P50, stats.P95, stats.P99)
	}
}

func TestLatencyStats_SingleSample(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()
	st.now = fixedClock(base)
	st.RecordLatency(sample("get-quote", 42, base))

	stats := mustStats(t, st, "get-quote", 24)
	if stats.P50 != 42 || stats.P95 != 42 || stats.P99 != 42 || stats.Count != 1 {
		t.Errorf("single sample: got %+v, want all percentiles 42", stats)
	}
}

func TestRecordLatency_EvictsBeyondRetention(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()

	// One sample 25h old, then a fresh write evicts it.
	st.now = fixedClock(base.Add(-25 * time.Hour))
	st.RecordLatency(sample("get-quote", 10, base.Add(-25*time.Hour)))

	st.now = fixedClock(base)
	st.RecordLatency(sample("get-quote", 20, base))

	stats := mustStats(t, st, "get-quote", 48)
	if stats.Count != 1 {
		t.Errorf("Count after eviction: got %d, want 1", stats.Count)
	}
	if stats.P50 != 20 {
		t.Errorf("P50 after eviction: got %v, want 20", stats.P50)
	}
}

func TestLatencyStats_WindowExcludesOldSamples(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()
	st.now = fixedClock(base)

	st.RecordLatency(sample("get-quote", 10, base.Add(-5*time.Hour)))
	st.RecordLatency(sample("get-quote", 20, base.Add(-time.Minute)))

	stats := mustStats(t, st, "get-quote", 1)
	if stats.Count != 1 || stats.P50 != 20 {
		t.Errorf("1h window: got count=%d p50=%v, want 1/20", stats.Count, stats.P50)
	}
}

func TestLatencyStats_DurableLogAnswersWideWindow(t *testing.T) {
	log, err := durable.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open durable log: %v", err)
	}
	defer log.Close()

	st := New(log)
	base := time.Now().UTC()

	// A sample older than the volatile retention; it survives only in the
	// durable log once the next write to the operation evicts it.
	st.now = fixedClock(base.Add(-100 * time.Hour))
	st.RecordLatency(sample("get-quote", 10, base.Add(-100*time.Hour)))

	st.now = fixedClock(base)
	st.RecordLatency(sample("get-quote", 20, base.Add(-time.Hour)))

	stats := mustStats(t, st, "get-quote", 24)
	if stats.Count != 1 {
		t.Errorf("24h window: got count=%d, want 1 (volatile index only)", stats.Count)
	}

	stats = mustStats(t, st, "get-quote", 168)
	if stats.Count != 2 {
		t.Errorf("168h window: got count=%d, want 2 (read from durable log)", stats.Count)
	}
	if stats.Avg != 15 {
		t.Errorf("168h avg: got %v, want 15", stats.Avg)
	}
}

func TestRecordLatency_OutOfOrderSampleKeptSorted(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()
	st.now = fixedClock(base)

	// A forced run can land a sample timestamped behind an already recorded
	// one; the window search must still see both correctly.
	st.RecordLatency(sample("get-quote", 20, base))
	st.RecordLatency(sample("get-quote", 10, base.Add(-2*time.Hour)))

	stats := mustStats(t, st, "get-quote", 1)
	if stats.Count != 1 || stats.P50 != 20 {
		t.Errorf("1h window: got count=%d p50=%v, want 1/20", stats.Count, stats.P50)
	}

	stats = mustStats(t, st, "get-quote", 24)
	if stats.Count != 2 || stats.Avg != 15 {
		t.Errorf("24h window: got count=%d avg=%v, want 2/15", stats.Count, stats.Avg)
	}
}

func TestUptime_NoOutcomes(t *testing.T) {
	st := New(nil)
	up, err := st.Uptime("rest-api", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up != 100 {
		t.Errorf("uptime with no outcomes: got %v, want 100", up)
	}
}

func TestUptime_AllHealthy(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		st.RecordHealthCheck(outcome("rest-api", model.Healthy, base.Add(time.Duration(i)*time.Minute)))
	}

	up, err := st.Uptime("rest-api", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up != 100 {
		t.Errorf("uptime: got %v, want 100", up)
	}
}

func TestUptime_RoundedToTwoDecimals(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()
	st.RecordHealthCheck(outcome("rest-api", model.Healthy, base))
	st.RecordHealthCheck(outcome("rest-api", model.Healthy, base.Add(time.Minute)))
	st.RecordHealthCheck(outcome("rest-api", model.Down, base.Add(2*time.Minute)))

	up, err := st.Uptime("rest-api", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up != 66.67 {
		t.Errorf("uptime: got %v, want 66.67", up)
	}
}

func TestUptime_DegradedIsNotHealthy(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()
	st.RecordHealthCheck(outcome("rest-api", model.Healthy, base))
	st.RecordHealthCheck(outcome("rest-api", model.Degraded, base.Add(time.Minute)))

	up, err := st.Uptime("rest-api", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up != 50 {
		t.Errorf("uptime: got %v, want 50", up)
	}
}

func TestUptime_DurableLogHonorsWindow(t *testing.T) {
	log, err := durable.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open durable log: %v", err)
	}
	defer log.Close()

	st := New(log)
	base := time.Now().UTC()
	st.now = fixedClock(base)

	// Two outcomes outside the 24h window, two inside; only the inside pair
	// counts, giving 50%.
	st.RecordHealthCheck(outcome("rest-api", model.Down, base.Add(-30*time.Hour)))
	st.RecordHealthCheck(outcome("rest-api", model.Down, base.Add(-29*time.Hour)))
	st.RecordHealthCheck(outcome("rest-api", model.Healthy, base.Add(-time.Hour)))
	st.RecordHealthCheck(outcome("rest-api", model.Down, base.Add(-time.Minute)))

	up, err := st.Uptime("rest-api", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up != 50 {
		t.Errorf("uptime over durable 24h window: got %v, want 50", up)
	}
}

func TestUptime_FallbackIgnoresWindow(t *testing.T) {
	// Without a durable log, the ring answers regardless of the requested
	// window — the documented approximation.
	st := New(nil)
	base := time.Now().UTC()
	st.RecordHealthCheck(outcome("rest-api", model.Down, base.Add(-100*time.Hour)))
	st.RecordHealthCheck(outcome("rest-api", model.Healthy, base))

	up, err := st.Uptime("rest-api", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up != 50 {
		t.Errorf("fallback uptime: got %v, want 50 (ring contents, window ignored)", up)
	}
}

func TestRing_EvictsOldestAtCapacity(t *testing.T) {
	st := New(nil)
	base := time.Now().UTC()

	// Fill past capacity with down outcomes, then one healthy batch; the
	// ring must hold exactly ringCapacity entries, oldest evicted first.
	for i := 0; i < ringCapacity+10; i++ {
		st.RecordHealthCheck(outcome("rest-api", model.Down, base.Add(time.Duration(i)*time.Second)))
	}

	st.mu.RLock()
	got := len(st.history["rest-api"])
	first := st.history["rest-api"][0].ObservedAt
	st.mu.RUnlock()

	if got != ringCapacity {
		t.Fatalf("ring length: got %d, want %d", got, ringCapacity)
	}
	if want := base.Add(10 * time.Second); !first.Equal(want) {
		t.Errorf("ring head: got %v, want %v (oldest evicted first)", first, want)
	}
}
