package store

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/deluthium/dexmon/internal/durable"
	"github.com/deluthium/dexmon/internal/model"
)

const (
	// ringCapacity bounds the per-endpoint recent-history ring used as the
	// fallback uptime source when no durable log is configured. At the
	// default 30s probe cadence this holds roughly eight hours of outcomes.
	ringCapacity = 1000

	// retention bounds the volatile per-operation sample index. Older
	// samples are evicted lazily on the next write to that operation.
	retention = 24 * time.Hour
)

// Store records probe outcomes and latency samples and answers the
// latest-status, percentile, and uptime queries behind the query API.
//
// All methods are safe for concurrent use. Writes to different endpoints or
// operations never contend beyond the store's single lock hold.
type Store struct {
	mu      sync.RWMutex
	latest  map[string]model.ProbeOutcome
	history map[string][]model.ProbeOutcome
	samples map[string][]model.LatencySample

	log *durable.Log     // nil when durability is not configured
	now func() time.Time // injectable for deterministic tests
}

// New creates a Store. log may be nil, in which case uptime queries fall
// back to the bounded in-memory history.
func New(log *durable.Log) *Store {
	return &Store{
		latest:  make(map[string]model.ProbeOutcome),
		history: make(map[string][]model.ProbeOutcome),
		samples: make(map[string][]model.LatencySample),
		log:     log,
		now:     time.Now,
	}
}

// Durable reports whether a durable log is configured.
func (s *Store) Durable() bool {
	return s.log != nil
}

// RecordHealthCheck stores o as the endpoint's current status and appends it
// to the recent-history ring. The durable append, if configured, is
// best-effort: its failure is logged and does not affect the volatile write.
func (s *Store) RecordHealthCheck(o model.ProbeOutcome) {
	s.mu.Lock()
	s.latest[o.Endpoint] = o
	ring := append(s.history[o.Endpoint], o)
	if len(ring) > ringCapacity {
		ring = ring[len(ring)-ringCapacity:]
	}
	s.history[o.Endpoint] = ring
	s.mu.Unlock()

	if s.log != nil {
		if err := s.log.AppendOutcome(o); err != nil {
			slog.Warn("store: durable outcome write failed", "endpoint", o.Endpoint, "err", err)
		}
	}
}

// RecordLatency appends the sample to the operation's volatile index and
// evicts entries that have aged out of the retention window. The durable
// append, if configured, is best-effort.
func (s *Store) RecordLatency(sample model.LatencySample) {
	cutoff := s.clock().Add(-retention)

	s.mu.Lock()
	kept := s.samples[sample.Operation]
	// The index is kept sorted by ObservedAt; find the first sample still
	// inside the window and drop everything before it.
	idx := sort.Search(len(kept), func(i int) bool {
		return !kept[i].ObservedAt.Before(cutoff)
	})
	if idx > 0 {
		kept = append([]model.LatencySample(nil), kept[idx:]...)
	}
	// A forced run can interleave with a scheduled tick and land a sample
	// with a timestamp slightly behind the tail, so insert in order rather
	// than append.
	pos := sort.Search(len(kept), func(i int) bool {
		return kept[i].ObservedAt.After(sample.ObservedAt)
	})
	kept = append(kept, model.LatencySample{})
	copy(kept[pos+1:], kept[pos:])
	kept[pos] = sample
	s.samples[sample.Operation] = kept
	s.mu.Unlock()

	if s.log != nil {
		if err := s.log.AppendSample(sample); err != nil {
			slog.Warn("store: durable sample write failed", "operation", sample.Operation, "err", err)
		}
	}
}

// HealthStatus returns the most recent outcome for the endpoint and whether
// one has been recorded yet.
func (s *Store) HealthStatus(endpoint string) (model.ProbeOutcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.latest[endpoint]
	return o, ok
}

// AllHealthStatus returns the latest outcome of every endpoint that has ever
// reported, sorted by endpoint name.
func (s *Store) AllHealthStatus() []model.ProbeOutcome {
	s.mu.RLock()
	out := make([]model.ProbeOutcome, 0, len(s.latest))
	for _, o := range s.latest {
		out = append(out, o)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}

// LatencyStats computes the percentile summary for the operation over the
// trailing windowHours. Windows inside the volatile retention are answered
// from the in-memory index; wider windows read the durable log, which holds
// the samples the index has already evicted. An empty window yields the zero
// LatencyStats.
func (s *Store) LatencyStats(operation string, windowHours int) (model.LatencyStats, error) {
	cutoff := s.clock().Add(-time.Duration(windowHours) * time.Hour)

	if s.log != nil && time.Duration(windowHours)*time.Hour > retention {
		logged, err := s.log.SamplesSince(operation, cutoff)
		if err != nil {
			return model.LatencyStats{}, err
		}
		window := make([]int64, 0, len(logged))
		for _, sm := range logged {
			window = append(window, sm.LatencyMs)
		}
		return computeStats(window), nil
	}

	s.mu.RLock()
	all := s.samples[operation]
	idx := sort.Search(len(all), func(i int) bool {
		return !all[i].ObservedAt.Before(cutoff)
	})
	window := make([]int64, 0, len(all)-idx)
	for _, sm := range all[idx:] {
		window = append(window, sm.LatencyMs)
	}
	s.mu.RUnlock()

	return computeStats(window), nil
}

// Uptime returns the percentage of healthy outcomes for the endpoint within
// the trailing windowHours, rounded to two decimal places.
//
// With a durable log present the result is exact for any window. Without
// one, the calculation falls back to the bounded recent-history ring: the
// window parameter is ignored and the result reflects whatever the ring
// currently holds. An endpoint with no recorded outcomes reports 100 — never
// checked is assumed fine, rather than reported as an outage.
func (s *Store) Uptime(endpoint string, windowHours int) (float64, error) {
	var outcomes []model.ProbeOutcome

	if s.log != nil {
		since := s.clock().Add(-time.Duration(windowHours) * time.Hour)
		logged, err := s.log.OutcomesSince(endpoint, since)
		if err != nil {
			return 0, err
		}
		outcomes = logged
	} else {
		s.mu.RLock()
		outcomes = append(outcomes, s.history[endpoint]...)
		s.mu.RUnlock()
	}

	if len(outcomes) == 0 {
		return 100, nil
	}

	healthy := 0
	for _, o := range outcomes {
		if o.Classification == model.Healthy {
			healthy++
		}
	}
	return round2(float64(healthy) / float64(len(outcomes)) * 100), nil
}

func (s *Store) clock() time.Time {
	return s.now()
}

// computeStats derives the percentile summary from the windowed latencies.
// Percentile rule: sort ascending, index = ceil(p/100*n)-1, clamped to >= 0.
func computeStats(latencies []int64) model.LatencyStats {
	n := len(latencies)
	if n == 0 {
		return model.LatencyStats{}
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum int64
	for _, v := range latencies {
		sum += v
	}

	return model.LatencyStats{
		P50:   float64(latencies[percentileIndex(50, n)]),
		P95:   float64(latencies[percentileIndex(95, n)]),
		P99:   float64(latencies[percentileIndex(99, n)]),
		Avg:   round2(float64(sum) / float64(n)),
		Count: n,
	}
}

func percentileIndex(p, n int) int {
	idx := int(math.Ceil(float64(p)/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	return idx
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
