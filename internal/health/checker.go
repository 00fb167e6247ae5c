package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deluthium/dexmon/internal/config"
	"github.com/deluthium/dexmon/internal/model"
	"github.com/deluthium/dexmon/internal/store"
	"github.com/deluthium/dexmon/internal/telemetry"
)

// Latency thresholds separating healthy from degraded, per endpoint kind.
// A completed WebSocket handshake is much cheaper than a full REST round
// trip, so its bar is lower.
const (
	httpDegradedAfter      = 1000 * time.Millisecond
	handshakeDegradedAfter = 500 * time.Millisecond
)

// Checker probes the configured endpoints and records each outcome.
type Checker struct {
	endpoints []config.Endpoint
	timeout   time.Duration

	client  *http.Client
	dialer  *websocket.Dialer
	store   *store.Store
	metrics *telemetry.Metrics
}

// New creates a Checker for the given health configuration.
func New(cfg config.HealthConfig, st *store.Store, metrics *telemetry.Metrics) *Checker {
	return &Checker{
		endpoints: cfg.Endpoints,
		timeout:   cfg.Timeout,
		client:    &http.Client{},
		dialer:    &websocket.Dialer{},
		store:     st,
		metrics:   metrics,
	}
}

// CheckAll probes every endpoint concurrently and returns the full outcome
// set once all probes have settled. Each outcome is recorded to the store by
// the goroutine that produced it, so a slow endpoint never delays the
// persistence of the others' results.
func (c *Checker) CheckAll(ctx context.Context) []model.ProbeOutcome {
	outcomes := make([]model.ProbeOutcome, len(c.endpoints))

	var wg sync.WaitGroup
	for i, ep := range c.endpoints {
		wg.Add(1)
		go func(i int, ep config.Endpoint) {
			defer wg.Done()
			o := c.Check(ctx, ep)
			c.store.RecordHealthCheck(o)
			c.metrics.ObserveProbe(o)
			outcomes[i] = o
		}(i, ep)
	}
	wg.Wait()

	return outcomes
}

// Check probes a single endpoint. It never returns an error: every failure
// mode is captured in the outcome's classification and error detail. The
// probe is bounded by the configured timeout.
func (c *Checker) Check(ctx context.Context, ep config.Endpoint) model.ProbeOutcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch ep.Kind {
	case config.KindWebSocket:
		return c.checkWebSocket(ctx, ep)
	default:
		return c.checkHTTP(ctx, ep)
	}
}

// checkHTTP issues a single GET and classifies the response: a non-error
// response is healthy under the latency threshold and degraded above it, a
// server fault is down, any other error status is degraded, and a transport
// failure or timeout is down with the failure reason attached.
func (c *Checker) checkHTTP(ctx context.Context, ep config.Endpoint) model.ProbeOutcome {
	start := time.Now()
	o := model.ProbeOutcome{Endpoint: ep.Name}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.Target, nil)
	if err != nil {
		return c.fail(o, start, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return c.fail(o, start, err)
	}
	resp.Body.Close()

	elapsed := time.Since(start)
	o.LatencyMs = elapsed.Milliseconds()
	o.ObservedAt = time.Now().UTC()

	switch {
	case resp.StatusCode >= 500:
		o.Classification = model.Down
		o.Error = fmt.Sprintf("server fault: %s", resp.Status)
	case resp.StatusCode >= 400:
		o.Classification = model.Degraded
		o.Error = fmt.Sprintf("error status: %s", resp.Status)
	case elapsed >= httpDegradedAfter:
		o.Classification = model.Degraded
	default:
		o.Classification = model.Healthy
	}
	return o
}

// checkWebSocket attempts the connection handshake and tears the connection
// down as soon as it is observed. This is a liveness probe, not a persistent
// client.
func (c *Checker) checkWebSocket(ctx context.Context, ep config.Endpoint) model.ProbeOutcome {
	start := time.Now()
	o := model.ProbeOutcome{Endpoint: ep.Name}

	conn, resp, err := c.dialer.DialContext(ctx, ep.Target, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return c.fail(o, start, err)
	}
	conn.Close()

	elapsed := time.Since(start)
	o.LatencyMs = elapsed.Milliseconds()
	o.ObservedAt = time.Now().UTC()

	if elapsed >= handshakeDegradedAfter {
		o.Classification = model.Degraded
	} else {
		o.Classification = model.Healthy
	}
	return o
}

// fail finalizes an outcome for a transport-level failure.
func (c *Checker) fail(o model.ProbeOutcome, start time.Time, err error) model.ProbeOutcome {
	o.LatencyMs = time.Since(start).Milliseconds()
	o.ObservedAt = time.Now().UTC()
	o.Classification = model.Down

	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "probe timed out"
	}
	o.Error = msg
	return o
}
