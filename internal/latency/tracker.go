package latency

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deluthium/dexmon/internal/config"
	"github.com/deluthium/dexmon/internal/model"
	"github.com/deluthium/dexmon/internal/store"
	"github.com/deluthium/dexmon/internal/telemetry"
)

// Tracker issues synthetic calls against the monitored system's operations
// and records a latency sample per call.
type Tracker struct {
	ops     []config.Operation
	baseURL string
	timeout time.Duration

	client  *http.Client
	store   *store.Store
	metrics *telemetry.Metrics
}

// bearerRoundTripper attaches the downstream credential to every outgoing
// call. An empty token leaves the request untouched — unauthenticated calls
// are allowed and any resulting 401/403 is simply recorded as a failure.
type bearerRoundTripper struct {
	base  http.RoundTripper
	token func() string
}

func (t *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if tok := t.token(); tok != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return t.base.RoundTrip(req)
}

// New creates a Tracker for the given latency configuration. The credential
// is resolved from the environment on every call, so a rotated token is
// picked up without a restart.
func New(cfg config.LatencyConfig, st *store.Store, metrics *telemetry.Metrics) *Tracker {
	return &Tracker{
		ops:     cfg.Operations,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		client: &http.Client{
			Transport: &bearerRoundTripper{
				base:  http.DefaultTransport,
				token: cfg.Credential,
			},
		},
		store:   st,
		metrics: metrics,
	}
}

// CheckAll exercises every configured operation in sequence and returns the
// full sample set. Each sample is recorded as soon as its call completes.
func (t *Tracker) CheckAll(ctx context.Context) []model.LatencySample {
	samples := make([]model.LatencySample, 0, len(t.ops))
	for _, op := range t.ops {
		s := t.Check(ctx, op)
		t.store.RecordLatency(s)
		t.metrics.ObserveSyntheticCall(s)
		samples = append(samples, s)
	}
	return samples
}

// Check issues exactly one synthetic call for the operation. It never
// returns an error: a transport failure or timeout yields a failed sample
// with no status code and latency equal to the elapsed time.
func (t *Tracker) Check(ctx context.Context, op config.Operation) model.LatencySample {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	s := model.LatencySample{Operation: op.Name}
	start := time.Now()

	var body io.Reader
	if op.Body != "" {
		body = strings.NewReader(op.Body)
	}

	req, err := http.NewRequestWithContext(ctx, op.Method, t.baseURL+op.Path, body)
	if err != nil {
		return finish(s, start, 0, false)
	}
	if op.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return finish(s, start, 0, false)
	}
	resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	return finish(s, start, resp.StatusCode, ok)
}

func finish(s model.LatencySample, start time.Time, statusCode int, ok bool) model.LatencySample {
	s.LatencyMs = time.Since(start).Milliseconds()
	s.ObservedAt = time.Now().UTC()
	s.StatusCode = statusCode
	s.Success = ok
	return s
}
