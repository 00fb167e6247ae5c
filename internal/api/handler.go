package api

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/deluthium/dexmon/internal/config"
	"github.com/deluthium/dexmon/internal/health"
	"github.com/deluthium/dexmon/internal/latency"
	"github.com/deluthium/dexmon/internal/model"
	"github.com/deluthium/dexmon/internal/store"
)

// Uptime windows reported by the uptime and dashboard routes, in hours.
const (
	windowDay   = 24
	windowWeek  = 7 * 24
	windowMonth = 30 * 24
)

// Handler is the HTTP handler for the query API. It reads from the metrics
// store and can force an immediate prober run.
type Handler struct {
	store   *store.Store
	checker *health.Checker
	tracker *latency.Tracker

	endpointNames  []string
	operationNames []string
	router         *mux.Router
}

// New creates a Handler wired to the given components and registers all
// routes. metricsHandler serves the Prometheus exposition on /metrics.
func New(
	st *store.Store,
	checker *health.Checker,
	tracker *latency.Tracker,
	endpoints []config.Endpoint,
	operations []config.Operation,
	metricsHandler http.Handler,
) http.Handler {
	h := &Handler{
		store:   st,
		checker: checker,
		tracker: tracker,
		router:  mux.NewRouter(),
	}
	for _, ep := range endpoints {
		h.endpointNames = append(h.endpointNames, ep.Name)
	}
	for _, op := range operations {
		h.operationNames = append(h.operationNames, op.Name)
	}
	sort.Strings(h.endpointNames)
	sort.Strings(h.operationNames)

	r := h.router
	r.HandleFunc("/health", h.liveness).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	r.HandleFunc("/api/health", h.allHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/health/check", h.forceHealthCheck).Methods(http.MethodPost)
	r.HandleFunc("/api/health/{endpoint}", h.endpointHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/latency", h.allLatency).Methods(http.MethodGet)
	r.HandleFunc("/api/latency/check", h.forceLatencyCheck).Methods(http.MethodPost)
	r.HandleFunc("/api/latency/{operation}", h.operationLatency).Methods(http.MethodGet)

	r.HandleFunc("/api/uptime", h.allUptime).Methods(http.MethodGet)
	r.HandleFunc("/api/uptime/{endpoint}", h.endpointUptime).Methods(http.MethodGet)

	r.HandleFunc("/api/dashboard", h.dashboard).Methods(http.MethodGet)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// liveness returns GET /health — process liveness, no auth.
func (h *Handler) liveness(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allHealth returns GET /api/health — every endpoint's latest outcome.
func (h *Handler) allHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.store.AllHealthStatus())
}

// endpointHealth returns GET /api/health/{endpoint}.
func (h *Handler) endpointHealth(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["endpoint"]
	o, ok := h.store.HealthStatus(name)
	if !ok {
		jsonErr(w, http.StatusNotFound, "not found", "unknown endpoint")
		return
	}
	jsonResp(w, http.StatusOK, o)
}

// forceHealthCheck handles POST /api/health/check — an immediate full probe
// round, outside the scheduler's cadence.
func (h *Handler) forceHealthCheck(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.checker.CheckAll(r.Context()))
}

// allLatency returns GET /api/latency?hours=N — stats for every operation.
func (h *Handler) allLatency(w http.ResponseWriter, r *http.Request) {
	hours := windowParam(r)
	out := make(map[string]model.LatencyStats, len(h.operationNames))
	for _, op := range h.operationNames {
		stats, err := h.store.LatencyStats(op, hours)
		if err != nil {
			storeReadErr(w, err)
			return
		}
		out[op] = stats
	}
	jsonResp(w, http.StatusOK, out)
}

// operationLatency returns GET /api/latency/{operation}?hours=N.
func (h *Handler) operationLatency(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["operation"]
	if !contains(h.operationNames, name) {
		jsonErr(w, http.StatusNotFound, "not found", "unknown operation")
		return
	}
	stats, err := h.store.LatencyStats(name, windowParam(r))
	if err != nil {
		storeReadErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, stats)
}

// forceLatencyCheck handles POST /api/latency/check.
func (h *Handler) forceLatencyCheck(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.tracker.CheckAll(r.Context()))
}

// allUptime returns GET /api/uptime — 24h/7d/30d uptime per endpoint.
func (h *Handler) allUptime(w http.ResponseWriter, _ *http.Request) {
	out := make([]UptimeResponse, 0, len(h.endpointNames))
	for _, name := range h.endpointNames {
		resp, err := h.uptimeFor(name)
		if err != nil {
			storeReadErr(w, err)
			return
		}
		out = append(out, resp)
	}
	jsonResp(w, http.StatusOK, out)
}

// endpointUptime returns GET /api/uptime/{endpoint}.
func (h *Handler) endpointUptime(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["endpoint"]
	if !contains(h.endpointNames, name) {
		jsonErr(w, http.StatusNotFound, "not found", "unknown endpoint")
		return
	}
	resp, err := h.uptimeFor(name)
	if err != nil {
		storeReadErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// dashboard returns GET /api/dashboard — the composed summary the external
// dashboard renders: overall status, average 24h uptime, and one row per
// endpoint.
func (h *Handler) dashboard(w http.ResponseWriter, _ *http.Request) {
	resp := DashboardResponse{
		Status:    model.Healthy,
		Endpoints: make([]DashboardEndpoint, 0, len(h.endpointNames)),
	}

	outcomes := h.store.AllHealthStatus()
	healthyCount := 0
	var uptimeSum float64

	for _, name := range h.endpointNames {
		// An endpoint that has never reported renders down here while its
		// uptime still reads the assume-fine 100; both settle on the first
		// probe, at most one interval after boot.
		row := DashboardEndpoint{Name: name, Classification: model.Down}
		for _, o := range outcomes {
			if o.Endpoint == name {
				row.Classification = o.Classification
				row.LatencyMs = o.LatencyMs
				row.ObservedAt = o.ObservedAt.UTC().Format(time.RFC3339)
				break
			}
		}

		up, err := h.store.Uptime(name, windowDay)
		if err != nil {
			storeReadErr(w, err)
			return
		}
		row.Uptime24h = up
		uptimeSum += up

		if row.Classification == model.Healthy {
			healthyCount++
		}
		resp.Endpoints = append(resp.Endpoints, row)
	}

	if n := len(resp.Endpoints); n > 0 {
		resp.AvgUptime24h = round2(uptimeSum / float64(n))
		switch healthyCount {
		case n:
			resp.Status = model.Healthy
		case 0:
			resp.Status = model.Down
		default:
			resp.Status = model.Degraded
		}
	}

	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) uptimeFor(name string) (UptimeResponse, error) {
	resp := UptimeResponse{Endpoint: name}
	for _, w := range []struct {
		hours int
		dst   *float64
	}{
		{windowDay, &resp.Uptime24h},
		{windowWeek, &resp.Uptime7d},
		{windowMonth, &resp.Uptime30d},
	} {
		up, err := h.store.Uptime(name, w.hours)
		if err != nil {
			return resp, err
		}
		*w.dst = up
	}
	return resp, nil
}

// windowParam reads the ?hours=N query parameter, defaulting to 24 and
// clamping to at least 1.
func windowParam(r *http.Request) int {
	hours, err := strconv.Atoi(r.URL.Query().Get("hours"))
	if err != nil || hours < 1 {
		return windowDay
	}
	return hours
}

func contains(sorted []string, name string) bool {
	i := sort.SearchStrings(sorted, name)
	return i < len(sorted) && sorted[i] == name
}

// storeReadErr surfaces a backing-store read failure as a generic 500. The
// underlying error is logged but never sent to the client.
func storeReadErr(w http.ResponseWriter, err error) {
	slog.Error("api: store read failed", "err", err)
	jsonErr(w, http.StatusInternalServerError, "internal error", "metrics backend unavailable")
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, errStr, msg string) {
	jsonResp(w, code, errorResponse{Error: errStr, Message: msg})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
