package auth

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
)

// Status classifies the result of authenticating one request.
type Status string

const (
	// Authenticated means the client presented the correct key.
	Authenticated Status = "authenticated"

	// Anonymous means no key is configured process-wide; the request is
	// allowed without credentials.
	Anonymous Status = "anonymous"

	// Rejected means the request must be denied.
	Rejected Status = "rejected"
)

// Decision is the outcome of authenticating one request. For rejected
// requests Code, Error, and Message describe the HTTP response to send.
type Decision struct {
	Status  Status
	Code    int
	Error   string
	Message string
}

// Gate validates API keys and enforces request-rate ceilings on the query
// API. The zero value is not usable; construct with New.
type Gate struct {
	key     string
	header  string
	public  map[string]bool
	limiter *Limiter

	// onRateLimited is invoked for every rate-limit rejection. May be nil.
	onRateLimited func()
}

// New creates a Gate. key may be empty, in which case authentication is
// disabled and all clients are anonymous. publicPaths bypass the gate
// entirely. onRateLimited may be nil.
func New(key, header string, publicPaths []string, limiter *Limiter, onRateLimited func()) *Gate {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}

	if key == "" {
		slog.Warn("auth: no API key configured — query API is open to anonymous clients")
	}

	return &Gate{
		key:           key,
		header:        header,
		public:        public,
		limiter:       limiter,
		onRateLimited: onRateLimited,
	}
}

// Authenticate decides whether the request may proceed and how the client is
// classified. It does not consult the rate limiter.
func (g *Gate) Authenticate(r *http.Request) Decision {
	if g.public[r.URL.Path] {
		return Decision{Status: Anonymous}
	}

	if g.key == "" {
		return Decision{Status: Anonymous}
	}

	presented := r.Header.Get(g.header)
	if presented == "" {
		presented = r.URL.Query().Get("api_key")
	}
	if presented == "" {
		return Decision{
			Status:  Rejected,
			Code:    http.StatusUnauthorized,
			Error:   "unauthorized",
			Message: "missing API key",
		}
	}

	// Constant-time in the key content; never short-circuits on the first
	// differing byte.
	if subtle.ConstantTimeCompare([]byte(presented), []byte(g.key)) != 1 {
		return Decision{
			Status:  Rejected,
			Code:    http.StatusForbidden,
			Error:   "forbidden",
			Message: "invalid API key",
		}
	}

	return Decision{Status: Authenticated}
}

// Middleware wraps next with authentication and rate limiting. Rejections
// are structured {error, message} JSON bodies; rate-limit rejections also
// carry retryAfter seconds.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.public[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		d := g.Authenticate(r)
		if d.Status == Rejected {
			writeReject(w, d.Code, d.Error, d.Message, 0)
			return
		}

		if g.limiter != nil {
			if ok, retryAfter := g.limiter.Allow(clientID(r)); !ok {
				if g.onRateLimited != nil {
					g.onRateLimited()
				}
				writeReject(w, http.StatusTooManyRequests,
					"too many requests", "rate limit exceeded", retryAfter)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// clientID derives the limiter key from the request's network identity.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rejectBody is the JSON shape of every gate rejection.
type rejectBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func writeReject(w http.ResponseWriter, code int, errStr, msg string, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(rejectBody{ //nolint:errcheck
		Error:      errStr,
		Message:    msg,
		RetryAfter: retryAfter,
	})
}
