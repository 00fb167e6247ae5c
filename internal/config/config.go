package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort        = 8080
	DefaultHealthInterval  = 30 * time.Second
	DefaultHealthTimeout   = 10 * time.Second
	DefaultLatencyInterval = 60 * time.Second
	DefaultLatencyTimeout  = 30 * time.Second
	DefaultRateWindow      = 60 * time.Second
	DefaultRateMax         = 100
)

// Environment variables that override individual config fields.
const (
	EnvRateWindow  = "DEXMON_RATE_LIMIT_WINDOW"
	EnvRateMax     = "DEXMON_RATE_LIMIT_MAX"
	EnvDurablePath = "DEXMON_DURABLE_PATH"
)

// Endpoint kinds understood by the health checker.
const (
	KindHTTP      = "http"      // request-response probe
	KindWebSocket = "websocket" // persistent-connection handshake probe
)

// Config is the top-level configuration parsed from the `monitor:` section
// of config.yaml.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
}

// MonitorConfig holds all dexmon settings.
type MonitorConfig struct {
	// HTTPPort is the port the query API listens on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures API-key authentication for the query API.
	Auth AuthConfig `yaml:"auth"`

	// RateLimit configures per-client request ceilings on the query API.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Durable configures the optional on-disk outcome log. When Path is
	// empty, dexmon runs volatile-only and long-window uptime queries fall
	// back to the bounded in-memory history.
	Durable DurableConfig `yaml:"durable"`

	// Health configures the endpoint health checker.
	Health HealthConfig `yaml:"health"`

	// Latency configures the synthetic latency tracker.
	Latency LatencyConfig `yaml:"latency"`
}

// AuthConfig controls query API authentication.
type AuthConfig struct {
	// KeyEnv is the name of the environment variable holding the expected
	// API key. When the variable is unset or empty, authentication is
	// disabled and all clients are treated as anonymous.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header clients present the key in.
	// Defaults to "X-Api-Key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "X-Api-Key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "X-Api-Key"
}

// RateLimitConfig controls the fixed-window request limiter.
type RateLimitConfig struct {
	// Window is the limiter window length (default 60s).
	Window time.Duration `yaml:"window"`

	// MaxRequests is the per-client request ceiling within one window
	// (default 100).
	MaxRequests int `yaml:"max_requests"`
}

// DurableConfig controls the optional Badger-backed durable log.
type DurableConfig struct {
	// Path is the directory the log lives in. Empty disables durability.
	Path string `yaml:"path"`
}

// HealthConfig holds health-checker settings.
type HealthConfig struct {
	// Interval controls how often all endpoints are probed (default 30s).
	Interval time.Duration `yaml:"interval"`

	// Timeout bounds each individual probe (default 10s).
	Timeout time.Duration `yaml:"timeout"`

	// Endpoints is the fixed set of monitored endpoints.
	Endpoints []Endpoint `yaml:"endpoints"`
}

// Endpoint describes one monitored endpoint. Immutable for the process
// lifetime.
type Endpoint struct {
	// Name is a unique, human-readable identifier for this endpoint.
	Name string `yaml:"name"`

	// Target is the probe URL: http(s):// for request-response endpoints,
	// ws(s):// for persistent-connection endpoints.
	Target string `yaml:"target"`

	// Kind is one of: http | websocket.
	Kind string `yaml:"kind"`
}

// LatencyConfig holds latency-tracker settings.
type LatencyConfig struct {
	// Interval controls how often the operation set is exercised (default 60s).
	Interval time.Duration `yaml:"interval"`

	// Timeout bounds each synthetic call (default 30s).
	Timeout time.Duration `yaml:"timeout"`

	// BaseURL is the root URL of the monitored Deluthium API.
	BaseURL string `yaml:"base_url"`

	// CredentialEnv names the environment variable holding the bearer
	// credential for the monitored system. Unset means the calls go out
	// unauthenticated; any resulting 401/403 is recorded as a failed sample.
	CredentialEnv string `yaml:"credential_env"`

	// Operations is the fixed set of synthetic calls.
	Operations []Operation `yaml:"operations"`
}

// Credential returns the downstream bearer credential resolved from the
// environment. Empty when not configured.
func (l LatencyConfig) Credential() string {
	if l.CredentialEnv == "" {
		return ""
	}
	return os.Getenv(l.CredentialEnv)
}

// Operation describes one synthetic call pattern. Immutable for the process
// lifetime.
type Operation struct {
	// Name is a unique, human-readable identifier for this operation.
	Name string `yaml:"name"`

	// Path is appended to LatencyConfig.BaseURL.
	Path string `yaml:"path"`

	// Method is GET or POST.
	Method string `yaml:"method"`

	// Body is an optional static request body sent with POST calls.
	Body string `yaml:"body"`
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults, environment overrides are applied, and the result is
// validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Monitor: MonitorConfig{
			HTTPPort: DefaultHTTPPort,
			RateLimit: RateLimitConfig{
				Window:      DefaultRateWindow,
				MaxRequests: DefaultRateMax,
			},
			Health: HealthConfig{
				Interval: DefaultHealthInterval,
				Timeout:  DefaultHealthTimeout,
			},
			Latency: LatencyConfig{
				Interval: DefaultLatencyInterval,
				Timeout:  DefaultLatencyTimeout,
			},
		},
	}
}

// applyEnvOverrides applies the DEXMON_* environment overrides on top of the
// parsed file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvRateWindow); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Monitor.RateLimit.Window = d
		}
	}
	if v := os.Getenv(EnvRateMax); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Monitor.RateLimit.MaxRequests = n
		}
	}
	if v := os.Getenv(EnvDurablePath); v != "" {
		cfg.Monitor.Durable.Path = v
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	m := cfg.Monitor
	if m.HTTPPort <= 0 || m.HTTPPort > 65535 {
		return fmt.Errorf("monitor.http_port %d is out of range [1, 65535]", m.HTTPPort)
	}
	if m.RateLimit.Window <= 0 {
		return fmt.Errorf("monitor.rate_limit.window must be positive")
	}
	if m.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("monitor.rate_limit.max_requests must be positive")
	}
	if m.Health.Interval <= 0 || m.Latency.Interval <= 0 {
		return fmt.Errorf("monitor intervals must be positive")
	}
	if m.Health.Timeout <= 0 || m.Latency.Timeout <= 0 {
		return fmt.Errorf("monitor timeouts must be positive")
	}

	seen := make(map[string]bool)
	for _, ep := range m.Health.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("monitor.health.endpoints: name must not be empty")
		}
		if seen[ep.Name] {
			return fmt.Errorf("monitor.health.endpoints: duplicate name %q", ep.Name)
		}
		seen[ep.Name] = true
		if ep.Target == "" {
			return fmt.Errorf("endpoint %q: target must not be empty", ep.Name)
		}
		switch ep.Kind {
		case KindHTTP, KindWebSocket:
		default:
			return fmt.Errorf("endpoint %q: kind %q unknown: want http|websocket", ep.Name, ep.Kind)
		}
	}

	if len(m.Latency.Operations) > 0 && m.Latency.BaseURL == "" {
		return fmt.Errorf("monitor.latency.base_url must be set when operations are configured")
	}
	seen = make(map[string]bool)
	for _, op := range m.Latency.Operations {
		if op.Name == "" {
			return fmt.Errorf("monitor.latency.operations: name must not be empty")
		}
		if seen[op.Name] {
			return fmt.Errorf("monitor.latency.operations: duplicate name %q", op.Name)
		}
		seen[op.Name] = true
		switch op.Method {
		case http.MethodGet, http.MethodPost:
		default:
			return fmt.Errorf("operation %q: method %q unknown: want GET|POST", op.Name, op.Method)
		}
	}

	return nil
}
