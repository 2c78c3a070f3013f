package config

import "time"

// Config is the root configuration structure for the gateway.
// It contains all configuration sections for the HTTP server, client
// authentication, the upstream client, the credential pool, the model
// catalogue, persistence and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, CORS and TLS.
	Server ServerConfig `yaml:"server"`

	// Auth contains client API key and rate limit configuration.
	Auth AuthConfig `yaml:"auth"`

	// Admin contains configuration for the administrative API.
	Admin AdminConfig `yaml:"admin"`

	// Upstream contains configuration for the upstream streaming API.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Pool contains credential selection and cooldown configuration.
	Pool PoolConfig `yaml:"pool"`

	// Thinking contains configuration for extended thinking mode.
	Thinking ThinkingConfig `yaml:"thinking"`

	// Models contains model catalogue configuration.
	Models ModelsConfig `yaml:"models"`

	// Database contains configuration for the account, catalogue and log store.
	Database DatabaseConfig `yaml:"database"`

	// Audit contains configuration for request trace recording.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Streaming responses can last minutes, so zero (no timeout)
	// is the default.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight requests
	// during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes bounds the size of a chat request body.
	// Default: 10485760 (10MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`

	// TLS contains TLS termination configuration.
	TLS TLSConfig `yaml:"tls"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are written.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins. ["*"] allows all.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	// Default: ["Authorization", "Content-Type", "X-Api-Key", "X-Request-ID", "Anthropic-Version", "Anthropic-Beta"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers exposed to the client.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials are allowed.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// TLSConfig contains TLS termination configuration. Either a static
// certificate pair or a list of autocert domains may be configured.
type TLSConfig struct {
	// Enabled turns on TLS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile name a PEM certificate pair.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// AutocertDomains requests certificates from Let's Encrypt for these hosts.
	AutocertDomains []string `yaml:"autocert_domains"`

	// AutocertCacheDir stores issued certificates.
	// Default: "data/certs"
	AutocertCacheDir string `yaml:"autocert_cache_dir"`
}

// AuthConfig contains configuration for client authentication.
type AuthConfig struct {
	// RequireAPIKey rejects requests without a known key.
	// Default: true
	RequireAPIKey bool `yaml:"require_api_key"`

	// APIKeys are accepted in addition to keys stored in the database.
	// Default: ["sk-kiro-default"]
	APIKeys []string `yaml:"api_keys"`

	// RateLimit limits requests per client key.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	// Enabled turns on rate limiting.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Requests is the number of requests allowed per window.
	// Default: 60
	Requests int `yaml:"requests"`

	// Window is the sliding window length.
	// Default: 1m
	Window time.Duration `yaml:"window"`

	// CleanupSchedule is the cron spec for pruning idle client windows.
	// Default: "@every 5m"
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// AdminConfig contains configuration for the administrative API.
type AdminConfig struct {
	// Enabled mounts the /admin routes.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Token is the bearer token admin requests must present. When empty
	// every admin request is refused.
	Token string `yaml:"token"`
}

// UpstreamConfig contains configuration for the upstream streaming API.
type UpstreamConfig struct {
	// Region is the default region for credentials that do not name one.
	// Default: "us-east-1"
	Region string `yaml:"region"`

	// KiroVersion is advertised in the user agent headers.
	// Default: "0.8.0"
	KiroVersion string `yaml:"kiro_version"`

	// MachineID is advertised in the user agent headers. A random id is
	// generated once per process when empty.
	MachineID string `yaml:"machine_id"`

	// Endpoints are the streaming endpoints in failover order.
	// Default: codewhisperer then q generateAssistantResponse
	Endpoints []string `yaml:"endpoints"`

	// RESTBaseURL is the host for usage and model listing calls.
	// Default: "https://codewhisperer.us-east-1.amazonaws.com"
	RESTBaseURL string `yaml:"rest_base_url"`

	// Timeout bounds a whole upstream call including the streamed body.
	// Default: 300s
	Timeout time.Duration `yaml:"timeout"`

	// ProxyURL routes upstream traffic through an HTTP proxy.
	ProxyURL string `yaml:"proxy_url"`

	// Retry contains the per-endpoint retry policy.
	Retry RetryConfig `yaml:"retry"`

	// MaxConcurrentStreams bounds in-flight upstream calls.
	// Default: 256
	MaxConcurrentStreams int64 `yaml:"max_concurrent_streams"`

	// SocialAuthURL and OIDCAuthURL override the token refresh hosts. A %s
	// verb is replaced with the region.
	SocialAuthURL string `yaml:"social_auth_url"`
	OIDCAuthURL   string `yaml:"oidc_auth_url"`
}

// RetryConfig contains the retry policy for one upstream endpoint.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the backoff unit; retry k waits BaseDelay * 2^k.
	// Default: 1s
	BaseDelay time.Duration `yaml:"base_delay"`
}

// PoolConfig contains credential selection configuration.
type PoolConfig struct {
	// Strategy selects among usable credentials.
	// Options: "round-robin", "random", "least-used", "smart-score"
	// Default: "round-robin"
	Strategy string `yaml:"strategy"`

	// Cooldown controls how failures suspend a credential.
	Cooldown CooldownConfig `yaml:"cooldown"`
}

// CooldownConfig contains credential cooldown durations.
type CooldownConfig struct {
	// Quota is applied on every rate-limit failure.
	// Default: 60m
	Quota time.Duration `yaml:"quota"`

	// Error is applied once consecutive failures reach ErrorThreshold.
	// Default: 1m
	Error time.Duration `yaml:"error"`

	// ErrorThreshold is the consecutive failure count that triggers Error.
	// Default: 3
	ErrorThreshold int `yaml:"error_threshold"`
}

// ThinkingConfig contains configuration for extended thinking mode.
type ThinkingConfig struct {
	// Enabled allows thinking mode to be requested.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Suffix on a model name requests thinking mode.
	// Default: "-thinking"
	Suffix string `yaml:"suffix"`

	// MaxTokens is the thinking budget when the client does not send one.
	// Default: 4000
	MaxTokens int `yaml:"max_tokens"`
}

// ModelsConfig contains model catalogue configuration.
type ModelsConfig struct {
	// DefaultModel is used for unmatched names. When empty the enabled model
	// with the lowest display order is used.
	DefaultModel string `yaml:"default_model"`

	// DefaultMaxTokens applies to models without a configured limit.
	// Default: 200000
	DefaultMaxTokens int `yaml:"default_max_tokens"`

	// RefreshSchedule is the cron spec for reloading the catalogue.
	// Default: "@hourly"
	RefreshSchedule string `yaml:"refresh_schedule"`
}

// DatabaseConfig contains configuration for the SQLite store.
type DatabaseConfig struct {
	// Driver selects the SQLite driver.
	// Options: "sqlite3" (cgo), "sqlite" (pure Go), "memory"
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// Path is the database file path.
	// Default: "data/kiro.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a connection waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// AuditConfig contains configuration for request trace recording.
type AuditConfig struct {
	// Enabled turns on trace recording.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AsyncBuffer is the size of the write queue.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// MaxFieldLength bounds each stored body.
	// Default: 20000
	MaxFieldLength int `yaml:"max_field_length"`

	// Retention bounds stored history.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig contains audit retention configuration.
type RetentionConfig struct {
	// MaxRequestLogs is the number of request log rows kept.
	// Default: 100000
	MaxRequestLogs int `yaml:"max_request_logs"`

	// MaxTraces is the number of traces whose bodies are kept.
	// Default: 50000
	MaxTraces int `yaml:"max_traces"`

	// Schedule is the cron spec for the retention job.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains configuration for observability features.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains configuration for structured logging.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// Redact masks tokens and keys in log attributes.
	// Default: true
	Redact bool `yaml:"redact"`
}

// MetricsConfig contains configuration for Prometheus metrics.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace and Subsystem prefix every metric name.
	// Default: "kirogate", "gateway"
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets are histogram buckets in seconds.
	// Default: [0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains configuration for OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on span export. When false a noop tracer is installed.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler selects the sampling strategy.
	// Options: "always", "never", "ratio", "parent"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the "ratio" and "parent" samplers.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "kirogate"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`
}
