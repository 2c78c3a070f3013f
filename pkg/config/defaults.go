package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = time.Duration(0)
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576  // 1MB
	DefaultMaxBodyBytes    = 10485760 // 10MB

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600 // 1 hour

	// TLS defaults
	DefaultAutocertCacheDir = "data/certs"

	// Auth defaults
	DefaultRequireAPIKey        = true
	DefaultAPIKey               = "sk-kiro-default"
	DefaultRateLimitRequests    = 60
	DefaultRateLimitWindow      = time.Minute
	DefaultRateLimitCleanupSpec = "@every 5m"

	// Admin defaults
	DefaultAdminEnabled = true

	// Upstream defaults
	DefaultRegion               = "us-east-1"
	DefaultKiroVersion          = "0.8.0"
	DefaultRESTBaseURL          = "https://codewhisperer.us-east-1.amazonaws.com"
	DefaultUpstreamTimeout      = 300 * time.Second
	DefaultMaxRetries           = 3
	DefaultBaseDelay            = time.Second
	DefaultMaxConcurrentStreams = int64(256)

	// Pool defaults
	DefaultPoolStrategy        = "round-robin"
	DefaultQuotaCooldown       = 60 * time.Minute
	DefaultErrorCooldown       = time.Minute
	DefaultErrorThreshold      = 3
	DefaultThinkingEnabled     = true
	DefaultThinkingSuffix      = "-thinking"
	DefaultThinkingMaxTokens   = 4000
	DefaultModelsMaxTokens     = 200000
	DefaultModelsRefreshSpec   = "@hourly"
	DefaultDatabaseDriver      = "sqlite3"
	DefaultDatabasePath        = "data/kiro.db"
	DefaultDatabaseMaxOpen     = 10
	DefaultDatabaseWALMode     = true
	DefaultDatabaseBusyTimeout = 5 * time.Second

	// Audit defaults
	DefaultAuditEnabled        = true
	DefaultAuditAsyncBuffer    = 1000
	DefaultAuditMaxFieldLength = 20000
	DefaultMaxRequestLogs      = 100000
	DefaultMaxTraces           = 50000
	DefaultRetentionSchedule   = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultLoggingRedact      = true
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "kirogate"
	DefaultMetricsSubsystem   = "gateway"
	DefaultTracingEnabled     = false
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingService     = "kirogate"
	DefaultTracingInsecure    = true
)

// DefaultEndpoints are the upstream streaming endpoints in failover order.
var DefaultEndpoints = []string{
	"https://codewhisperer.us-east-1.amazonaws.com/generateAssistantResponse",
	"https://q.us-east-1.amazonaws.com/generateAssistantResponse",
}

// DefaultRequestDurationBuckets cover a fast refusal up to a long stream.
var DefaultRequestDurationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// Default returns a configuration with every field at its default value.
// LoadConfig decodes YAML over this value, so switches that default to true
// stay on unless the file turns them off.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.CORS.Enabled = DefaultCORSEnabled
	cfg.Auth.RequireAPIKey = DefaultRequireAPIKey
	cfg.Admin.Enabled = DefaultAdminEnabled
	cfg.Thinking.Enabled = DefaultThinkingEnabled
	cfg.Database.WALMode = DefaultDatabaseWALMode
	cfg.Audit.Enabled = DefaultAuditEnabled
	cfg.Telemetry.Logging.Redact = DefaultLoggingRedact
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Enabled = DefaultTracingEnabled
	cfg.Telemetry.Tracing.Insecure = DefaultTracingInsecure
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values. Boolean switches
// are left alone; use Default for a fully populated value.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)

	// Auth defaults
	if cfg.Auth.APIKeys == nil {
		cfg.Auth.APIKeys = []string{DefaultAPIKey}
	}
	if cfg.Auth.RateLimit.Requests == 0 {
		cfg.Auth.RateLimit.Requests = DefaultRateLimitRequests
	}
	if cfg.Auth.RateLimit.Window == 0 {
		cfg.Auth.RateLimit.Window = DefaultRateLimitWindow
	}
	if cfg.Auth.RateLimit.CleanupSchedule == "" {
		cfg.Auth.RateLimit.CleanupSchedule = DefaultRateLimitCleanupSpec
	}

	applyUpstreamDefaults(&cfg.Upstream)

	// Pool defaults
	if cfg.Pool.Strategy == "" {
		cfg.Pool.Strategy = DefaultPoolStrategy
	}
	if cfg.Pool.Cooldown.Quota == 0 {
		cfg.Pool.Cooldown.Quota = DefaultQuotaCooldown
	}
	if cfg.Pool.Cooldown.Error == 0 {
		cfg.Pool.Cooldown.Error = DefaultErrorCooldown
	}
	if cfg.Pool.Cooldown.ErrorThreshold == 0 {
		cfg.Pool.Cooldown.ErrorThreshold = DefaultErrorThreshold
	}

	// Thinking defaults
	if cfg.Thinking.Suffix == "" {
		cfg.Thinking.Suffix = DefaultThinkingSuffix
	}
	if cfg.Thinking.MaxTokens == 0 {
		cfg.Thinking.MaxTokens = DefaultThinkingMaxTokens
	}

	// Models defaults
	if cfg.Models.DefaultMaxTokens == 0 {
		cfg.Models.DefaultMaxTokens = DefaultModelsMaxTokens
	}
	if cfg.Models.RefreshSchedule == "" {
		cfg.Models.RefreshSchedule = DefaultModelsRefreshSpec
	}

	// Database defaults
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DefaultDatabaseDriver
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDatabaseMaxOpen
	}
	if cfg.Database.BusyTimeout == 0 {
		cfg.Database.BusyTimeout = DefaultDatabaseBusyTimeout
	}

	// Audit defaults
	if cfg.Audit.AsyncBuffer == 0 {
		cfg.Audit.AsyncBuffer = DefaultAuditAsyncBuffer
	}
	if cfg.Audit.MaxFieldLength == 0 {
		cfg.Audit.MaxFieldLength = DefaultAuditMaxFieldLength
	}
	if cfg.Audit.Retention.MaxRequestLogs == 0 {
		cfg.Audit.Retention.MaxRequestLogs = DefaultMaxRequestLogs
	}
	if cfg.Audit.Retention.MaxTraces == 0 {
		cfg.Audit.Retention.MaxTraces = DefaultMaxTraces
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = DefaultRetentionSchedule
	}

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxHeaderBytes == 0 {
		s.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.TLS.AutocertCacheDir == "" {
		s.TLS.AutocertCacheDir = DefaultAutocertCacheDir
	}

	cors := &s.CORS
	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = []string{"*"}
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Api-Key", "X-Request-ID", "Anthropic-Version", "Anthropic-Beta"}
	}
	if len(cors.ExposedHeaders) == 0 {
		cors.ExposedHeaders = []string{"X-Request-ID"}
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}

func applyUpstreamDefaults(u *UpstreamConfig) {
	if u.Region == "" {
		u.Region = DefaultRegion
	}
	if u.KiroVersion == "" {
		u.KiroVersion = DefaultKiroVersion
	}
	if len(u.Endpoints) == 0 {
		u.Endpoints = append([]string(nil), DefaultEndpoints...)
	}
	if u.RESTBaseURL == "" {
		u.RESTBaseURL = DefaultRESTBaseURL
	}
	if u.Timeout == 0 {
		u.Timeout = DefaultUpstreamTimeout
	}
	if u.Retry.MaxRetries == 0 {
		u.Retry.MaxRetries = DefaultMaxRetries
	}
	if u.Retry.BaseDelay == 0 {
		u.Retry.BaseDelay = DefaultBaseDelay
	}
	if u.MaxConcurrentStreams == 0 {
		u.MaxConcurrentStreams = DefaultMaxConcurrentStreams
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(t.Metrics.RequestDurationBuckets) == 0 {
		t.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingService
	}
}
