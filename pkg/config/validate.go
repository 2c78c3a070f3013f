package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var (
	poolStrategies  = []string{"round-robin", "random", "least-used", "smart-score"}
	databaseDrivers = []string{"sqlite3", "sqlite", "memory"}
	logLevels       = []string{"debug", "info", "warn", "warning", "error"}
	logFormats      = []string{"json", "text", "console"}
	samplers        = []string{"always", "never", "ratio", "parent"}
	cronParser      = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validatePool(&cfg.Pool)...)
	errs = append(errs, validateThinking(&cfg.Thinking)...)
	errs = append(errs, validateModels(&cfg.Models)...)
	errs = append(errs, validateStorage(&cfg.Database, &cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: fmt.Sprintf("invalid host:port: %v", err)})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must not be negative"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "idle timeout must not be negative"})
	}
	if cfg.MaxHeaderBytes < 0 || cfg.MaxHeaderBytes > 10*1024*1024 {
		errs = append(errs, FieldError{Field: "server.max_header_bytes", Message: "max header bytes must be between 0 and 10MB"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "max body bytes must not be negative"})
	}

	if cfg.TLS.Enabled {
		static := cfg.TLS.CertFile != "" || cfg.TLS.KeyFile != ""
		switch {
		case static && len(cfg.TLS.AutocertDomains) > 0:
			errs = append(errs, FieldError{Field: "server.tls", Message: "cert_file/key_file and autocert_domains are mutually exclusive"})
		case static && (cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == ""):
			errs = append(errs, FieldError{Field: "server.tls", Message: "cert_file and key_file must be set together"})
		case !static && len(cfg.TLS.AutocertDomains) == 0:
			errs = append(errs, FieldError{Field: "server.tls", Message: "TLS requires cert_file/key_file or autocert_domains"})
		}
	}

	return errs
}

// validateAuth validates client authentication configuration.
func validateAuth(cfg *AuthConfig) []FieldError {
	var errs []FieldError

	for i, key := range cfg.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("auth.api_keys[%d]", i), Message: "API key must not be empty"})
		}
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Requests <= 0 {
			errs = append(errs, FieldError{Field: "auth.rate_limit.requests", Message: "requests must be positive"})
		}
		if cfg.RateLimit.Window <= 0 {
			errs = append(errs, FieldError{Field: "auth.rate_limit.window", Message: "window must be positive"})
		}
		errs = append(errs, validateSchedule("auth.rate_limit.cleanup_schedule", cfg.RateLimit.CleanupSchedule)...)
	}

	return errs
}

// validateUpstream validates upstream client configuration.
func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if len(cfg.Endpoints) == 0 {
		errs = append(errs, FieldError{Field: "upstream.endpoints", Message: "at least one endpoint is required"})
	}
	for i, ep := range cfg.Endpoints {
		if !isHTTPURL(ep) {
			errs = append(errs, FieldError{Field: fmt.Sprintf("upstream.endpoints[%d]", i), Message: fmt.Sprintf("invalid URL %q", ep)})
		}
	}
	if cfg.RESTBaseURL != "" && !isHTTPURL(cfg.RESTBaseURL) {
		errs = append(errs, FieldError{Field: "upstream.rest_base_url", Message: fmt.Sprintf("invalid URL %q", cfg.RESTBaseURL)})
	}
	if cfg.ProxyURL != "" {
		if u, err := url.Parse(cfg.ProxyURL); err != nil || u.Host == "" {
			errs = append(errs, FieldError{Field: "upstream.proxy_url", Message: fmt.Sprintf("invalid proxy URL %q", cfg.ProxyURL)})
		}
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{Field: "upstream.timeout", Message: "timeout must not be negative"})
	}
	if cfg.Retry.MaxRetries < 0 || cfg.Retry.MaxRetries > 10 {
		errs = append(errs, FieldError{Field: "upstream.retry.max_retries", Message: "max retries must be between 0 and 10"})
	}
	if cfg.Retry.BaseDelay < 0 {
		errs = append(errs, FieldError{Field: "upstream.retry.base_delay", Message: "base delay must not be negative"})
	}
	if cfg.MaxConcurrentStreams <= 0 {
		errs = append(errs, FieldError{Field: "upstream.max_concurrent_streams", Message: "must be positive"})
	}

	return errs
}

// validatePool validates credential pool configuration.
func validatePool(cfg *PoolConfig) []FieldError {
	var errs []FieldError

	if !lo.Contains(poolStrategies, cfg.Strategy) {
		errs = append(errs, FieldError{
			Field:   "pool.strategy",
			Message: fmt.Sprintf("unknown strategy %q (valid: %s)", cfg.Strategy, strings.Join(poolStrategies, ", ")),
		})
	}
	if cfg.Cooldown.Quota < 0 {
		errs = append(errs, FieldError{Field: "pool.cooldown.quota", Message: "quota cooldown must not be negative"})
	}
	if cfg.Cooldown.Error < 0 {
		errs = append(errs, FieldError{Field: "pool.cooldown.error", Message: "error cooldown must not be negative"})
	}
	if cfg.Cooldown.ErrorThreshold < 1 {
		errs = append(errs, FieldError{Field: "pool.cooldown.error_threshold", Message: "error threshold must be at least 1"})
	}

	return errs
}

// validateThinking validates thinking mode configuration.
func validateThinking(cfg *ThinkingConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && cfg.Suffix == "" {
		errs = append(errs, FieldError{Field: "thinking.suffix", Message: "suffix is required when thinking is enabled"})
	}
	if cfg.MaxTokens < 0 {
		errs = append(errs, FieldError{Field: "thinking.max_tokens", Message: "max tokens must not be negative"})
	}

	return errs
}

// validateModels validates model catalogue configuration.
func validateModels(cfg *ModelsConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultMaxTokens <= 0 {
		errs = append(errs, FieldError{Field: "models.default_max_tokens", Message: "default max tokens must be positive"})
	}
	errs = append(errs, validateSchedule("models.refresh_schedule", cfg.RefreshSchedule)...)

	return errs
}

// validateStorage validates database and audit configuration.
func validateStorage(db *DatabaseConfig, audit *AuditConfig) []FieldError {
	var errs []FieldError

	if !lo.Contains(databaseDrivers, db.Driver) {
		errs = append(errs, FieldError{
			Field:   "database.driver",
			Message: fmt.Sprintf("unknown driver %q (valid: %s)", db.Driver, strings.Join(databaseDrivers, ", ")),
		})
	}
	if db.Driver != "memory" && db.Path == "" {
		errs = append(errs, FieldError{Field: "database.path", Message: "path is required"})
	}
	if db.MaxOpenConns < 1 {
		errs = append(errs, FieldError{Field: "database.max_open_conns", Message: "must be at least 1"})
	}

	if audit.AsyncBuffer < 1 {
		errs = append(errs, FieldError{Field: "audit.async_buffer", Message: "must be at least 1"})
	}
	if audit.MaxFieldLength < 0 {
		errs = append(errs, FieldError{Field: "audit.max_field_length", Message: "must not be negative"})
	}
	if audit.Retention.MaxRequestLogs < 0 {
		errs = append(errs, FieldError{Field: "audit.retention.max_request_logs", Message: "must not be negative"})
	}
	if audit.Retention.MaxTraces < 0 {
		errs = append(errs, FieldError{Field: "audit.retention.max_traces", Message: "must not be negative"})
	}
	errs = append(errs, validateSchedule("audit.retention.schedule", audit.Retention.Schedule)...)

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if !lo.Contains(logLevels, strings.ToLower(cfg.Logging.Level)) {
		errs = append(errs, FieldError{Field: "telemetry.logging.level", Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level)})
	}
	if !lo.Contains(logFormats, strings.ToLower(cfg.Logging.Format)) {
		errs = append(errs, FieldError{Field: "telemetry.logging.format", Message: fmt.Sprintf("unknown format %q", cfg.Logging.Format)})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "path must start with /"})
	}
	for i := 1; i < len(cfg.Metrics.RequestDurationBuckets); i++ {
		if cfg.Metrics.RequestDurationBuckets[i] <= cfg.Metrics.RequestDurationBuckets[i-1] {
			errs = append(errs, FieldError{Field: "telemetry.metrics.request_duration_buckets", Message: "buckets must be strictly increasing"})
			break
		}
	}

	if !lo.Contains(samplers, cfg.Tracing.Sampler) {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sampler", Message: fmt.Sprintf("unknown sampler %q", cfg.Tracing.Sampler)})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0 and 1"})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
	}

	return errs
}

func validateSchedule(field, spec string) []FieldError {
	if spec == "" {
		return nil
	}
	if _, err := cronParser.Parse(spec); err != nil {
		return []FieldError{{Field: field, Message: fmt.Sprintf("invalid cron schedule %q: %v", spec, err)}}
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
