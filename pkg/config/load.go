package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override name.
const EnvPrefix = "KIROGATE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML over the defaults without validating.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention KIROGATE_SECTION_FIELD (e.g., KIROGATE_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from the defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg, os.LookupEnv)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// envBinding connects one environment variable suffix to a field setter.
type envBinding struct {
	name string
	set  func(cfg *Config, val string) error
}

func stringVar(get func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		*get(cfg) = val
		return nil
	}
}

func listVar(get func(*Config) *[]string) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*get(cfg) = out
		return nil
	}
}

func durationVar(get func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*get(cfg) = d
		return nil
	}
}

func intVar(get func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		i, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*get(cfg) = i
		return nil
	}
}

func boolVar(get func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		*get(cfg) = b
		return nil
	}
}

func floatVar(get func(*Config) *float64) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		*get(cfg) = f
		return nil
	}
}

var envBindings = []envBinding{
	{"SERVER_LISTEN_ADDRESS", stringVar(func(c *Config) *string { return &c.Server.ListenAddress })},
	{"SERVER_READ_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ReadTimeout })},
	{"SERVER_WRITE_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.WriteTimeout })},
	{"SERVER_IDLE_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.IdleTimeout })},
	{"SERVER_SHUTDOWN_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ShutdownTimeout })},
	{"SERVER_TLS_ENABLED", boolVar(func(c *Config) *bool { return &c.Server.TLS.Enabled })},
	{"SERVER_TLS_CERT_FILE", stringVar(func(c *Config) *string { return &c.Server.TLS.CertFile })},
	{"SERVER_TLS_KEY_FILE", stringVar(func(c *Config) *string { return &c.Server.TLS.KeyFile })},
	{"SERVER_TLS_AUTOCERT_DOMAINS", listVar(func(c *Config) *[]string { return &c.Server.TLS.AutocertDomains })},
	{"AUTH_REQUIRE_API_KEY", boolVar(func(c *Config) *bool { return &c.Auth.RequireAPIKey })},
	{"AUTH_API_KEYS", listVar(func(c *Config) *[]string { return &c.Auth.APIKeys })},
	{"AUTH_RATE_LIMIT_ENABLED", boolVar(func(c *Config) *bool { return &c.Auth.RateLimit.Enabled })},
	{"AUTH_RATE_LIMIT_REQUESTS", intVar(func(c *Config) *int { return &c.Auth.RateLimit.Requests })},
	{"AUTH_RATE_LIMIT_WINDOW", durationVar(func(c *Config) *time.Duration { return &c.Auth.RateLimit.Window })},
	{"ADMIN_ENABLED", boolVar(func(c *Config) *bool { return &c.Admin.Enabled })},
	{"ADMIN_TOKEN", stringVar(func(c *Config) *string { return &c.Admin.Token })},
	{"UPSTREAM_REGION", stringVar(func(c *Config) *string { return &c.Upstream.Region })},
	{"UPSTREAM_KIRO_VERSION", stringVar(func(c *Config) *string { return &c.Upstream.KiroVersion })},
	{"UPSTREAM_MACHINE_ID", stringVar(func(c *Config) *string { return &c.Upstream.MachineID })},
	{"UPSTREAM_ENDPOINTS", listVar(func(c *Config) *[]string { return &c.Upstream.Endpoints })},
	{"UPSTREAM_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Upstream.Timeout })},
	{"UPSTREAM_PROXY_URL", stringVar(func(c *Config) *string { return &c.Upstream.ProxyURL })},
	{"UPSTREAM_RETRY_MAX_RETRIES", intVar(func(c *Config) *int { return &c.Upstream.Retry.MaxRetries })},
	{"UPSTREAM_RETRY_BASE_DELAY", durationVar(func(c *Config) *time.Duration { return &c.Upstream.Retry.BaseDelay })},
	{"POOL_STRATEGY", stringVar(func(c *Config) *string { return &c.Pool.Strategy })},
	{"POOL_COOLDOWN_QUOTA", durationVar(func(c *Config) *time.Duration { return &c.Pool.Cooldown.Quota })},
	{"POOL_COOLDOWN_ERROR", durationVar(func(c *Config) *time.Duration { return &c.Pool.Cooldown.Error })},
	{"POOL_COOLDOWN_ERROR_THRESHOLD", intVar(func(c *Config) *int { return &c.Pool.Cooldown.ErrorThreshold })},
	{"THINKING_ENABLED", boolVar(func(c *Config) *bool { return &c.Thinking.Enabled })},
	{"THINKING_SUFFIX", stringVar(func(c *Config) *string { return &c.Thinking.Suffix })},
	{"THINKING_MAX_TOKENS", intVar(func(c *Config) *int { return &c.Thinking.MaxTokens })},
	{"MODELS_DEFAULT_MODEL", stringVar(func(c *Config) *string { return &c.Models.DefaultModel })},
	{"DATABASE_DRIVER", stringVar(func(c *Config) *string { return &c.Database.Driver })},
	{"DATABASE_PATH", stringVar(func(c *Config) *string { return &c.Database.Path })},
	{"AUDIT_ENABLED", boolVar(func(c *Config) *bool { return &c.Audit.Enabled })},
	{"TELEMETRY_LOGGING_LEVEL", stringVar(func(c *Config) *string { return &c.Telemetry.Logging.Level })},
	{"TELEMETRY_LOGGING_FORMAT", stringVar(func(c *Config) *string { return &c.Telemetry.Logging.Format })},
	{"TELEMETRY_METRICS_ENABLED", boolVar(func(c *Config) *bool { return &c.Telemetry.Metrics.Enabled })},
	{"TELEMETRY_TRACING_ENABLED", boolVar(func(c *Config) *bool { return &c.Telemetry.Tracing.Enabled })},
	{"TELEMETRY_TRACING_ENDPOINT", stringVar(func(c *Config) *string { return &c.Telemetry.Tracing.Endpoint })},
	{"TELEMETRY_TRACING_SAMPLE_RATIO", floatVar(func(c *Config) *float64 { return &c.Telemetry.Tracing.SampleRatio })},
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Values that fail to parse are ignored, leaving the file value in place.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) {
	for _, b := range envBindings {
		val, ok := lookup(EnvPrefix + b.name)
		if !ok || val == "" {
			continue
		}
		_ = b.set(cfg, val)
	}
}
