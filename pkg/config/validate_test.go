package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:   "bad listen address",
			mutate: func(c *Config) { c.Server.ListenAddress = "8080" },
			fields: []string{"server.listen_address"},
		},
		{
			name: "tls without material",
			mutate: func(c *Config) {
				c.Server.TLS.Enabled = true
			},
			fields: []string{"server.tls"},
		},
		{
			name: "tls with both modes",
			mutate: func(c *Config) {
				c.Server.TLS.Enabled = true
				c.Server.TLS.CertFile = "cert.pem"
				c.Server.TLS.KeyFile = "key.pem"
				c.Server.TLS.AutocertDomains = []string{"gw.example.com"}
			},
			fields: []string{"server.tls"},
		},
		{
			name: "tls autocert",
			mutate: func(c *Config) {
				c.Server.TLS.Enabled = true
				c.Server.TLS.AutocertDomains = []string{"gw.example.com"}
			},
		},
		{
			name:   "blank api key",
			mutate: func(c *Config) { c.Auth.APIKeys = []string{"sk-1", " "} },
			fields: []string{"auth.api_keys[1]"},
		},
		{
			name: "rate limit without budget",
			mutate: func(c *Config) {
				c.Auth.RateLimit.Enabled = true
				c.Auth.RateLimit.Requests = -1
				c.Auth.RateLimit.CleanupSchedule = "every so often"
			},
			fields: []string{"auth.rate_limit.requests", "auth.rate_limit.cleanup_schedule"},
		},
		{
			name: "upstream",
			mutate: func(c *Config) {
				c.Upstream.Endpoints = []string{"ftp://example.com", "https://ok.example.com/x"}
				c.Upstream.Retry.MaxRetries = 11
				c.Upstream.ProxyURL = "::"
			},
			fields: []string{"upstream.endpoints[0]", "upstream.proxy_url", "upstream.retry.max_retries"},
		},
		{
			name: "pool",
			mutate: func(c *Config) {
				c.Pool.Strategy = "fastest"
				c.Pool.Cooldown.Quota = -time.Second
				c.Pool.Cooldown.ErrorThreshold = 0
			},
			fields: []string{"pool.strategy", "pool.cooldown.quota", "pool.cooldown.error_threshold"},
		},
		{
			name:   "models schedule",
			mutate: func(c *Config) { c.Models.RefreshSchedule = "@sometimes" },
			fields: []string{"models.refresh_schedule"},
		},
		{
			name:   "every descriptor",
			mutate: func(c *Config) { c.Models.RefreshSchedule = "@every 10m" },
		},
		{
			name: "storage",
			mutate: func(c *Config) {
				c.Database.Driver = "postgres"
				c.Audit.AsyncBuffer = 0
			},
			fields: []string{"database.driver", "audit.async_buffer"},
		},
		{
			name: "memory store needs no path",
			mutate: func(c *Config) {
				c.Database.Driver = "memory"
				c.Database.Path = ""
			},
		},
		{
			name: "telemetry",
			mutate: func(c *Config) {
				c.Telemetry.Logging.Level = "trace"
				c.Telemetry.Logging.Format = "xml"
				c.Telemetry.Metrics.Path = "metrics"
				c.Telemetry.Metrics.RequestDurationBuckets = []float64{1, 1}
				c.Telemetry.Tracing.Sampler = "sometimes"
				c.Telemetry.Tracing.SampleRatio = 2
			},
			fields: []string{
				"telemetry.logging.level",
				"telemetry.logging.format",
				"telemetry.metrics.path",
				"telemetry.metrics.request_duration_buckets",
				"telemetry.tracing.sampler",
				"telemetry.tracing.sample_ratio",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			var got []string
			for _, fe := range verr.Errors {
				got = append(got, fe.Field)
			}
			if strings.Join(got, " ") != strings.Join(tt.fields, " ") {
				t.Errorf("fields = %v, want %v", got, tt.fields)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("single = %q", got)
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	got := multi.Error()
	if !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - b: worse") {
		t.Errorf("multi = %q", got)
	}
}
