package scheduler

import (
	"context"
	"log/slog"

	"kiro-hq/gateway/pkg/audit"
	"kiro-hq/gateway/pkg/limits/ratelimit"
	"kiro-hq/gateway/pkg/models"
)

// Job names.
const (
	JobAuditRetention   = "audit-retention"
	JobModelRefresh     = "model-refresh"
	JobRateLimitCleanup = "ratelimit-cleanup"
)

// RetentionJob trims the request log and trace bodies to the configured
// limits.
func RetentionJob(p *audit.Pruner, schedule string, logger *slog.Logger) Job {
	return Job{
		Name:     JobAuditRetention,
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			deleted, err := p.Prune(ctx)
			if err != nil {
				return err
			}
			if deleted > 0 {
				logger.Info("audit retention completed", "deleted_count", deleted)
			}
			return nil
		},
	}
}

// ModelRefreshJob reloads the model catalogue and mapping rules from the
// store, dropping cached resolutions.
func ModelRefreshJob(r *models.Resolver, schedule string) Job {
	return Job{
		Name:     JobModelRefresh,
		Schedule: schedule,
		Run:      r.Refresh,
	}
}

// RateLimitCleanupJob forgets clients whose windows have emptied.
func RateLimitCleanupJob(l *ratelimit.Limiter, schedule string, logger *slog.Logger) Job {
	return Job{
		Name:     JobRateLimitCleanup,
		Schedule: schedule,
		Run: func(context.Context) error {
			if n := l.Cleanup(); n > 0 {
				logger.Debug("rate limit windows released", "count", n)
			}
			return nil
		},
	}
}
