package audit

import (
	"context"
	"fmt"
	"log/slog"
)

// RetentionConfig bounds stored audit rows. Zero disables a bound.
type RetentionConfig struct {
	// MaxRequestLogs is the number of request log rows kept.
	// Default: 100000
	MaxRequestLogs int

	// MaxTraces is the number of trace bodies kept.
	// Default: 50000
	MaxTraces int
}

// DefaultRetentionConfig returns the default retention bounds.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{MaxRequestLogs: 100000, MaxTraces: 50000}
}

// Pruner enforces RetentionConfig on a Store.
type Pruner struct {
	store  Store
	config RetentionConfig
	logger *slog.Logger
}

// NewPruner creates a pruner.
func NewPruner(store Store, config RetentionConfig) *Pruner {
	return &Pruner{
		store:  store,
		config: config,
		logger: slog.Default().With("component", "audit.retention"),
	}
}

// Prune deletes the oldest rows beyond each bound and returns the total
// number of rows removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.MaxTraces > 0 {
		n, err := p.store.PruneTraceBodies(ctx, p.config.MaxTraces)
		if err != nil {
			return total, fmt.Errorf("prune trace bodies: %w", err)
		}
		total += n
	}

	if p.config.MaxRequestLogs > 0 {
		n, err := p.store.PruneRequestLogs(ctx, p.config.MaxRequestLogs)
		if err != nil {
			return total, fmt.Errorf("prune request logs: %w", err)
		}
		total += n
	}

	if total > 0 {
		p.logger.Info("audit pruning completed",
			"total_deleted", total,
			"max_request_logs", p.config.MaxRequestLogs,
			"max_traces", p.config.MaxTraces,
		)
	} else {
		p.logger.Debug("no audit rows pruned")
	}
	return total, nil
}
