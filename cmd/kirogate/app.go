package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"kiro-hq/gateway/pkg/config"
	"kiro-hq/gateway/pkg/models"
	"kiro-hq/gateway/pkg/pool"
	"kiro-hq/gateway/pkg/storage"
	"kiro-hq/gateway/pkg/telemetry/logging"
	"kiro-hq/gateway/pkg/tokens"
	"kiro-hq/gateway/pkg/upstream"
)

// hooks lets the run command attach metrics to the token manager and the
// upstream client. Both are optional.
type hooks struct {
	onRefresh func(method tokens.Method, err error)
	onAttempt func(endpoint string, status int)
}

// app holds the components shared by the server and the offline commands.
type app struct {
	cfg      *config.Config
	store    storage.Store
	pool     *pool.Pool
	resolver *models.Resolver
	tokens   *tokens.Manager
	upstream *upstream.Client
	logger   *slog.Logger
}

// buildApp opens the store, seeds the model catalogue on first use and
// constructs the pool, resolver, token manager and upstream client.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, h hooks) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.Open(storageConfig(&cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a := &app{cfg: cfg, store: store, logger: logger}

	seeded, err := store.SeedCatalog(ctx, models.DefaultModels(), models.DefaultMappings())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to seed model catalogue: %w", err)
	}
	if seeded {
		logger.Info("seeded model catalogue", "models", len(models.DefaultModels()))
	}

	a.resolver = models.NewResolver(store, models.Options{
		ThinkingSuffix:   cfg.Thinking.Suffix,
		DefaultModel:     cfg.Models.DefaultModel,
		DefaultMaxTokens: cfg.Models.DefaultMaxTokens,
	})
	if err := a.resolver.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load model catalogue: %w", err)
	}

	strategy, err := pool.ParseStrategy(cfg.Pool.Strategy)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pool = pool.New(store, pool.Options{
		Strategy: strategy,
		Cooldown: cooldownPolicy(&cfg.Pool.Cooldown),
	})
	if err := a.pool.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	a.tokens = tokens.NewManager(tokens.Options{
		Region:        cfg.Upstream.Region,
		OIDCBaseURL:   cfg.Upstream.OIDCAuthURL,
		SocialBaseURL: cfg.Upstream.SocialAuthURL,
		OnRotate:      a.persistRotated,
		OnRefresh:     h.onRefresh,
		Logger:        logger,
	})

	a.upstream, err = upstream.New(upstream.Options{
		Endpoints:   cfg.Upstream.Endpoints,
		MaxRetries:  cfg.Upstream.Retry.MaxRetries,
		BaseDelay:   cfg.Upstream.Retry.BaseDelay,
		Timeout:     cfg.Upstream.Timeout,
		ProxyURL:    cfg.Upstream.ProxyURL,
		KiroVersion: cfg.Upstream.KiroVersion,
		MachineID:   cfg.Upstream.MachineID,
		RESTBaseURL: cfg.Upstream.RESTBaseURL,
		OnAttempt:   h.onAttempt,
		Logger:      logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}
	return a, nil
}

// persistRotated stores a refresh token the auth service rotated, so the
// account survives a restart.
func (a *app) persistRotated(ctx context.Context, accountID, credentials string) {
	if err := a.pool.UpdateCredentials(ctx, accountID, credentials); err != nil {
		a.logger.Error("failed to persist rotated refresh token", "account_id", accountID, "error", err)
		return
	}
	a.logger.Info("persisted rotated refresh token", "account_id", accountID)
}

// Close releases the store.
func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func storageConfig(db *config.DatabaseConfig) *storage.Config {
	return &storage.Config{
		Driver:       db.Driver,
		Path:         db.Path,
		MaxOpenConns: db.MaxOpenConns,
		WALMode:      db.WALMode,
		BusyTimeout:  db.BusyTimeout,
	}
}

func cooldownPolicy(c *config.CooldownConfig) pool.CooldownPolicy {
	return pool.CooldownPolicy{
		Quota:          c.Quota,
		Error:          c.Error,
		ErrorThreshold: c.ErrorThreshold,
	}
}

// commandLogger is the console logger used by offline commands. It shows
// warnings only unless --verbose is set.
func commandLogger(w io.Writer) *slog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, Format: "console", Redact: true, Writer: w})
	if err != nil {
		return slog.Default()
	}
	return logger.Logger
}
