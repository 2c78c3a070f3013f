package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"kiro-hq/gateway/pkg/audit"
	"kiro-hq/gateway/pkg/cli"
	"kiro-hq/gateway/pkg/config"
	"kiro-hq/gateway/pkg/gateway"
	"kiro-hq/gateway/pkg/limits/ratelimit"
	"kiro-hq/gateway/pkg/pool"
	"kiro-hq/gateway/pkg/proxy/handlers"
	"kiro-hq/gateway/pkg/proxy/middleware"
	"kiro-hq/gateway/pkg/scheduler"
	"kiro-hq/gateway/pkg/server"
	"kiro-hq/gateway/pkg/storage"
	"kiro-hq/gateway/pkg/telemetry/health"
	"kiro-hq/gateway/pkg/telemetry/logging"
	"kiro-hq/gateway/pkg/telemetry/metrics"
	"kiro-hq/gateway/pkg/telemetry/tracing"
	"kiro-hq/gateway/pkg/tokens"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway server with the specified configuration.

The server listens on the configured address and serves the OpenAI and
Anthropic chat APIs, the model listing, health endpoints and, when enabled,
the admin API. Pool, auth and log level settings are reloaded when the
config file changes.

Examples:
  # Start with default config
  kirogate run

  # Start with custom config
  kirogate run --config /etc/kirogate/config.yaml

  # Override listen address
  kirogate run --listen 0.0.0.0:8080

  # Validate config without starting server
  kirogate run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	switch {
	case runFlags.logLevel != "":
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	case verbose:
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Redact:    cfg.Telemetry.Logging.Redact,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger.Logger)

	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	printBanner(out, configPath(cmd))

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	var collector *metrics.Collector
	var h hooks
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		h.onRefresh = func(method tokens.Method, err error) { collector.ObserveRefresh(method.String(), err) }
		h.onAttempt = collector.ObserveAttempt
	}

	a, err := buildApp(ctx, cfg, logger.Logger, h)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.Close()
	fmt.Fprintf(out, "✓ Database opened (%s)\n", cfg.Database.Driver)
	fmt.Fprintf(out, "✓ Model catalogue loaded (%d models)\n", len(a.resolver.ListModels()))
	fmt.Fprintf(out, "✓ Account pool loaded (%d accounts, %d available)\n", a.pool.Size(), a.pool.AvailableCount())
	if a.pool.Size() == 0 {
		slog.Warn("no accounts in the pool; add one with 'kirogate accounts add' or the admin API")
	}

	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		recorder = audit.NewRecorder(a.store, &audit.Config{
			Enabled:        true,
			AsyncBuffer:    cfg.Audit.AsyncBuffer,
			WriteTimeout:   audit.DefaultConfig().WriteTimeout,
			MaxFieldLength: cfg.Audit.MaxFieldLength,
			RedactAPIKeys:  true,
		})
		defer recorder.Close()
		fmt.Fprintln(out, "✓ Audit recorder started")
	}

	var observer gateway.Observer
	if collector != nil {
		observer = collector
		var source metrics.RecorderSource
		if recorder != nil {
			source = recorder
		}
		if err := collector.RegisterState(a.pool, source); err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to register pool metrics: %w", err))
		}
	}

	gw := gateway.New(&gateway.Config{
		Thinking:             cfg.Thinking.Enabled,
		ThinkingBudget:       cfg.Thinking.MaxTokens,
		MaxConcurrentStreams: cfg.Upstream.MaxConcurrentStreams,
	}, gateway.Components{
		Pool:     a.pool,
		Tokens:   a.tokens,
		Upstream: a.upstream,
		Resolver: a.resolver,
		Recorder: recorder,
		Observer: observer,
		Logger:   logger.Logger,
	})

	auth := middleware.NewAuthenticator(cfg.Auth.RequireAPIKey, cfg.Auth.APIKeys, a.store, rejectionObserver(collector))
	var limiter *ratelimit.Limiter
	if cfg.Auth.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.Auth.RateLimit.Requests, cfg.Auth.RateLimit.Window)
	}

	checker := health.New(0)
	checker.RegisterCheck("pool", health.PoolCheck(a.pool))
	if db, ok := a.store.(*storage.SQLite); ok {
		checker.RegisterCheck("database", func(ctx context.Context) error {
			return db.DB().PingContext(ctx)
		})
	}

	var admin *handlers.AdminHandler
	if cfg.Admin.Enabled {
		admin = handlers.NewAdminHandler(handlers.AdminDeps{
			Pool:     a.pool,
			Tokens:   a.tokens,
			Upstream: a.upstream,
			Resolver: a.resolver,
			Traces:   a.store,
			Recorder: recorder,
			Keys:     a.store,
			Logger:   logger.Logger,
		})
	}

	sched, err := newScheduler(cfg, a, recorder != nil, limiter, logger.Logger)
	if err != nil {
		return err
	}
	sched.Start(ctx)
	defer sched.Stop()

	if path := configPath(cmd); path != "" {
		r := &reloader{logger: logger, pool: a.pool, auth: auth, limiter: limiter, keepLevel: runFlags.logLevel != ""}
		watcher := config.NewWatcher(path, 0, r.apply)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	srv := server.New(cfg, server.Deps{
		Gateway:   gw,
		Models:    a.resolver,
		Auth:      auth,
		Limiter:   limiter,
		Admin:     admin,
		Health:    checker,
		Metrics:   collector,
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
		Logger:    logger.Logger,
	})

	scheme := "http"
	if cfg.Server.TLS.Enabled {
		scheme = "https"
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(out, "✓ OpenAI endpoint: %s://%s/v1/chat/completions\n", scheme, cfg.Server.ListenAddress)
	fmt.Fprintf(out, "✓ Anthropic endpoint: %s://%s/v1/messages\n", scheme, cfg.Server.ListenAddress)
	if admin != nil {
		fmt.Fprintf(out, "✓ Admin API: %s://%s/admin\n", scheme, cfg.Server.ListenAddress)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// newScheduler registers the housekeeping jobs enabled by cfg.
func newScheduler(cfg *config.Config, a *app, auditing bool, limiter *ratelimit.Limiter, logger *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New(logger)

	jobs := []scheduler.Job{
		scheduler.ModelRefreshJob(a.resolver, cfg.Models.RefreshSchedule),
	}
	if auditing {
		pruner := audit.NewPruner(a.store, audit.RetentionConfig{
			MaxRequestLogs: cfg.Audit.Retention.MaxRequestLogs,
			MaxTraces:      cfg.Audit.Retention.MaxTraces,
		})
		jobs = append(jobs, scheduler.RetentionJob(pruner, cfg.Audit.Retention.Schedule, logger))
	}
	if limiter != nil {
		jobs = append(jobs, scheduler.RateLimitCleanupJob(limiter, cfg.Auth.RateLimit.CleanupSchedule, logger))
	}

	for _, job := range jobs {
		if err := sched.Add(job); err != nil {
			return nil, cli.NewConfigError(job.Name, err.Error())
		}
	}
	return sched, nil
}

// reloader applies the hot-reloadable parts of a new configuration.
// Listener, TLS, storage and upstream settings need a restart.
type reloader struct {
	logger    *logging.Logger
	pool      *pool.Pool
	auth      *middleware.Authenticator
	limiter   *ratelimit.Limiter
	keepLevel bool
}

func (r *reloader) apply(next *config.Config) {
	if !r.keepLevel {
		if err := r.logger.SetLevel(next.Telemetry.Logging.Level); err != nil {
			r.logger.Warn("ignoring invalid log level", "level", next.Telemetry.Logging.Level, "error", err)
		}
	}

	if strategy, err := pool.ParseStrategy(next.Pool.Strategy); err != nil {
		r.logger.Warn("ignoring invalid pool strategy", "error", err)
	} else {
		r.pool.SetStrategy(strategy)
	}
	r.pool.SetCooldownPolicy(cooldownPolicy(&next.Pool.Cooldown))

	r.auth.Update(next.Auth.RequireAPIKey, next.Auth.APIKeys)
	if r.limiter != nil {
		r.limiter.Update(next.Auth.RateLimit.Requests, next.Auth.RateLimit.Window)
	}

	r.logger.Info("applied configuration changes",
		"strategy", next.Pool.Strategy,
		"require_api_key", next.Auth.RequireAPIKey,
	)
}

// rejectionObserver returns c as a middleware.RejectionObserver, or a nil
// interface when metrics are disabled.
func rejectionObserver(c *metrics.Collector) middleware.RejectionObserver {
	if c == nil {
		return nil
	}
	return c
}

func printBanner(w io.Writer, path string) {
	fmt.Fprintf(w, "Kirogate v%s\n", Version)
	if path == "" {
		fmt.Fprintln(w, "Using built-in defaults and environment overrides")
	} else {
		fmt.Fprintf(w, "Loading configuration from: %s\n", path)
	}
	fmt.Fprintln(w, "✓ Configuration loaded")
}
