package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/acme/autocert"

	"kiro-hq/gateway/pkg/config"
	"kiro-hq/gateway/pkg/limits/ratelimit"
	"kiro-hq/gateway/pkg/proxy/handlers"
	"kiro-hq/gateway/pkg/proxy/middleware"
	"kiro-hq/gateway/pkg/telemetry/health"
	"kiro-hq/gateway/pkg/telemetry/metrics"
	"kiro-hq/gateway/pkg/telemetry/tracing"
)

// Deps are the components the server routes to. Limiter, Admin and Metrics
// may be nil to leave the feature off.
type Deps struct {
	Gateway handlers.Orchestrator
	Models  handlers.ModelLister
	Auth    *middleware.Authenticator
	Limiter *ratelimit.Limiter
	Admin   *handlers.AdminHandler
	Health  *health.Checker
	Metrics *metrics.Collector

	Version   string
	Commit    string
	BuildTime string

	Logger *slog.Logger
}

// Server is the gateway HTTP server.
type Server struct {
	config     *config.Config
	deps       Deps
	logger     *slog.Logger
	httpServer *http.Server
	challenge  *http.Server
	certs      *certReloader

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server. Nothing listens until Start.
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		deps:   deps,
		logger: logger.With("component", "server"),
	}
}

// Start listens and serves until ctx is cancelled or the listener fails,
// then shuts down gracefully. Signal handling belongs to the caller, which
// cancels ctx.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	cfg := s.config.Server
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	if cfg.TLS.Enabled {
		tlsConfig, err := s.configureTLS()
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}

	errChan := make(chan error, 2)
	go func() {
		s.logger.Info("starting gateway server",
			"address", ln.Addr().String(),
			"tls_enabled", cfg.TLS.Enabled,
			"admin_enabled", s.deps.Admin != nil,
		)

		var err error
		if cfg.TLS.Enabled {
			// Certificates come from TLSConfig.
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	if s.certs != nil {
		go func() {
			if err := s.certs.Run(ctx); err != nil {
				s.logger.Warn("certificate reloading disabled", "error", err)
			}
		}()
	}

	if s.challenge != nil {
		go func() {
			s.logger.Info("serving ACME http-01 challenges", "address", s.challenge.Addr)
			if err := s.challenge.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("challenge server error: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return err
	}
}

// Shutdown stops accepting connections and waits up to the configured
// shutdown timeout for in-flight requests, including open streams.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		timeout := s.config.Server.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if s.challenge != nil {
			_ = s.challenge.Shutdown(shutdownCtx)
		}
		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("gateway server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// configureTLS builds the TLS config from a static certificate pair or,
// when domains are listed, from Let's Encrypt through autocert.
func (s *Server) configureTLS() (*tls.Config, error) {
	cfg := s.config.Server.TLS

	if len(cfg.AutocertDomains) > 0 {
		if err := os.MkdirAll(cfg.AutocertCacheDir, 0o700); err != nil {
			return nil, fmt.Errorf("create autocert cache dir: %w", err)
		}
		mgr := &autocert.Manager{
			Cache:      autocert.DirCache(cfg.AutocertCacheDir),
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.AutocertDomains...),
		}
		s.challenge = &http.Server{
			Addr:              ":80",
			Handler:           mgr.HTTPHandler(nil),
			ReadHeaderTimeout: 10 * time.Second,
		}
		tlsConfig := mgr.TLSConfig()
		tlsConfig.MinVersion = tls.VersionTLS12
		return tlsConfig, nil
	}

	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("TLS needs cert_file and key_file, or autocert_domains")
	}
	certs, err := newCertReloader(cfg.CertFile, cfg.KeyFile, s.logger)
	if err != nil {
		return nil, err
	}
	s.certs = certs
	return &tls.Config{
		GetCertificate: certs.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}, nil
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	cfg := s.config
	r := chi.NewRouter()

	// Outermost first.
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggingMiddleware(s.logger))
	r.Use(middleware.CORSMiddleware(&cfg.Server.CORS))
	r.Use(tracing.HTTPMiddleware)

	if s.deps.Health != nil {
		r.Get("/health", s.deps.Health.LivenessHandler())
		r.Head("/health", s.deps.Health.LivenessHandler())
		r.Get("/ready", s.deps.Health.ReadinessHandler())
		r.Head("/ready", s.deps.Health.ReadinessHandler())
	}
	r.Get("/version", health.VersionHandler(s.deps.Version, s.deps.Commit, s.deps.BuildTime))
	if s.deps.Metrics != nil && cfg.Telemetry.Metrics.Enabled {
		r.Handle(cfg.Telemetry.Metrics.Path, s.deps.Metrics.Handler())
	}

	chat := handlers.NewOpenAIHandler(s.deps.Gateway, cfg.Server.MaxBodyBytes)
	messages := handlers.NewAnthropicHandler(s.deps.Gateway, cfg.Server.MaxBodyBytes)
	listModels := handlers.NewModelsHandler(s.deps.Models)

	public := func(pr chi.Router) {
		pr.Use(middleware.BodyLimitMiddleware(cfg.Server.MaxBodyBytes))
		if s.deps.Auth != nil {
			pr.Use(s.deps.Auth.Middleware)
		}
		if s.deps.Limiter != nil {
			pr.Use(middleware.RateLimitMiddleware(s.deps.Limiter, s.rejections()))
		}
		pr.Post("/chat/completions", chat.ServeHTTP)
		pr.Post("/messages", messages.ServeHTTP)
		pr.Get("/models", listModels.ServeHTTP)
	}
	r.Route("/v1", public)
	r.Group(public)

	if s.deps.Admin != nil && cfg.Admin.Enabled {
		r.With(middleware.AdminAuth(cfg.Admin.Token)).Mount("/admin", s.deps.Admin.Routes())
	}

	return r
}

func (s *Server) rejections() middleware.RejectionObserver {
	if s.deps.Metrics == nil {
		return nil
	}
	return s.deps.Metrics
}
