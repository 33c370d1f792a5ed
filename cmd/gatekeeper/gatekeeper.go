package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatekeeper/internal/api"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/cache"
	"gatekeeper/internal/config"
	"gatekeeper/internal/health"
	"gatekeeper/internal/lockout"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/queue"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/reputation"
	"gatekeeper/internal/validate"
	"gatekeeper/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging with the health capture ring
	log, closer, capture, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize the audit store
	auditStore, err := audit.NewFactory().Create(cfg.Audit)
	if err != nil {
		slog.Error("Failed to initialize audit store", "error", err)
		os.Exit(1)
	}
	defer auditStore.Close()

	// Wrap the store with instrumentation when metrics are enabled
	var activeStore audit.Store = auditStore
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedAuditStore(auditStore)
		if err != nil {
			slog.Error("Failed to create instrumented audit store", "error", err)
			os.Exit(1)
		}
		activeStore = instrumented
	}
	auditLog := audit.NewLogger(activeStore)

	// Governance components
	reputationStore := reputation.NewStore(
		cfg.Security.Reputation.SuspicionThreshold,
		cfg.Security.Reputation.BlockedIPs,
		auditLog,
	)

	validator, err := validate.New(cfg.Security.Validation, reputationStore, auditLog)
	if err != nil {
		slog.Error("Failed to initialize validator", "error", err)
		os.Exit(1)
	}

	lockouts := lockout.NewTracker(
		cfg.Security.Lockout.MaxAttempts,
		cfg.Security.Lockout.LockoutDuration,
		cfg.Security.Lockout.AmnestyWindow,
	)

	limiters := map[string]ratelimit.Limiter{
		"general": ratelimit.New(cfg.Security.RateLimits.General),
		"api":     ratelimit.New(cfg.Security.RateLimits.API),
		"ai":      ratelimit.New(cfg.Security.RateLimits.AI),
	}
	for _, l := range limiters {
		defer l.Close()
	}

	sessions := cache.New("sessions", cfg.Security.SessionTTL, cfg.Cache.CleanupInterval)
	keys := cache.New("keys", cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	responses := cache.New("responses", cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	defer sessions.Close()
	defer keys.Close()
	defer responses.Close()

	upstreamQueue := queue.New(
		cfg.Upstream.Workers,
		cfg.Upstream.QueueSize,
		cfg.Upstream.RequestTimeout,
		cfg.Upstream.FailureThreshold,
		cfg.Upstream.BreakerCooldown,
	)
	defer upstreamQueue.Close()

	stats := health.NewRequestStats()
	aggregator := health.NewAggregator(stats,
		[]*cache.Cache{sessions, keys, responses},
		upstreamQueue, limiters, capture)

	handlers := api.NewHandlers(api.Deps{
		Config:     cfg,
		Validator:  validator,
		Lockouts:   lockouts,
		Limiters:   limiters,
		AuditLog:   auditLog,
		Reputation: reputationStore,
		Queue:      upstreamQueue,
		Aggregator: aggregator,
		Stats:      stats,
		Sessions:   sessions,
		Keys:       keys,
		Responses:  responses,
		Upstream:   &http.Client{Timeout: cfg.Upstream.RequestTimeout},
	})

	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr, "version", ver.Version)

		var err error
		if cfg.Server.TLSEnabled {
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}
