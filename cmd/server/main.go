package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ccgraph/internal/auth"
	"ccgraph/internal/config"
	"ccgraph/internal/handler"
	"ccgraph/internal/hub"
	"ccgraph/internal/logging"
	"ccgraph/internal/service"
	"ccgraph/internal/session"
	"ccgraph/internal/telemetry"
	"ccgraph/internal/watcher"
)

// version is set at build time
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ccgraph-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Command line flags
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	flag.Parse()

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	logger.Info("starting ccgraph server", "version", version, "config", path)
	logger.Debug("configuration", "summary", cfg.Summary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "ccgraph",
		ServiceVersion: version,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricsExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   true,
	})
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	// Open the graph store session
	sess := session.New(session.FromConfig(cfg, logger), logger)
	if err := sess.Open(ctx); err != nil {
		return fmt.Errorf("open graph store: %w", err)
	}
	defer sess.Close()
	logger.Info("graph store ready", "backend", cfg.Store.Backend)

	// Initialize event bus
	eventBus := service.NewEventBus()

	// Initialize SSE hub and connect it to the event bus
	sseHub := hub.New(logger.With("component", "hub"))
	go sseHub.Run(ctx)

	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go hub.Forward(ctx, sseHub, (<-chan service.Event)(eventChan))

	// Drop cached adjacency when the sqlite snapshot is rewritten
	if cfg.Store.Backend == config.BackendSQLite && cfg.Cache.Enabled {
		w := watcher.New([]string{cfg.Store.Path}, func(p string) {
			if err := sess.Purge(); err != nil {
				logger.Error("failed to purge cache", "error", err)
				return
			}
			eventBus.Publish(service.Event{
				Type:    service.EventCacheInvalidated,
				Payload: map[string]string{"path": p},
			})
		}, logger.With("component", "watcher"))
		go func() {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("snapshot watcher stopped", "error", err)
			}
		}()
	}

	// Initialize services
	client := service.NewClient(sess, logger)
	discovery := service.NewDiscovery(client, eventBus, cfg.Discovery.Workers)
	intersector := service.NewIntersector(client, eventBus)
	queryHandler := handler.New(client, discovery, intersector, sess, cfg.Discovery.DefaultMinConnections, logger)

	// Setup routes
	mux := http.NewServeMux()
	queryHandler.Register(mux)
	mux.Handle("GET /events", sseHub)
	if mh := telemetry.MetricsHandler(); mh != nil {
		mux.Handle("GET /metrics", mh)
	}

	// Apply middleware
	middlewares := []handler.Middleware{
		handler.Recover(logger),
		handler.CORS,
		handler.Logger(logger),
	}
	if cfg.Server.Auth.Enabled() {
		tokens := auth.NewTokenService([]byte(cfg.Server.Auth.JWTSecret), cfg.Server.Auth.Issuer, 0)
		middlewares = append(middlewares, handler.Auth(tokens, "query", "/api/health", "/metrics"))
		logger.Info("bearer token authentication enabled")
	}
	finalHandler := handler.Chain(mux, middlewares...)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      finalHandler,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}
