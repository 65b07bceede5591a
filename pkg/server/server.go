package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"resumehq/refinery/pkg/api"
	"resumehq/refinery/pkg/api/middleware"
	"resumehq/refinery/pkg/config"
	"resumehq/refinery/pkg/kvstore"
	"resumehq/refinery/pkg/providers"
)

// Server is the HTTP server for the refinement service.
type Server struct {
	config   *config.Config
	refinery *SwappableRefinery
	provider providers.Provider
	store    *kvstore.Store
	resolver *middleware.TokenResolver

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a new refinement server. The refinery is wrapped
// so configuration reloads can swap it at runtime; the store may be a
// disabled (unconfigured) instance.
func NewServer(cfg *config.Config, refinery api.Refinery, provider providers.Provider, store *kvstore.Store) *Server {
	return &Server{
		config:       cfg,
		refinery:     NewSwappableRefinery(refinery),
		provider:     provider,
		store:        store,
		resolver:     middleware.NewTokenResolver(cfg.Auth.Keys),
		shutdownChan: make(chan struct{}),
	}
}

// Refinery returns the swappable orchestrator handle for reload
// wiring.
func (s *Server) Refinery() *SwappableRefinery {
	return s.refinery
}

// Resolver returns the auth token resolver for reload wiring.
func (s *Server) Resolver() *middleware.TokenResolver {
	return s.resolver
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting refinement server",
			"address", s.config.Server.ListenAddress,
			"auth_enabled", s.config.Auth.Enabled,
			"store_enabled", s.store.Enabled(),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("refinement server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	refineHandler := api.NewRefineHandler(s.refinery)
	batchHandler := api.NewBatchRefineHandler(s.refinery)
	statusHandler := api.NewStatusHandler(s.refinery)
	healthHandler := api.NewHealthHandler()
	readyHandler := api.NewReadyHandler(s.provider, s.store)

	// Authenticated routes get the full chain including auth.
	authed := middleware.AuthMiddleware(s.config.Auth.Enabled, s.resolver)

	mux.Handle("/v1/refine", authed(refineHandler))
	mux.Handle("/v1/refine/batch", authed(batchHandler))
	mux.Handle("/v1/rate-limit", authed(statusHandler))

	// Probes and metrics stay unauthenticated.
	mux.Handle("/health", healthHandler)
	mux.Handle("/ready", readyHandler)
	if s.config.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	var handler http.Handler = mux

	handler = middleware.CORSMiddleware(s.convertCORSConfig())(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// convertCORSConfig converts config.CORSConfig to middleware.CORSConfig.
func (s *Server) convertCORSConfig() *middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.Enabled = s.config.Server.CORS.Enabled
	if len(s.config.Server.CORS.AllowedOrigins) > 0 {
		cors.AllowedOrigins = s.config.Server.CORS.AllowedOrigins
	}
	if s.config.Server.CORS.MaxAge > 0 {
		cors.MaxAge = s.config.Server.CORS.MaxAge
	}
	return cors
}
