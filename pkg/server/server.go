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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"avtolenta/gigaformat/pkg/journal"
)

// Config contains HTTP server settings.
type Config struct {
	// ListenAddress is the address to bind to.
	ListenAddress string

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration

	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps the request body size.
	MaxBodyBytes int64

	// MetricsPath exposes Prometheus metrics when non-empty.
	MetricsPath string
}

// Server is the gigaformat HTTP API server.
type Server struct {
	config  Config
	service FormatterService
	tracker QuotaReporter
	journal journal.Journal
	health  HealthChecker
	logger  *slog.Logger

	// gatherer serves the metrics endpoint
	gatherer prometheus.Gatherer

	httpServer   *http.Server
	maxBodyBytes int64

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Option configures a Server.
type Option func(*Server)

// WithJournal exposes usage history through GET /v1/usage.
func WithJournal(j journal.Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithHealthChecker wires the readiness probe to the upstream API.
func WithHealthChecker(h HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithGatherer sets the Prometheus gatherer backing the metrics endpoint.
// Defaults to the global default gatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer creates the API server.
func NewServer(cfg Config, service FormatterService, tracker QuotaReporter, opts ...Option) *Server {
	s := &Server{
		config:   cfg,
		service:  service,
		tracker:  tracker,
		logger:   slog.Default().With("component", "server"),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.maxBodyBytes = cfg.MaxBodyBytes
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = 64 * 1024
	}

	return s
}

// Start starts the HTTP server and blocks until the context is cancelled,
// a termination signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server, letting in-flight requests
// finish within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("http server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler with the full middleware
// chain applied. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/format", s.handleFormat)
	mux.HandleFunc("/v1/quota", s.handleQuota)
	mux.HandleFunc("/v1/usage", s.handleUsage)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)

	if s.config.MetricsPath != "" {
		mux.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(s.logger)(handler)

	return handler
}
