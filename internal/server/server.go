// Package server exposes the health, metrics, and webhook endpoints over a
// single listener.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/docstore"
	derrors "git.home.luguber.info/inful/docpipe/internal/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
)

// Enqueuer accepts webhook-triggered work.
type Enqueuer interface {
	EnqueueProcess(ctx context.Context, repository string) (string, error)
}

// EnqueueFunc adapts a function to the Enqueuer interface.
type EnqueueFunc func(ctx context.Context, repository string) (string, error)

// EnqueueProcess calls f.
func (f EnqueueFunc) EnqueueProcess(ctx context.Context, repository string) (string, error) {
	return f(ctx, repository)
}

// Server wires the HTTP endpoints: /healthz, /metrics, /webhooks/github.
type Server struct {
	cfg          config.ServerConfig
	store        *docstore.Store
	enq          Enqueuer
	registry     *prom.Registry
	errorAdapter *derrors.HTTPErrorAdapter
	mchain       func(http.Handler) http.Handler
	startTime    time.Time
	httpServer   *http.Server
}

// New constructs a server. store and registry may be nil; the health endpoint
// then skips the store check and /metrics serves the default registry.
func New(cfg config.ServerConfig, store *docstore.Store, enq Enqueuer, registry *prom.Registry) *Server {
	s := &Server{
		cfg:          cfg,
		store:        store,
		enq:          enq,
		registry:     registry,
		errorAdapter: derrors.NewHTTPErrorAdapter(slog.Default()),
		startTime:    time.Now(),
	}
	s.mchain = chain(slog.Default(), s.errorAdapter)
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", metrics.HTTPHandler(s.registry))
	mux.HandleFunc("/webhooks/github", s.handleGitHubWebhook)
	return s.mchain(mux)
}

// Start binds the configured address and serves in the background until Stop.
// Binding happens up front so an occupied port fails here, not in the goroutine.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", logfields.Error(err))
		}
	}()

	slog.Info("HTTP server started", "addr", addr)
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}
