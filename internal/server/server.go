// Package server assembles the HTTP surface of an adapter process: routes
// for the registry handlers plus the shared middleware chain, which the
// gateway reuses for its own surface.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/metrics"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/handlers"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	backend handlers.Backend
	metrics *metrics.Metrics
	logger  *zerolog.Logger
	config  Config
}

// New creates a new server instance for backend.
func New(backend handlers.Backend, m *metrics.Metrics, cfg Config, logger *zerolog.Logger) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("server: backend is required")
	}
	if m == nil {
		m = metrics.New()
	}
	logger.Debug().
		Str("adapter", backend.Name()).
		Bool("auth", cfg.AuthEnabled).
		Float64("rate_limit", cfg.RateLimit).
		Msg("Creating server instance")

	return &Server{
		backend: backend,
		metrics: m,
		logger:  logger,
		config:  cfg,
	}, nil
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return Addr(s.config)
}

// HTTPServer builds the http.Server for this instance.
func (s *Server) HTTPServer(ctx context.Context) *http.Server {
	return NewHTTPServer(ctx, s.config, s.Handler())
}

// Addr returns host:port for cfg.
func Addr(cfg Config) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// NewHTTPServer creates an http.Server with cfg's timeouts. Request
// contexts derive from ctx.
func NewHTTPServer(ctx context.Context, cfg Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         Addr(cfg),
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
}
