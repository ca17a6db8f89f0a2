// Package gateway puts several adapter processes behind one registry
// surface. Requests are routed to adapters by group type prefix; /health,
// /model, /capabilities and the root document are assembled from every
// adapter.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/metrics"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/handlers"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
)

// Config configures the gateway.
type Config struct {
	// Server carries listen address, middleware and base URL settings.
	Server server.Config

	AdapterTimeout  time.Duration
	HealthTimeout   time.Duration
	StartupTimeout  time.Duration
	RecheckInterval time.Duration
}

// DefaultConfig returns a Config with default timeouts.
func DefaultConfig() Config {
	return Config{
		Server:          server.DefaultConfig(),
		AdapterTimeout:  constants.AdapterTimeout,
		HealthTimeout:   constants.HealthCheckTimeout,
		StartupTimeout:  constants.StartupTimeout,
		RecheckInterval: constants.HealthRecheckInterval,
	}
}

// Gateway routes registry requests to adapters.
type Gateway struct {
	adapters []*adapter
	client   *http.Client
	metrics  *metrics.Metrics
	logger   *zerolog.Logger
	cfg      Config
	started  time.Time
}

type adapter struct {
	route  Route
	target *url.URL
	proxy  *httputil.ReverseProxy

	mu     sync.RWMutex
	health AdapterHealth
}

// New creates a gateway for routes. m may be nil.
func New(routes []Route, m *metrics.Metrics, cfg Config, logger *zerolog.Logger) (*Gateway, error) {
	if len(routes) == 0 {
		return nil, errors.NewConfigError("gateway", "no routes configured", nil)
	}
	if m == nil {
		m = metrics.New()
	}
	d := DefaultConfig()
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = d.AdapterTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = d.HealthTimeout
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = d.StartupTimeout
	}
	if cfg.RecheckInterval <= 0 {
		cfg.RecheckInterval = d.RecheckInterval
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	g := &Gateway{
		client:  &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		metrics: m,
		logger:  logger,
		cfg:     cfg,
		started: time.Now(),
	}
	for _, r := range routes {
		target, err := url.Parse(r.URL)
		if err != nil {
			return nil, errors.NewConfigError("gateway", fmt.Sprintf("route %s", r.Prefix), err)
		}
		a := &adapter{
			route:  r,
			target: target,
			health: AdapterHealth{Name: r.Name, Prefix: r.Prefix, URL: r.URL, Status: StatusUnknown},
		}
		a.proxy = g.newProxy(a)
		g.adapters = append(g.adapters, a)
		m.SetAdapterUp(r.Name, false)
	}

	logger.Info().Int("adapters", len(g.adapters)).Msg("Gateway configured")
	return g, nil
}

// Routes returns the configured routes, most specific first.
func (g *Gateway) Routes() []Route {
	out := make([]Route, len(g.adapters))
	for i, a := range g.adapters {
		out[i] = a.route
	}
	return out
}

func (g *Gateway) match(path string) *adapter {
	for _, a := range g.adapters {
		if a.route.Matches(path) {
			return a
		}
	}
	return nil
}

// Handler returns the gateway's HTTP surface with the shared middleware.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /health", g.HandleHealth)
	mux.HandleFunc("GET /model", g.HandleModel)
	mux.HandleFunc("GET /capabilities", g.HandleCapabilities)
	if g.cfg.Server.MetricsEnabled {
		mux.Handle("GET /metrics", g.metrics.Handler())
	}
	mux.HandleFunc("GET /{$}", g.HandleRoot)
	mux.HandleFunc("/", g.HandleProxy)

	return server.Middleware(g.cfg.Server, g.metrics, g.logger)(mux)
}

// HTTPServer builds the http.Server for the gateway.
func (g *Gateway) HTTPServer(ctx context.Context) *http.Server {
	return server.NewHTTPServer(ctx, g.cfg.Server, g.Handler())
}

// baseURL is the externally visible base URL of the gateway.
func (g *Gateway) baseURL(r *http.Request) string {
	if g.cfg.Server.BaseURL != "" {
		return g.cfg.Server.BaseURL
	}
	return handlers.RequestBase(r)
}
