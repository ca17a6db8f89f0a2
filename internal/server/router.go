package server

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/metrics"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/handlers"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/middleware"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	h := handlers.New(s.backend, handlers.Config{
		BaseURL: s.config.BaseURL,
		Version: s.config.Version,
	}, s.logger)

	s.registerRoutes(mux, h)

	return Middleware(s.config, s.metrics, s.logger)(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	// Favicon handler (return 204 No Content to avoid 404 logs)
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /model", h.HandleModel)
	mux.HandleFunc("GET /capabilities", h.HandleCapabilities)

	if s.config.MetricsEnabled {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Everything else is a registry path.
	mux.HandleFunc("/", h.HandleRegistry)
}

// Middleware returns the middleware chain shared by adapters and the
// gateway, outermost first.
func Middleware(cfg Config, m *metrics.Metrics, logger *zerolog.Logger) func(http.Handler) http.Handler {
	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(logger),
		middleware.RequestID,
		middleware.Logger(logger),
	}
	if cfg.MetricsEnabled && m != nil {
		chain = append(chain, middleware.Metrics(m))
	}
	if cfg.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
		} else {
			corsConfig.AllowAll = true
		}
		chain = append(chain, middleware.CORS(corsConfig))
	}
	chain = append(chain, middleware.ReadOnly)
	if cfg.RateLimit > 0 {
		chain = append(chain, middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, logger)))
	}
	if cfg.AuthEnabled {
		authConfig := middleware.DefaultAuthConfig()
		authConfig.Enabled = true
		authConfig.APIKey = cfg.APIKey
		chain = append(chain, middleware.Auth(authConfig, logger))
	}
	chain = append(chain, middleware.DetailsAlias)
	return middleware.Chain(chain...)
}
