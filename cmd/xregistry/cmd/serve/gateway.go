package serve

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/clemensv/xregistry-package-registries-sub002/cmd/application"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/config"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/gateway"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/metrics"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

// NewGatewayCommand creates the serve gateway command.
func NewGatewayCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Route registry requests to adapters",
		Long: `Serve one registry surface in front of several adapters. Requests are
routed by group type prefix; /health, /model, /capabilities and the root
document are merged from every adapter.

The gateway waits for adapters to report healthy before it starts serving
and keeps probing them afterwards. Adapters that never come up make the
gateway serve degraded rather than fail.`,
		Example: `  # Route .NET packages to a local NuGet adapter
  xregistry serve gateway --port 8080 --route dotnetregistries=http://localhost:3100

  # Named routes from a YAML file
  xregistry serve gateway --routes-file routes.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGateway(cmd, app)
		},
	}

	cmd.Flags().StringArray("route", nil, "Route as [name:]prefix=url (repeatable)")
	cmd.Flags().String("routes-file", "", "YAML file with a routes list")
	cmd.Flags().Duration("startup-timeout", 0, "How long to wait for adapters before serving degraded")
	cmd.Flags().Duration("adapter-timeout", 0, "Timeout for one request to an adapter")
	return cmd
}

// loadRoutes reads routes from the routes file when set, else from the
// route pairs.
func loadRoutes(cfg *config.Config) ([]gateway.Route, error) {
	if cfg.RoutesFile != "" {
		data, err := os.ReadFile(cfg.RoutesFile)
		if err != nil {
			return nil, errors.NewIOError("read", cfg.RoutesFile, err)
		}
		return gateway.LoadRoutes(data)
	}
	return gateway.ParseRoutes(cfg.Routes)
}

func runGateway(cmd *cobra.Command, app application.Application) error {
	cfg := app.Config()
	flags := cmd.Flags()
	if flags.Changed("route") {
		cfg.Routes, _ = flags.GetStringArray("route")
	}
	if flags.Changed("routes-file") {
		cfg.RoutesFile, _ = flags.GetString("routes-file")
	}
	if flags.Changed("startup-timeout") {
		cfg.StartupTimeout, _ = flags.GetDuration("startup-timeout")
	}
	if flags.Changed("adapter-timeout") {
		cfg.AdapterTimeout, _ = flags.GetDuration("adapter-timeout")
	}

	routes, err := loadRoutes(cfg)
	if err != nil {
		return err
	}

	gc := gateway.DefaultConfig()
	gc.Server = serverConfig(cmd, cfg, app.Version())
	if cfg.StartupTimeout > 0 {
		gc.StartupTimeout = cfg.StartupTimeout
	}
	if cfg.AdapterTimeout > 0 {
		gc.AdapterTimeout = cfg.AdapterTimeout
	}

	logger := app.Logger().With().Str("service", "gateway").Logger()
	ctx := logging.WithLogger(cmd.Context(), &logger)

	g, err := gateway.New(routes, metrics.New(), gc, &logger)
	if err != nil {
		return err
	}
	for _, r := range g.Routes() {
		logger.Info().Str("adapter", r.Name).Str("prefix", r.Prefix).Str("url", r.URL).Msg("Route configured")
	}

	// not-ready adapters are reported by /health; the gateway serves anyway
	_ = g.WaitReady(ctx)
	g.Monitor(ctx)

	logger.Info().Str("addr", server.Addr(gc.Server)).Msg("Starting gateway")
	return startWithGracefulShutdown(ctx, g.HTTPServer(ctx), "gateway", &logger)
}
