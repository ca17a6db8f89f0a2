package serve

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/clemensv/xregistry-package-registries-sub002/cmd/application"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/cmd/stack"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/metrics"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/nuget"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

// NewNuGetCommand creates the serve nuget command.
func NewNuGetCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nuget",
		Short: "Serve nuget.org as a registry",
		Long: `Serve a NuGet v3 feed (nuget.org by default) as a read-only registry
under /dotnetregistries/nuget.org/packages.

The catalog is synchronized in the background to maintain the package name
index. Upstream metadata is cached and revalidated with conditional
requests; with --data-dir the cache and the catalog cursor survive
restarts.`,
		Example: `  # Serve on the default port
  xregistry serve nuget

  # Persist the cache and sync every five minutes
  xregistry serve nuget --data-dir /var/lib/xregistry --sync-interval 5m

  # Private feed with an API key header
  XREGISTRY_UPSTREAM_TOKEN=... xregistry serve nuget \
    --upstream-auth-header X-NuGet-ApiKey --catalog-url https://feed.example.org/v3/catalog0/index.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNuGet(cmd, app)
		},
	}

	cmd.Flags().String("data-dir", "", "Directory for durable store snapshots (default: memory only)")
	cmd.Flags().Duration("sync-interval", constants.SyncInterval, "Interval between catalog synchronization runs")
	cmd.Flags().String("upstream-auth-header", "", "Header carrying the upstream token (default: Authorization bearer)")
	cmd.Flags().String("catalog-url", "", "NuGet catalog index URL")
	cmd.Flags().String("registration-url", "", "NuGet registration base URL")
	cmd.Flags().String("flatcontainer-url", "", "NuGet flat container base URL")
	cmd.Flags().String("search-url", "", "NuGet search query URL")
	return cmd
}

func runNuGet(cmd *cobra.Command, app application.Application) error {
	cfg := app.Config()
	applyNuGetFlags(cmd, cfg)
	sc := serverConfig(cmd, cfg, app.Version())
	logger := app.Logger().With().Str("adapter", nuget.AdapterName).Logger()
	ctx := logging.WithLogger(cmd.Context(), &logger)

	logger.Info().
		Str("addr", server.Addr(sc)).
		Str("data_dir", cfg.DataDir).
		Dur("sync_interval", cfg.SyncInterval).
		Str("catalog", stack.Endpoints(cfg).Catalog).
		Msg("Starting NuGet adapter")

	m := metrics.New()
	n, err := stack.NewNuGet(ctx, cfg, m, &logger)
	if err != nil {
		return err
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	n.Start(bgCtx)

	srv, err := server.New(n.Backend, m, sc, &logger)
	if err == nil {
		err = startWithGracefulShutdown(ctx, srv.HTTPServer(ctx), nuget.AdapterName, &logger)
	}

	stopBackground()
	closeCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if closeErr := n.Close(closeCtx); closeErr != nil {
		logger.Error().Err(closeErr).Msg("Failed to close store")
		if err == nil {
			err = closeErr
		}
	}
	return err
}
