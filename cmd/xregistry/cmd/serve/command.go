// Package serve provides the HTTP server commands: the NuGet adapter and
// the gateway.
package serve

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clemensv/xregistry-package-registries-sub002/cmd/application"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/config"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
)

// NewCommand creates the serve command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Run an adapter or the gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	// Server configuration flags; unset flags keep config file and
	// environment values.
	cmd.PersistentFlags().Int("port", 3000, "Server port")
	cmd.PersistentFlags().String("host", "localhost", "Bind address")
	cmd.PersistentFlags().String("base-url", "", "Externally visible base URL (default: derived per request)")
	cmd.PersistentFlags().String("api-key", "", "Require this bearer token on every request except /health")
	cmd.PersistentFlags().Float64("rate-limit", constants.ClientRateLimit, "Requests per second per client IP (0 to disable)")
	cmd.PersistentFlags().Bool("cors", true, "Enable CORS for all origins")
	cmd.PersistentFlags().Bool("metrics", true, "Expose prometheus metrics at /metrics")

	cmd.AddCommand(NewNuGetCommand(app))
	cmd.AddCommand(NewGatewayCommand(app))
	return cmd
}

// serverConfig merges explicitly set flags over cfg and returns the HTTP
// server configuration.
func serverConfig(cmd *cobra.Command, cfg *config.Config, version string) server.Config {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("api-key") {
		cfg.APIKey, _ = flags.GetString("api-key")
	}
	if flags.Changed("rate-limit") {
		cfg.RateLimit, _ = flags.GetFloat64("rate-limit")
	}
	if flags.Changed("cors") {
		cfg.CORS, _ = flags.GetBool("cors")
	}
	metricsEnabled, _ := flags.GetBool("metrics")

	sc := server.DefaultConfig()
	sc.Host = cfg.Host
	sc.Port = cfg.Port
	sc.BaseURL = cfg.BaseURL
	sc.Version = version
	sc.CORSEnabled = cfg.CORS
	sc.AuthEnabled = cfg.APIKey != ""
	sc.APIKey = cfg.APIKey
	sc.RateLimit = cfg.RateLimit
	sc.MetricsEnabled = metricsEnabled
	return sc
}

// startWithGracefulShutdown serves until ctx is done, then drains
// connections. ctx carries the signal handling set up in main.
func startWithGracefulShutdown(ctx context.Context, httpServer *http.Server, service string, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("service", service).
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info().Str("service", service).Msg("Shutdown signal received")

		// the parent context is already cancelled
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		logger.Info().Str("service", service).Msg("Server stopped gracefully")
		return nil
	}
}
