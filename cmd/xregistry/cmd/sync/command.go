// Package sync provides the sync command: one catalog synchronization run
// outside the server.
package sync

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/clemensv/xregistry-package-registries-sub002/cmd/application"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/catalogsync"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/cmd/output"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/cmd/stack"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/nuget"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
)

// NewCommand creates the sync command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one NuGet catalog synchronization",
		Long: `Run one synchronization of the NuGet catalog and print a summary.

With --data-dir the cursor and the package name index are restored from
and written back to the same store the adapter uses, so a sync run before
"serve nuget" warms its index.`,
		Example: `  # Sync the last week of the catalog into a data directory
  xregistry sync --data-dir /var/lib/xregistry

  # Machine-readable summary
  xregistry sync --lookback 24h -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app)
		},
	}
	cmd.Flags().String("data-dir", "", "Directory for durable store snapshots")
	cmd.Flags().Duration("lookback", constants.SyncLookback, "Start this far back when no cursor was persisted")
	return cmd
}

func run(cmd *cobra.Command, app application.Application) error {
	cfg := app.Config()
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("lookback") {
		cfg.SyncLookback, _ = cmd.Flags().GetDuration("lookback")
	}
	logger := app.Logger()

	n, err := stack.NewNuGet(cmd.Context(), cfg, nil, logger)
	if err != nil {
		return err
	}
	res, runErr := n.Sync.Run(cmd.Context())

	closeCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := n.Close(closeCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to close store")
	}
	if runErr != nil {
		return runErr
	}

	formatter := output.NewFormatter(output.DetectFormat(app.OutputFormat()))
	return formatter.Format(cmd.OutOrStdout(), summary(res, n.Sync.Status()))
}

// summary renders a run as a two column table.
func summary(res catalogsync.RunResult, st catalogsync.Status) output.Data {
	return output.Data{
		Headers:    []string{"Metric", "Value"},
		RightAlign: []bool{false, true},
		Rows: [][]string{
			{"feed", nuget.FeedName},
			{"outcome", stack.Outcome(res, nil)},
			{"pages", strconv.Itoa(res.Pages)},
			{"failed pages", strconv.Itoa(res.FailedPages)},
			{"events", strconv.Itoa(res.Events)},
			{"added", strconv.Itoa(res.Added)},
			{"known names", strconv.Itoa(st.KnownNames)},
			{"cursor before", res.CursorBefore.UTC().Format(time.RFC3339)},
			{"cursor after", res.CursorAfter.UTC().Format(time.RFC3339)},
			{"duration", res.Duration.Round(time.Millisecond).String()},
		},
	}
}
