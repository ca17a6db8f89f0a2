// Package version provides the version command.
package version

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/clemensv/xregistry-package-registries-sub002/cmd/application"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/cmd/output"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
)

// NewCommand creates the version command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := output.Data{
				Headers: []string{"Field", "Value"},
				Rows: [][]string{
					{"version", app.Version()},
					{"commit", app.Commit()},
					{"date", app.Date()},
					{"spec version", constants.SpecVersion},
					{"go", runtime.Version()},
				},
			}
			formatter := output.NewFormatter(output.DetectFormat(app.OutputFormat()))
			return formatter.Format(cmd.OutOrStdout(), data)
		},
	}
}
