package serve

import (
	"github.com/spf13/cobra"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/config"
)

// applyNuGetFlags copies explicitly set NuGet flags into cfg.
func applyNuGetFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("data-dir", &cfg.DataDir)
	str("upstream-auth-header", &cfg.UpstreamAuthHeader)
	str("catalog-url", &cfg.NuGetCatalogURL)
	str("registration-url", &cfg.NuGetRegistrationURL)
	str("flatcontainer-url", &cfg.NuGetFlatContainerURL)
	str("search-url", &cfg.NuGetSearchURL)
	if flags.Changed("sync-interval") {
		cfg.SyncInterval, _ = flags.GetDuration("sync-interval")
	}
}
