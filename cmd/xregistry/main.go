// Package main provides the entry point for the xregistry CLI: the NuGet
// adapter, the gateway, and catalog maintenance commands.
package main

import (
	"context"
	"os"

	"github.com/clemensv/xregistry-package-registries-sub002/cmd/xregistry/app"
)

// Version information populated at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	application, err := app.New(version, commit, date)
	if err != nil {
		app.ExitOnError(err)
	}

	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	if err := application.Execute(ctx, os.Args[1:]); err != nil {
		application.Logger().Error().Err(err).Msg("Command failed")
		app.ExitOnError(err)
	}
}
