// Package application provides the application interface for xregistry
// commands.
//
// Commands accept this interface rather than the concrete App type so they
// can be tested with Mock:
//
//	mock := &application.Mock{
//	    ConfigFunc: func() *config.Config { return cfg },
//	}
//	cmd := sync.NewCommand(mock)
package application

import (
	"github.com/rs/zerolog"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/config"
)

// Application provides what commands need from the process. The App
// struct from cmd/xregistry/app implements it.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Config returns the loaded configuration with flag overrides applied.
	Config() *config.Config

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string
}
