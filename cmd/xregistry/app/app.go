// Package app provides the application context and dependency management
// for the xregistry CLI: configuration, logging and command wiring.
package app

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/clemensv/xregistry-package-registries-sub002/cmd/application"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/config"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

// App represents the xregistry application with its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string

	mu     sync.RWMutex
	config *config.Config
	logger *zerolog.Logger
}

var _ application.Application = (*App)(nil)

// New creates an App with configuration loaded from the default
// locations. A --config flag reloads it before the command runs.
func New(version, commit, date string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
	}

	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	app.config = cfg

	logger := NewLogger(cfg)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// Config returns the application configuration.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.Config().Format
}

func (a *App) setConfig(cfg *config.Config) {
	logger := NewLogger(cfg)
	logging.SetDefault(logger)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = cfg
	a.logger = &logger
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		a.config = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}
