package server

import (
	"time"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
)

// Config holds server configuration shared by adapters and the gateway.
type Config struct {
	// Server settings
	Host string
	Port int

	// BaseURL is the externally visible base URL; empty derives it per
	// request.
	BaseURL string

	// Version is reported by /health.
	Version string

	// CORS settings
	CORSEnabled bool
	CORSOrigins []string

	// Authentication settings. The token is checked as a pass-through
	// bearer token; /health and loopback callers bypass it.
	AuthEnabled bool
	APIKey      string

	// Performance settings
	RateLimit float64 // requests per second per IP (0 to disable)
	RateBurst int

	// HTTP timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Features
	MetricsEnabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           3000,
		CORSEnabled:    true,
		CORSOrigins:    []string{},
		AuthEnabled:    false,
		RateLimit:      constants.ClientRateLimit,
		RateBurst:      constants.BurstSize,
		ReadTimeout:    constants.ReadTimeout,
		WriteTimeout:   constants.WriteTimeout,
		IdleTimeout:    constants.IdleTimeout,
		MetricsEnabled: true,
	}
}
