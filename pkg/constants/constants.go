// Package constants provides shared constants used by the registry adapters
// and the gateway: timeouts, protocol limits, and file permissions.
package constants

import "time"

// Protocol identification.
const (
	// SpecVersion is the registry protocol version served by every adapter
	SpecVersion = "1.0-rc1"

	// SchemaName is the value of the schema media-type parameter
	SchemaName = "xRegistry-json/" + SpecVersion

	// MediaType is the Content-Type of every protocol document
	MediaType = `application/json; schema="` + SchemaName + `"`
)

// Timeout constants
const (
	// DefaultHTTPTimeout bounds a single upstream registry request
	DefaultHTTPTimeout = 30 * time.Second

	// SharedFetchTimeout bounds an upstream fetch shared by concurrent requests
	SharedFetchTimeout = 60 * time.Second

	// ResolveTimeout bounds each dependency resolution step
	ResolveTimeout = 3 * time.Second

	// AdapterTimeout bounds a gateway to adapter call
	AdapterTimeout = 30 * time.Second

	// HealthCheckTimeout bounds one adapter health probe
	HealthCheckTimeout = 2 * time.Second

	// StartupTimeout is how long the gateway waits for adapters before serving degraded
	StartupTimeout = 60 * time.Second

	// HealthRecheckInterval is how often the gateway re-probes adapters after startup
	HealthRecheckInterval = 30 * time.Second

	// ShutdownTimeout bounds graceful server shutdown
	ShutdownTimeout = 30 * time.Second

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 500 * time.Millisecond

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 5 * time.Second
)

// Server timeouts
const (
	ReadTimeout  = 15 * time.Second
	WriteTimeout = 60 * time.Second
	IdleTimeout  = 120 * time.Second
)

// Catalog synchronization
const (
	// SyncInterval is the default interval between catalog synchronization runs
	SyncInterval = 15 * time.Minute

	// SyncLookback is how far back the first run starts when no cursor was persisted
	SyncLookback = 7 * 24 * time.Hour

	// SnapshotInterval is how often the in-memory store is flushed to disk
	SnapshotInterval = 1 * time.Minute
)

// Limit constants
const (
	// DefaultPageSize is used when a collection request carries no limit
	DefaultPageSize = 50

	// MaxPageSize caps the limit query parameter
	MaxPageSize = 1000

	// MaxInlineItems caps the entries of an inlined collection
	MaxInlineItems = 100

	// MaxResolveVersions caps the version list consulted for a lower-bound dependency
	MaxResolveVersions = 100

	// MaxResolveConcurrency bounds parallel dependency resolution per version
	MaxResolveConcurrency = 8

	// MaxFilterMaterialize caps how many packages a listing materializes to evaluate a non-name filter
	MaxFilterMaterialize = 200

	// MaxResponseBytes caps an upstream response body
	MaxResponseBytes = 32 << 20
)

// Rate limiting constants
const (
	// UpstreamRateLimit is the default upstream request rate per second
	UpstreamRateLimit = 20

	// ClientRateLimit is the default per-client request rate per second
	ClientRateLimit = 50

	// BurstSize is the token bucket burst size for rate limiting
	BurstSize = 10
)

// File permission constants
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0o755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0o644
)
