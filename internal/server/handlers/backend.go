package handlers

import (
	"context"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
)

// Backend supplies the registry content of one adapter. Entities are
// returned unbound; handlers bind them to the request's base URL. Paths
// carry sanitized ids as they appear in request URLs, except that
// Resource also accepts upstream names taken from ResourceNames.
type Backend interface {
	// Name identifies the adapter in logs, metrics and health documents.
	Name() string

	Model() *registry.Model
	Capabilities() registry.Capabilities

	// Registry returns the root document with its group collections.
	Registry(ctx context.Context) (*registry.Registry, error)

	// Groups lists the groups of one group type.
	Groups(ctx context.Context, groupType string) ([]*registry.Group, error)
	Group(ctx context.Context, p registry.Path) (*registry.Group, error)

	// ResourceNames returns every known resource name of a resource
	// collection in case-insensitive name order.
	ResourceNames(ctx context.Context, p registry.Path) ([]string, error)

	// Search runs a keyword query upstream, returning at most limit names.
	Search(ctx context.Context, p registry.Path, text string, limit int) ([]string, error)

	Resource(ctx context.Context, p registry.Path) (*registry.Resource, error)
	Versions(ctx context.Context, p registry.Path) ([]*registry.Version, error)
	Version(ctx context.Context, p registry.Path) (*registry.Version, error)

	Health(ctx context.Context) Health
}

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Health is a backend's view of its own readiness.
type Health struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// Ready reports whether the backend can serve requests. Degraded backends
// still serve, possibly from stale cache.
func (h Health) Ready() bool {
	return h.Status == StatusHealthy || h.Status == StatusDegraded
}
