package nuget

import (
	"context"
	_ "embed"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/catalogsync"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/resolver"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/handlers"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
)

// Registry layout served by the adapter.
const (
	AdapterName  = "nuget"
	GroupType    = "dotnetregistries"
	GroupID      = "nuget.org"
	ResourceType = "packages"

	groupIDAttr    = "dotnetregistryid"
	resourceIDAttr = "packageid"
)

// GroupXID is the xid of the nuget.org group.
const GroupXID = "/" + GroupType + "/" + GroupID

//go:embed model.yaml
var modelYAML []byte

// Backend serves nuget.org through the registry handlers.
type Backend struct {
	client   *Client
	sync     *catalogsync.Synchronizer
	resolver *resolver.Resolver
	model    *registry.Model
	logger   *zerolog.Logger
}

// BackendOption tunes the backend.
type BackendOption func(*resolver.Config)

// WithResolveTimeout bounds each dependency resolution step.
func WithResolveTimeout(d time.Duration) BackendOption {
	return func(c *resolver.Config) { c.StepTimeout = d }
}

// NewBackend creates the adapter backend. sync maintains the package name
// index; the client doubles as the dependency resolver's upstream.
func NewBackend(client *Client, sync *catalogsync.Synchronizer, logger *zerolog.Logger, opts ...BackendOption) (*Backend, error) {
	if logger == nil {
		logger = logging.Default()
	}
	model, err := registry.LoadModel(modelYAML)
	if err != nil {
		return nil, err
	}
	rc := resolver.Config{
		GroupXID:     GroupXID,
		ResourceType: ResourceType,
		Logger:       logger,
	}
	for _, opt := range opts {
		opt(&rc)
	}
	return &Backend{
		client:   client,
		sync:     sync,
		resolver: resolver.New(client, rc),
		model:    model,
		logger:   logger,
	}, nil
}

var _ handlers.Backend = (*Backend)(nil)

// Name implements handlers.Backend.
func (b *Backend) Name() string { return AdapterName }

// Model implements handlers.Backend.
func (b *Backend) Model() *registry.Model { return b.model }

// Capabilities implements handlers.Backend.
func (b *Backend) Capabilities() registry.Capabilities { return registry.DefaultCapabilities() }

// Registry implements handlers.Backend.
func (b *Backend) Registry(context.Context) (*registry.Registry, error) {
	reg := registry.NewRegistry("xregistry-nuget", constants.SpecVersion)
	reg.Description = "NuGet package registry"
	reg.Collections = []registry.Collection{{Name: GroupType, URL: "/" + GroupType, Count: 1}}
	return reg, nil
}

func (b *Backend) group() *registry.Group {
	c, _ := registry.NewCommon(groupIDAttr, "/", GroupType, GroupID)
	c.Description = "The public NuGet gallery"
	c.Docs = "https://www.nuget.org"
	return &registry.Group{
		Common: c,
		Collections: []registry.Collection{{
			Name:  ResourceType,
			URL:   GroupXID + "/" + ResourceType,
			Count: b.sync.Index().Len(),
		}},
	}
}

// Groups implements handlers.Backend.
func (b *Backend) Groups(_ context.Context, groupType string) ([]*registry.Group, error) {
	if groupType != GroupType {
		return nil, errors.NewNotFoundError("group type", groupType)
	}
	return []*registry.Group{b.group()}, nil
}

// Group implements handlers.Backend.
func (b *Backend) Group(_ context.Context, p registry.Path) (*registry.Group, error) {
	if err := checkGroup(p); err != nil {
		return nil, err
	}
	return b.group(), nil
}

func checkGroup(p registry.Path) error {
	if p.GroupType != GroupType {
		return errors.NewNotFoundError("group type", p.GroupType)
	}
	if !strings.EqualFold(p.GroupID, GroupID) {
		return errors.NewNotFoundError("group", p.GroupID)
	}
	if p.ResourceType != "" && p.ResourceType != ResourceType {
		return errors.NewNotFoundError("resource type", p.ResourceType)
	}
	return nil
}

// ResourceNames implements handlers.Backend. Listings come from the
// synchronized index, so packages untouched since the look-back window
// began are reachable by id but not listed.
func (b *Backend) ResourceNames(_ context.Context, p registry.Path) ([]string, error) {
	if err := checkGroup(p); err != nil {
		return nil, err
	}
	return b.sync.Index().Names(), nil
}

// Search implements handlers.Backend.
func (b *Backend) Search(ctx context.Context, p registry.Path, text string, limit int) ([]string, error) {
	if err := checkGroup(p); err != nil {
		return nil, err
	}
	ids, err := b.client.Search(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	b.sync.Index().Add(ids...)
	return ids, nil
}

// packageName maps a sanitized path segment back to the upstream id.
func (b *Backend) packageName(id string) string {
	if name, ok := b.sync.Index().Lookup(id); ok {
		return name
	}
	return id
}

func (b *Backend) leaves(ctx context.Context, p registry.Path) ([]registrationLeaf, error) {
	if err := checkGroup(p); err != nil {
		return nil, err
	}
	name := b.packageName(p.ResourceID)
	leaves, err := b.client.Registration(ctx, name)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewNotFoundError("package", name)
		}
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, errors.NewNotFoundError("package", name)
	}
	b.sync.Index().Add(leaves[0].CatalogEntry.ID)
	return leaves, nil
}

// Resource implements handlers.Backend.
func (b *Backend) Resource(ctx context.Context, p registry.Path) (*registry.Resource, error) {
	leaves, err := b.leaves(ctx, p)
	if err != nil {
		return nil, err
	}
	return toResource(leaves)
}

// Versions implements handlers.Backend. Dependencies keep their declared
// ranges; links are resolved only for a single version.
func (b *Backend) Versions(ctx context.Context, p registry.Path) ([]*registry.Version, error) {
	leaves, err := b.leaves(ctx, p)
	if err != nil {
		return nil, err
	}
	def := defaultLeaf(leaves)
	out := make([]*registry.Version, 0, len(leaves))
	for i := range leaves {
		v, err := toVersion(leaves[i], &leaves[i] == def)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Version implements handlers.Backend.
func (b *Backend) Version(ctx context.Context, p registry.Path) (*registry.Version, error) {
	leaves, err := b.leaves(ctx, p)
	if err != nil {
		return nil, err
	}
	def := defaultLeaf(leaves)
	for i := range leaves {
		if !strings.EqualFold(registry.SanitizeID(leaves[i].CatalogEntry.Version), p.VersionID) {
			continue
		}
		v, err := toVersion(leaves[i], &leaves[i] == def)
		if err != nil {
			return nil, err
		}
		ctx = logging.WithResource(ctx, v.XID)
		v.Dependencies = b.resolver.Resolve(ctx, v.Dependencies)
		return v, nil
	}
	return nil, errors.NewNotFoundError("version", p.VersionID)
}

// Health implements handlers.Backend. The adapter is degraded until the
// first synchronization completes and after a failed run; it keeps
// serving by id either way.
func (b *Backend) Health(context.Context) handlers.Health {
	st := b.sync.Status()
	status := handlers.StatusHealthy
	if st.LastRun == nil || st.LastError != "" {
		status = handlers.StatusDegraded
	}
	return handlers.Health{
		Status: status,
		Details: map[string]any{
			"sync": st,
			"endpoints": map[string]string{
				"catalog":      b.client.endpoints.Catalog,
				"registration": b.client.endpoints.Registration,
				"search":       b.client.endpoints.Search,
			},
		},
	}
}
