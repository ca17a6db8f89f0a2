package handlers

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/agentstation/utc"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
)

const testModel = `
groups:
  dotnetregistries:
    singular: dotnetregistry
    resources:
      packages:
        singular: package
        hasdocument: false
        attributes:
          license:
            name: license
            type: string
`

type fakePackage struct {
	name        string
	description string
	docs        string
	license     string
	versions    []string
}

// fakeBackend serves one nuget.org group from memory.
type fakeBackend struct {
	model     *registry.Model
	packages  map[string]fakePackage
	searchErr error
	// unindexed packages resolve by name but are missing from ResourceNames.
	unindexed map[string]bool

	mu       sync.Mutex
	searched []string
	fetched  []string
}

func newFakeBackend(pkgs ...fakePackage) *fakeBackend {
	m, err := registry.LoadModel([]byte(testModel))
	if err != nil {
		panic(err)
	}
	b := &fakeBackend{model: m, packages: map[string]fakePackage{}}
	for _, p := range pkgs {
		b.packages[key(p.name)] = p
	}
	return b
}

func key(name string) string { return strings.ToLower(registry.SanitizeID(name)) }

var modified = utc.Time{Time: mustTime("2024-05-01T10:00:00Z")}

func (b *fakeBackend) Name() string                        { return "fake" }
func (b *fakeBackend) Model() *registry.Model              { return b.model }
func (b *fakeBackend) Capabilities() registry.Capabilities { return registry.DefaultCapabilities() }

func (b *fakeBackend) Registry(context.Context) (*registry.Registry, error) {
	reg := registry.NewRegistry("xregistry-fake", constants.SpecVersion)
	reg.Collections = []registry.Collection{{Name: "dotnetregistries", URL: "/dotnetregistries", Count: 1}}
	return reg, nil
}

func (b *fakeBackend) group() *registry.Group {
	c, _ := registry.NewCommon("dotnetregistryid", "/", "dotnetregistries", "nuget.org")
	return &registry.Group{
		Common:      c,
		Collections: []registry.Collection{{Name: "packages", URL: c.XID + "/packages", Count: len(b.packages)}},
	}
}

func (b *fakeBackend) Groups(_ context.Context, groupType string) ([]*registry.Group, error) {
	if groupType != "dotnetregistries" {
		return nil, errors.NewNotFoundError("group type", groupType)
	}
	return []*registry.Group{b.group()}, nil
}

func (b *fakeBackend) Group(_ context.Context, p registry.Path) (*registry.Group, error) {
	if p.GroupType != "dotnetregistries" || p.GroupID != "nuget.org" {
		return nil, errors.NewNotFoundError("group", p.GroupID)
	}
	return b.group(), nil
}

func (b *fakeBackend) ResourceNames(context.Context, registry.Path) ([]string, error) {
	names := make([]string, 0, len(b.packages))
	for k, p := range b.packages {
		if !b.unindexed[k] {
			names = append(names, p.name)
		}
	}
	slices.SortFunc(names, func(a, c string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(c)) })
	return names, nil
}

func (b *fakeBackend) Search(ctx context.Context, p registry.Path, text string, limit int) ([]string, error) {
	b.mu.Lock()
	b.searched = append(b.searched, text)
	b.mu.Unlock()
	if b.searchErr != nil {
		return nil, b.searchErr
	}
	all, _ := b.ResourceNames(ctx, p)
	var out []string
	for _, n := range all {
		pkg := b.packages[key(n)]
		if strings.Contains(strings.ToLower(n+" "+pkg.description), strings.ToLower(text)) {
			out = append(out, n)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *fakeBackend) lookup(id string) (fakePackage, error) {
	pkg, ok := b.packages[key(id)]
	if !ok {
		return fakePackage{}, errors.NewNotFoundError("package", id)
	}
	b.mu.Lock()
	b.fetched = append(b.fetched, pkg.name)
	b.mu.Unlock()
	return pkg, nil
}

func (b *fakeBackend) Resource(_ context.Context, p registry.Path) (*registry.Resource, error) {
	pkg, err := b.lookup(p.ResourceID)
	if err != nil {
		return nil, err
	}
	c, err := registry.NewCommon("packageid", "/dotnetregistries/nuget.org", "packages", pkg.name)
	if err != nil {
		return nil, err
	}
	c.Description = pkg.description
	c.Docs = pkg.docs
	c.CreatedAt, c.ModifiedAt = modified, modified
	res := &registry.Resource{Common: c, License: pkg.license, VersionsCount: len(pkg.versions)}
	if len(pkg.versions) > 0 {
		res.DefaultVersionID = pkg.versions[len(pkg.versions)-1]
	}
	return res, nil
}

func (b *fakeBackend) Versions(_ context.Context, p registry.Path) ([]*registry.Version, error) {
	pkg, err := b.lookup(p.ResourceID)
	if err != nil {
		return nil, err
	}
	out := make([]*registry.Version, 0, len(pkg.versions))
	for i, v := range pkg.versions {
		out = append(out, b.version(pkg, v, i == len(pkg.versions)-1))
	}
	return out, nil
}

func (b *fakeBackend) Version(_ context.Context, p registry.Path) (*registry.Version, error) {
	pkg, err := b.lookup(p.ResourceID)
	if err != nil {
		return nil, err
	}
	for i, v := range pkg.versions {
		if registry.SanitizeID(v) == p.VersionID {
			return b.version(pkg, v, i == len(pkg.versions)-1), nil
		}
	}
	return nil, errors.NewNotFoundError("version", p.VersionID)
}

func (b *fakeBackend) version(pkg fakePackage, v string, isDefault bool) *registry.Version {
	resXID := "/dotnetregistries/nuget.org/packages/" + registry.SanitizeID(pkg.name)
	c, _ := registry.NewCommon("versionid", resXID, registry.VersionsCollection, v)
	return &registry.Version{
		Common:              c,
		ResourceIDAttribute: "packageid",
		ResourceID:          registry.SanitizeID(pkg.name),
		IsDefault:           isDefault,
	}
}

func (b *fakeBackend) Health(context.Context) Health {
	return Health{Status: StatusHealthy, Details: map[string]any{"packages": len(b.packages)}}
}
