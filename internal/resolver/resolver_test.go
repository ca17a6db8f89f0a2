package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
)

type fakeUpstream struct {
	versions map[string][]string
	slow     map[string]bool
	broken   map[string]bool
}

func (f fakeUpstream) wait(ctx context.Context, name string) error {
	if f.broken[name] {
		return fmt.Errorf("upstream exploded for %s", name)
	}
	if f.slow[name] {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f fakeUpstream) VersionExists(ctx context.Context, name, v string) (bool, error) {
	if err := f.wait(ctx, name); err != nil {
		return false, err
	}
	for _, x := range f.versions[name] {
		if x == v {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeUpstream) Versions(ctx context.Context, name string) ([]string, error) {
	if err := f.wait(ctx, name); err != nil {
		return nil, err
	}
	return append([]string(nil), f.versions[name]...), nil
}

func (f fakeUpstream) PackageExists(ctx context.Context, name string) (bool, error) {
	if err := f.wait(ctx, name); err != nil {
		return false, err
	}
	_, ok := f.versions[name]
	return ok, nil
}

const group = "/dotnetregistries/nuget.org"

func newResolver(up Upstream) *Resolver {
	return New(up, Config{
		GroupXID:     group,
		ResourceType: "packages",
		StepTimeout:  50 * time.Millisecond,
		Logger:       logging.NewNopLogger(),
	})
}

func TestResolve(t *testing.T) {
	up := fakeUpstream{
		versions: map[string][]string{
			"Newtonsoft.Json": {"12.0.3", "13.0.1", "13.0.3", "9.0.1"},
			"Serilog":         {"2.10.0", "3.0.0-beta"},
			"Slow":            {"1.0.0"},
			"Broken":          {"1.0.0"},
		},
		slow:   map[string]bool{"Slow": true},
		broken: map[string]bool{"Broken": true},
	}

	deps := []registry.Dependency{
		{Name: "Newtonsoft.Json", Version: "[13.0.1]"},
		{Name: "Newtonsoft.Json", Version: "[99.0.0]"},
		{Name: "Newtonsoft.Json", Version: "12.0.0"},
		{Name: "Serilog", Version: "[2.0, 3.0)"},
		{Name: "Unknown.Package", Version: "1.0.0"},
		{Name: "Slow", Version: "[1.0.0]"},
		{Name: "Broken", Version: ">= 1.0"},
	}
	got := newResolver(up).Resolve(context.Background(), deps)

	nj := group + "/packages/Newtonsoft.Json"
	want := []registry.Dependency{
		{Name: "Newtonsoft.Json", Version: "[13.0.1]", ResolvedVersion: "13.0.1", Package: nj + "/versions/13.0.1"},
		{Name: "Newtonsoft.Json", Version: "[99.0.0]", Package: nj},
		{Name: "Newtonsoft.Json", Version: "12.0.0", ResolvedVersion: "13.0.3", Package: nj + "/versions/13.0.3"},
		{Name: "Serilog", Version: "[2.0, 3.0)", Package: group + "/packages/Serilog"},
		{Name: "Unknown.Package", Version: "1.0.0"},
		{Name: "Slow", Version: "[1.0.0]"},
		{Name: "Broken", Version: ">= 1.0"},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, "[13.0.1]", deps[0].Version, "input is not modified")
	assert.Empty(t, deps[0].Package)
}

func TestResolveCapsVersionList(t *testing.T) {
	var vs []string
	for i := 0; i < 10; i++ {
		vs = append(vs, fmt.Sprintf("1.%d.0", i))
	}
	r := New(fakeUpstream{versions: map[string][]string{"P": vs}}, Config{
		GroupXID: group, ResourceType: "packages", MaxVersions: 3, Logger: logging.NewNopLogger(),
	})
	got := r.Resolve(context.Background(), []registry.Dependency{{Name: "P", Version: ">= 1.0"}})
	assert.Equal(t, "1.9.0", got[0].ResolvedVersion, "highest satisfying, not lowest")
}

func TestResolveEmpty(t *testing.T) {
	assert.Empty(t, newResolver(fakeUpstream{}).Resolve(context.Background(), nil))
}
