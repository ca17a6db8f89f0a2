// Package resolver links declared dependency ranges to concrete upstream
// versions. Resolution never fails: each dependency is resolved
// independently, and anything that cannot be resolved keeps its raw range
// without a link.
package resolver

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/version"
)

// Upstream answers the existence questions resolution needs.
type Upstream interface {
	VersionExists(ctx context.Context, name, version string) (bool, error)
	Versions(ctx context.Context, name string) ([]string, error)
	PackageExists(ctx context.Context, name string) (bool, error)
}

// Config configures a Resolver.
type Config struct {
	// GroupXID and ResourceType locate dependency packages, e.g.
	// "/dotnetregistries/nuget.org" and "packages".
	GroupXID     string
	ResourceType string

	StepTimeout time.Duration
	MaxVersions int
	Concurrency int
	Logger      *zerolog.Logger
}

// Resolver resolves dependency lists.
type Resolver struct {
	upstream Upstream
	cfg      Config
}

// New creates a resolver with defaults for unset limits.
func New(upstream Upstream, cfg Config) *Resolver {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = constants.ResolveTimeout
	}
	if cfg.MaxVersions <= 0 {
		cfg.MaxVersions = constants.MaxResolveVersions
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = constants.MaxResolveConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Resolver{upstream: upstream, cfg: cfg}
}

// Resolve returns a copy of deps with ResolvedVersion and Package filled
// in where possible. Order is preserved.
func (r *Resolver) Resolve(ctx context.Context, deps []registry.Dependency) []registry.Dependency {
	out := make([]registry.Dependency, len(deps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, d := range deps {
		g.Go(func() error {
			out[i] = r.resolveOne(gctx, d)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, d registry.Dependency) registry.Dependency {
	d.ResolvedVersion, d.Package = "", ""
	log := logging.FromContext(ctx).With().Str("dependency", d.Name).Str("range", d.Version).Logger()

	rng := version.ParseRange(d.Version)

	if rng.Kind == version.Exact {
		ok, err := step(ctx, r.cfg.StepTimeout, func(ctx context.Context) (bool, error) {
			return r.upstream.VersionExists(ctx, d.Name, rng.Min)
		})
		if err != nil {
			log.Debug().Err(err).Msg("Pinned version check failed")
		}
		if ok {
			return r.link(d, rng.Min)
		}
	}

	if rng.Kind == version.LowerBound {
		v, err := step(ctx, r.cfg.StepTimeout, func(ctx context.Context) (string, error) {
			return r.highestSatisfying(ctx, d.Name, rng)
		})
		if err != nil {
			log.Debug().Err(err).Msg("Version list lookup failed")
		}
		if v != "" {
			return r.link(d, v)
		}
	}

	exists, err := step(ctx, r.cfg.StepTimeout, func(ctx context.Context) (bool, error) {
		return r.upstream.PackageExists(ctx, d.Name)
	})
	if err != nil {
		log.Debug().Err(err).Msg("Package existence check failed")
	}
	if exists {
		if xid, err := registry.BuildXID(r.cfg.GroupXID, r.cfg.ResourceType, d.Name); err == nil {
			d.Package = xid
		}
	}
	return d
}

func (r *Resolver) highestSatisfying(ctx context.Context, name string, rng version.Range) (string, error) {
	versions, err := r.upstream.Versions(ctx, name)
	if err != nil {
		return "", err
	}
	version.SortDescending(versions)
	if len(versions) > r.cfg.MaxVersions {
		versions = versions[:r.cfg.MaxVersions]
	}
	for _, v := range versions {
		if rng.Satisfies(v) {
			return v, nil
		}
	}
	return "", nil
}

func (r *Resolver) link(d registry.Dependency, v string) registry.Dependency {
	res, err := registry.BuildXID(r.cfg.GroupXID, r.cfg.ResourceType, d.Name)
	if err != nil {
		return d
	}
	xid, err := registry.BuildXID(res, registry.VersionsCollection, v)
	if err != nil {
		return d
	}
	d.ResolvedVersion = v
	d.Package = xid
	return d
}

// step runs fn under its own timeout.
func step[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
