// Package stack assembles the long-lived components of an adapter
// process from configuration: store, upstream transport, conditional
// cache, catalog synchronizer and backend.
package stack

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/catalogsync"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/config"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/httpcache"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/metrics"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/nuget"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/store"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/transport"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
)

// Sync outcomes reported to metrics.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// NuGet is a wired NuGet adapter.
type NuGet struct {
	Memory   *store.Memory
	Durable  *store.Badger // nil without a data directory
	Client   *nuget.Client
	Sync     *catalogsync.Synchronizer
	Backend  *nuget.Backend
	Metrics  *metrics.Metrics
	snapshot *store.Snapshotter

	logger *zerolog.Logger
	wg     sync.WaitGroup
}

// Outcome classifies a synchronization run.
func Outcome(res catalogsync.RunResult, err error) string {
	switch {
	case errors.Is(err, errors.ErrRunInProgress) || res.Skipped:
		return OutcomeSkipped
	case err != nil:
		return OutcomeError
	case res.FailedPages > 0:
		return OutcomePartial
	default:
		return OutcomeOK
	}
}

// Endpoints returns the configured NuGet endpoints with nuget.org
// defaults filled in.
func Endpoints(cfg *config.Config) nuget.Endpoints {
	return nuget.Endpoints{
		Catalog:       cfg.NuGetCatalogURL,
		Registration:  cfg.NuGetRegistrationURL,
		FlatContainer: cfg.NuGetFlatContainerURL,
		Search:        cfg.NuGetSearchURL,
	}.WithDefaults()
}

// NewNuGet wires the adapter. With a data directory the in-memory store
// is restored from and snapshotted to badger. m may be nil.
func NewNuGet(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zerolog.Logger) (*NuGet, error) {
	if m == nil {
		m = metrics.New()
	}
	n := &NuGet{Memory: store.NewMemory(), Metrics: m, logger: logger}

	if cfg.DataDir != "" {
		bc := store.DefaultBadgerConfig(filepath.Join(cfg.DataDir, nuget.AdapterName))
		bc.Logger = logger
		durable, err := store.OpenBadger(bc)
		if err != nil {
			return nil, err
		}
		n.Durable = durable
		n.snapshot = store.NewSnapshotter(n.Memory, durable, cfg.SnapshotInterval, logger)
		if _, err := n.snapshot.Restore(ctx); err != nil {
			_ = durable.Close()
			return nil, err
		}
	}

	opts := []transport.Option{
		transport.WithName(nuget.FeedName),
		transport.WithTimeout(cfg.UpstreamTimeout),
		transport.WithRateLimit(cfg.UpstreamRateLimit, constants.BurstSize),
	}
	if cfg.UpstreamToken != "" {
		opts = append(opts, transport.WithCredential(transport.AuthFor(cfg.UpstreamAuthHeader), cfg.UpstreamToken))
	}
	tc := transport.New(opts...)

	cache := httpcache.New(tc, n.Memory,
		httpcache.WithLogger(logger),
		httpcache.WithObserver(func(upstream string, s httpcache.Status) {
			m.ObserveFetch(upstream, s.String())
		}),
	)
	n.Client = nuget.NewClient(tc, cache, Endpoints(cfg), logger)

	idx := catalogsync.NewIndex()
	n.Sync = catalogsync.New(nuget.NewFeed(n.Client), n.Memory, idx, catalogsync.Config{
		Interval: cfg.SyncInterval,
		Lookback: cfg.SyncLookback,
		Logger:   logger,
		Observer: func(res catalogsync.RunResult, err error) {
			m.ObserveSync(nuget.FeedName, Outcome(res, err), idx.Len())
		},
	})
	if err := n.Sync.Load(ctx); err != nil {
		n.closeDurable()
		return nil, err
	}

	backend, err := nuget.NewBackend(n.Client, n.Sync, logger, nuget.WithResolveTimeout(cfg.ResolveTimeout))
	if err != nil {
		n.closeDurable()
		return nil, err
	}
	n.Backend = backend
	return n, nil
}

// Start launches synchronization and, with a data directory, snapshots
// and value log GC. Everything stops when ctx is done.
func (n *NuGet) Start(ctx context.Context) {
	n.Sync.Start(ctx)
	if n.snapshot == nil {
		return
	}
	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		n.snapshot.Run(ctx)
	}()
	go func() {
		defer n.wg.Done()
		n.Durable.RunGC(ctx)
	}()
}

// Close waits for background work started by Start to finish, flushes
// the store and closes the durable database. The context passed to Start
// must be done before Close is called.
func (n *NuGet) Close(ctx context.Context) error {
	n.Sync.Wait()
	n.wg.Wait()
	if n.snapshot == nil {
		return nil
	}
	if _, err := n.snapshot.Flush(ctx); err != nil {
		n.closeDurable()
		return err
	}
	return n.Durable.Close()
}

func (n *NuGet) closeDurable() {
	if n.Durable != nil {
		if err := n.Durable.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
}
