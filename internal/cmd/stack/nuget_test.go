package stack

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/catalogsync"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/config"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/metrics"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/nuget"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
)

// newUpstream serves the nuget package's fixtures.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file := filepath.Join("..", "..", "nuget", "testdata", filepath.FromSlash(strings.TrimPrefix(r.URL.Path, "/")))
		data, err := os.ReadFile(file)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(strings.ReplaceAll(string(data), "{{base}}", srv.URL)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(upstream, dataDir string) *config.Config {
	return &config.Config{
		DataDir:               dataDir,
		SnapshotInterval:      time.Hour,
		SyncInterval:          time.Hour,
		SyncLookback:          time.Since(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		UpstreamTimeout:       5 * time.Second,
		ResolveTimeout:        time.Second,
		NuGetCatalogURL:       upstream + "/catalog/index.json",
		NuGetRegistrationURL:  upstream + "/registration",
		NuGetFlatContainerURL: upstream + "/flatcontainer",
		NuGetSearchURL:        upstream + "/search",
	}
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(catalogsync.RunResult{Pages: 2}, nil))
	assert.Equal(t, OutcomePartial, Outcome(catalogsync.RunResult{Pages: 2, FailedPages: 1}, nil))
	assert.Equal(t, OutcomeSkipped, Outcome(catalogsync.RunResult{Skipped: true}, errors.ErrRunInProgress))
	assert.Equal(t, OutcomeError, Outcome(catalogsync.RunResult{}, fmt.Errorf("boom")))
}

func TestEndpoints(t *testing.T) {
	e := Endpoints(&config.Config{NuGetSearchURL: "https://search.example.org/query"})
	assert.Equal(t, "https://search.example.org/query", e.Search)
	assert.Equal(t, nuget.DefaultEndpoints().Catalog, e.Catalog)
}

func TestNewNuGetInMemory(t *testing.T) {
	up := newUpstream(t)
	m := metrics.New()
	n, err := NewNuGet(context.Background(), testConfig(up.URL, ""), m, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Nil(t, n.Durable)

	_, err = n.Sync.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n.Sync.Index().Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues(nuget.FeedName, OutcomeOK)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.KnownNames.WithLabelValues(nuget.FeedName)))

	r, err := n.Backend.Resource(context.Background(), registry.Path{
		GroupType: nuget.GroupType, GroupID: nuget.GroupID, ResourceType: nuget.ResourceType, ResourceID: "Newtonsoft.Json",
	})
	require.NoError(t, err)
	assert.Equal(t, "Newtonsoft.Json", r.Name)
	assert.Positive(t, testutil.ToFloat64(m.UpstreamFetches.WithLabelValues(nuget.FeedName, "miss")))

	require.NoError(t, n.Close(context.Background()))
}

func TestNewNuGetRestoresSnapshot(t *testing.T) {
	up := newUpstream(t)
	dir := t.TempDir()
	cfg := testConfig(up.URL, dir)

	first, err := NewNuGet(context.Background(), cfg, nil, logging.NewNopLogger())
	require.NoError(t, err)
	require.NotNil(t, first.Durable)
	_, err = first.Sync.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Close(context.Background()))

	tl := logging.NewTestLogger(t)
	second, err := NewNuGet(context.Background(), cfg, nil, tl.Logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close(context.Background()) })
	assert.Equal(t, 1, strings.Count(tl.Output(), "Restored store snapshot"))
	assert.Equal(t, []string{"Newtonsoft.Json", "Serilog", "xunit"}, second.Sync.Index().Names())
	assert.True(t, first.Sync.Cursor().Equal(second.Sync.Cursor()))
}

func TestStartAndClose(t *testing.T) {
	up := newUpstream(t)
	n, err := NewNuGet(context.Background(), testConfig(up.URL, t.TempDir()), nil, logging.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	n.Start(ctx)
	require.Eventually(t, func() bool { return n.Sync.Index().Len() == 3 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, n.Close(context.Background()))
}

func TestCloseKeepsCursorOfRunningSync(t *testing.T) {
	up := newUpstream(t)
	cfg := testConfig(up.URL, t.TempDir())
	n, err := NewNuGet(context.Background(), cfg, nil, logging.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	n.Start(ctx)
	require.Eventually(t, func() bool { return n.Sync.Index().Len() > 0 }, 5*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, n.Close(context.Background()))
	cursor := n.Sync.Cursor()

	reopened, err := NewNuGet(context.Background(), cfg, nil, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close(context.Background()) })
	assert.True(t, cursor.Equal(reopened.Sync.Cursor()), "cursor %v, restored %v", cursor, reopened.Sync.Cursor())
}
