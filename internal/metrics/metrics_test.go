package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("entity", "GET", 200, 20*time.Millisecond)
	m.ObserveRequest("entity", "GET", 200, 10*time.Millisecond)
	m.ObserveRequest("entity", "GET", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("entity", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("entity", "GET", "404")))
}

func TestObserveSyncAndAdapterUp(t *testing.T) {
	m := New()
	m.ObserveSync("nuget", "ok", 42)
	m.SetAdapterUp("nuget", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues("nuget", "ok")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.KnownNames.WithLabelValues("nuget")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdapterUp.WithLabelValues("nuget")))

	m.SetAdapterUp("nuget", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AdapterUp.WithLabelValues("nuget")))
}

func TestHandlerExposesInstruments(t *testing.T) {
	m := New()
	m.ObserveFetch("nuget", "fresh")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `xregistry_upstream_fetches_total{result="fresh",upstream="nuget"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveFetch("nuget", "stale")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.UpstreamFetches.WithLabelValues("nuget", "stale")))
}
