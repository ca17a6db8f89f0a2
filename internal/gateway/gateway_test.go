package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/metrics"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

// fakeAdapter answers like an adapter process serving one group type.
type fakeAdapter struct {
	*httptest.Server
	groupType string

	unhealthyProbes atomic.Int32 // probes to fail before reporting healthy
	delay           time.Duration

	mu     sync.Mutex
	header http.Header
	query  string
}

func newFakeAdapter(t *testing.T, groupType string) *fakeAdapter {
	t.Helper()
	a := &fakeAdapter{groupType: groupType}
	a.Server = httptest.NewServer(http.HandlerFunc(a.serve))
	t.Cleanup(a.Close)
	return a
}

func (a *fakeAdapter) serve(w http.ResponseWriter, r *http.Request) {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-r.Context().Done():
			return
		}
	}
	a.mu.Lock()
	a.header = r.Header.Clone()
	a.query = r.URL.RawQuery
	a.mu.Unlock()

	base := r.Header.Get("X-Forwarded-Proto") + "://" + r.Header.Get("X-Forwarded-Host")
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/health":
		if a.unhealthyProbes.Add(-1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"unhealthy"}`)
			return
		}
		fmt.Fprint(w, `{"status":"healthy"}`)
	case "/model":
		fmt.Fprintf(w, `{"groups":{%q:{"plural":%q,"singular":"g","resources":{}}}}`, a.groupType, a.groupType)
	case "/capabilities":
		fmt.Fprintf(w, `{"flags":["filter","inline"],"mutable":[],"pagination":true,"schemas":["xRegistry-json/1.0-rc1"],"specversions":["1.0-rc1"],"apis":[%q]}`, "/"+a.groupType)
	case "/":
		fmt.Fprintf(w, `{"specversion":"1.0-rc1","modifiedat":"2024-05-01T10:00:00Z",%q:%q,%q:3}`, a.groupType+"url", base+"/"+a.groupType, a.groupType+"count")
	default:
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.Header().Set("ETag", `"v1"`)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		if r.URL.Path == "/"+a.groupType+"/missing" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"type":"entity_not_found","status":404}`)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprintf(w, `{"self":%q}`, base+r.URL.Path)
	}
}

func (a *fakeAdapter) lastHeader() http.Header {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.header
}

func testGatewayConfig() Config {
	cfg := DefaultConfig()
	cfg.Server.RateLimit = 0
	cfg.Server.Version = "test"
	cfg.AdapterTimeout = 2 * time.Second
	cfg.HealthTimeout = time.Second
	cfg.StartupTimeout = 2 * time.Second
	return cfg
}

func newTestGateway(t *testing.T, cfg Config, routes ...Route) (*Gateway, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	g, err := New(routes, m, cfg, logging.NewNopLogger())
	require.NoError(t, err)
	return g, m
}

func do(h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("GET", target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		r.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

// deadURL returns the URL of a server that is no longer listening.
func deadURL(t *testing.T) string {
	t.Helper()
	s := httptest.NewServer(http.NotFoundHandler())
	u := s.URL
	s.Close()
	return u
}

func TestNewRequiresRoutes(t *testing.T) {
	_, err := New(nil, nil, testGatewayConfig(), logging.NewNopLogger())
	assert.Error(t, err)
}

func TestHealthWithOneAdapterDown(t *testing.T) {
	nuget := newFakeAdapter(t, "dotnetregistries")
	g, m := newTestGateway(t, testGatewayConfig(),
		Route{Name: "nuget", Prefix: "/dotnetregistries", URL: nuget.URL},
		Route{Name: "npm", Prefix: "/noderegistries", URL: deadURL(t)},
	)
	h := g.Handler()

	rec := do(h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Status   string                   `json:"status"`
		Adapters map[string]AdapterHealth `json:"adapters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "degraded", doc.Status)
	assert.Equal(t, "healthy", doc.Adapters["nuget"].Status)
	assert.Equal(t, "unhealthy", doc.Adapters["npm"].Status)
	assert.NotEmpty(t, doc.Adapters["npm"].Error)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdapterUp.WithLabelValues("nuget")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AdapterUp.WithLabelValues("npm")))

	// the healthy adapter keeps serving
	rec = do(h, "/dotnetregistries/nuget.org")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWaitReady(t *testing.T) {
	nuget := newFakeAdapter(t, "dotnetregistries")
	nuget.unhealthyProbes.Store(2)
	cfg := testGatewayConfig()
	cfg.StartupTimeout = 10 * time.Second
	g, _ := newTestGateway(t, cfg, Route{Name: "nuget", Prefix: "/dotnetregistries", URL: nuget.URL})

	require.NoError(t, g.WaitReady(t.Context()))
	assert.True(t, g.adapters[0].snapshot().Ready())
}

func TestWaitReadyTimesOut(t *testing.T) {
	cfg := testGatewayConfig()
	cfg.StartupTimeout = 300 * time.Millisecond
	g, _ := newTestGateway(t, cfg, Route{Name: "npm", Prefix: "/noderegistries", URL: deadURL(t)})

	err := g.WaitReady(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "npm")
}

func TestProxyForwards(t *testing.T) {
	nuget := newFakeAdapter(t, "dotnetregistries")
	g, _ := newTestGateway(t, testGatewayConfig(), Route{Name: "nuget", Prefix: "/dotnetregistries", URL: nuget.URL})
	h := g.Handler()

	rec := do(h, "/dotnetregistries/nuget.org/packages?filter=name=Serilog&limit=1",
		"Accept", "application/json", "Authorization", "Bearer token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nuget", rec.Header().Get(AdapterHeader))
	assert.JSONEq(t, `{"self":"http://example.com/dotnetregistries/nuget.org/packages"}`, rec.Body.String())

	hdr := nuget.lastHeader()
	assert.Equal(t, "example.com", hdr.Get("X-Forwarded-Host"))
	assert.Equal(t, "http", hdr.Get("X-Forwarded-Proto"))
	assert.Equal(t, "Bearer token", hdr.Get("Authorization"))
	assert.NotEmpty(t, hdr.Get("X-Request-ID"))
	nuget.mu.Lock()
	assert.Equal(t, "filter=name=Serilog&limit=1", nuget.query)
	nuget.mu.Unlock()

	rec = do(h, "/dotnetregistries/nuget.org", "If-None-Match", `"v1"`)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = do(h, "/dotnetregistries/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code, "adapter errors pass through")
	assert.Equal(t, "nuget", rec.Header().Get(AdapterHeader))
}

func TestProxyDetailsSuffix(t *testing.T) {
	nuget := newFakeAdapter(t, "dotnetregistries")
	g, _ := newTestGateway(t, testGatewayConfig(), Route{Name: "nuget", Prefix: "/dotnetregistries", URL: nuget.URL})

	rec := do(g.Handler(), "/dotnetregistries/nuget.org$details")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"self":"http://example.com/dotnetregistries/nuget.org"}`, rec.Body.String())
}

func TestProxyForwardedBase(t *testing.T) {
	nuget := newFakeAdapter(t, "dotnetregistries")
	cfg := testGatewayConfig()
	cfg.Server.BaseURL = "https://registry.example.org/"
	g, _ := newTestGateway(t, cfg, Route{Name: "nuget", Prefix: "/dotnetregistries", URL: nuget.URL})

	rec := do(g.Handler(), "/dotnetregistries/nuget.org")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"self":"https://registry.example.org/dotnetregistries/nuget.org"}`, rec.Body.String())
}

func TestProxyUnreachable(t *testing.T) {
	g, _ := newTestGateway(t, testGatewayConfig(), Route{Name: "npm", Prefix: "/noderegistries", URL: deadURL(t)})

	rec := do(g.Handler(), "/noderegistries/npmjs.org")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var p map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "adapter_unreachable", p["type"])
	assert.Equal(t, "npm", rec.Header().Get(AdapterHeader))
}

func TestProxyTimeout(t *testing.T) {
	slow := newFakeAdapter(t, "dotnetregistries")
	slow.delay = time.Second
	cfg := testGatewayConfig()
	cfg.AdapterTimeout = 50 * time.Millisecond
	g, _ := newTestGateway(t, cfg, Route{Name: "nuget", Prefix: "/dotnetregistries", URL: slow.URL})

	rec := do(g.Handler(), "/dotnetregistries/nuget.org")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestUnknownPrefix(t *testing.T) {
	nuget := newFakeAdapter(t, "dotnetregistries")
	g, _ := newTestGateway(t, testGatewayConfig(), Route{Name: "nuget", Prefix: "/dotnetregistries", URL: nuget.URL})

	rec := do(g.Handler(), "/pythonregistries")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMergedModel(t *testing.T) {
	nuget := newFakeAdapter(t, "dotnetregistries")
	npm := newFakeAdapter(t, "noderegistries")
	g, _ := newTestGateway(t, testGatewayConfig(),
		Route{Name: "nuget", Prefix: "/dotnetregistries", URL: nuget.URL},
		Route{Name: "npm", Prefix: "/noderegistries", URL: npm.URL},
		Route{Name: "oci", Prefix: "/containerregistries", URL: deadURL(t)},
	)
	h := g.Handler()

	rec := do(h, "/model")
	require.Equal(t, http.StatusOK, rec.Code)
	var model struct {
		Groups map[string]any `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &model))
	assert.Contains(t, model.Groups, "dotnetregistries")
	assert.Contains(t, model.Groups, "noderegistries")
	warnings := rec.Header().Values("Warning")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "oci")

	rec = do(h, "/capabilities")
	require.Equal(t, http.StatusOK, rec.Code)
	var caps struct {
		APIs       []string `json:"apis"`
		Pagination bool     `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &caps))
	assert.ElementsMatch(t, []string{"/dotnetregistries", "/noderegistries"}, caps.APIs)
	assert.True(t, caps.Pagination)
}

func TestMergedModelAllDown(t *testing.T) {
	g, _ := newTestGateway(t, testGatewayConfig(), Route{Name: "oci", Prefix: "/containerregistries", URL: deadURL(t)})
	rec := do(g.Handler(), "/model")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMergedRoot(t *testing.T) {
	nuget := newFakeAdapter(t, "dotnetregistries")
	g, _ := newTestGateway(t, testGatewayConfig(),
		Route{Name: "nuget", Prefix: "/dotnetregistries", URL: nuget.URL},
		Route{Name: "npm", Prefix: "/noderegistries", URL: deadURL(t)},
	)

	rec := do(g.Handler(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "http://example.com/dotnetregistries", doc["dotnetregistriesurl"])
	assert.EqualValues(t, 3, doc["dotnetregistriescount"])
	assert.Equal(t, "http://example.com/noderegistries", doc["noderegistriesurl"])
	assert.EqualValues(t, 0, doc["noderegistriescount"])
	assert.Equal(t, "http://example.com/model", doc["modelurl"])
	assert.Len(t, rec.Header().Values("Warning"), 1)
	assert.Equal(t, "Wed, 01 May 2024 10:00:00 GMT", rec.Header().Get("Last-Modified"))
}

func TestGatewayMiddleware(t *testing.T) {
	nuget := newFakeAdapter(t, "dotnetregistries")
	cfg := testGatewayConfig()
	cfg.Server.AuthEnabled = true
	cfg.Server.APIKey = "s3cret"
	g, _ := newTestGateway(t, cfg, Route{Name: "nuget", Prefix: "/dotnetregistries", URL: nuget.URL})
	h := g.Handler()

	assert.Equal(t, http.StatusUnauthorized, do(h, "/dotnetregistries").Code)
	assert.Equal(t, http.StatusOK, do(h, "/dotnetregistries", "Authorization", "Bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, do(h, "/health").Code)

	r := httptest.NewRequest("DELETE", "/dotnetregistries/nuget.org", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHTTPServer(t *testing.T) {
	nuget := newFakeAdapter(t, "dotnetregistries")
	cfg := testGatewayConfig()
	cfg.Server.Port = 3999
	g, _ := newTestGateway(t, cfg, Route{Name: "nuget", Prefix: "/dotnetregistries", URL: nuget.URL})
	hs := g.HTTPServer(t.Context())
	assert.Equal(t, server.Addr(cfg.Server), hs.Addr)
	assert.Len(t, g.Routes(), 1)
}
