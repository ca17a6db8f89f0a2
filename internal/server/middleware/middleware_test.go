package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/metrics"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mark("a"), mark("b"), mark("c"))(http.HandlerFunc(okHandler))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestLogger(t *testing.T) {
	tl := logging.NewTestLogger(t)
	var inner string
	h := RequestID(Logger(tl.Logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = logging.RequestID(r.Context())
		logging.FromContext(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	})))

	r := httptest.NewRequest("GET", "/dotnetregistries", nil)
	r.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "req-1", inner)
	tl.AssertContains(t, `"status":418`)
	tl.AssertContains(t, `"path":"/dotnetregistries"`)
	tl.AssertContains(t, `"request_id":"req-1"`)
	tl.AssertContains(t, `"message":"inside"`)
}

func TestRecovery(t *testing.T) {
	tl := logging.NewTestLogger(t)
	h := Recovery(tl.Logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "server_error")
	assert.NotContains(t, rec.Body.String(), "kaboom")
	tl.AssertContains(t, "Panic recovered")
}

func TestReadOnly(t *testing.T) {
	h := ReadOnly(http.HandlerFunc(okHandler))
	for _, m := range []string{"GET", "HEAD", "OPTIONS"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(m, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code, m)
	}
	for _, m := range []string{"POST", "PUT", "PATCH", "DELETE"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(m, "/", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, m)
		assert.Equal(t, "GET, HEAD, OPTIONS", rec.Header().Get("Allow"))
	}
}

func TestRequestID(t *testing.T) {
	h := RequestID(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestDetailsAlias(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/dotnetregistries/nuget.org/packages/Serilog$details", "/dotnetregistries/nuget.org/packages/Serilog"},
		{"/dotnetregistries/nuget.org/packages/Serilog/versions/1.0$details", "/dotnetregistries/nuget.org/packages/Serilog/versions/1.0"},
		{"/dotnetregistries/nuget.org/packages/Serilog", "/dotnetregistries/nuget.org/packages/Serilog"},
		{"/dotnetregistries/$details", "/dotnetregistries/$details"},
	}
	for _, tt := range tests {
		var got string
		h := DetailsAlias(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got = r.URL.Path
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", tt.in, nil))
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	h := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/dotnetregistries/nuget.org/packages/x", nil))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("resource", "GET", "404")))
}

func TestRoute(t *testing.T) {
	tests := map[string]string{
		"/":                         "root",
		"/model":                    "model",
		"/health":                   "health",
		"/g":                        "groups",
		"/g/1":                      "group",
		"/g/1/r":                    "resources",
		"/g/1/r/2":                  "resource",
		"/g/1/r/2/versions":         "versions",
		"/g/1/r/2/meta":             "meta",
		"/g/1/r/2/doc":              "doc",
		"/g/1/r/2/versions/3":       "version",
		"/g/1/r/2/versions/3/extra": "other",
	}
	for path, want := range tests {
		assert.Equal(t, want, Route(path), path)
	}
}
