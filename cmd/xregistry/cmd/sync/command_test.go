package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemensv/xregistry-package-registries-sub002/cmd/application"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/catalogsync"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/config"
)

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file := filepath.Join("..", "..", "..", "..", "internal", "nuget", "testdata", filepath.FromSlash(strings.TrimPrefix(r.URL.Path, "/")))
		data, err := os.ReadFile(file)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(strings.ReplaceAll(string(data), "{{base}}", srv.URL)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSyncCommand(t *testing.T) {
	srv := fixtureServer(t)
	cfg := &config.Config{
		SyncInterval:    time.Hour,
		UpstreamTimeout: 5 * time.Second,
		ResolveTimeout:  time.Second,
		NuGetCatalogURL: srv.URL + "/catalog/index.json",
	}
	app := &application.Mock{ConfigFunc: func() *config.Config { return cfg }}

	cmd := NewCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--lookback", time.Since(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).Round(time.Hour).String(), "--data-dir", t.TempDir()})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	values := map[string]string{}
	for _, r := range rows {
		values[r["metric"]] = r["value"]
	}
	assert.Equal(t, "nuget.org", values["feed"])
	assert.Equal(t, "ok", values["outcome"])
	assert.Equal(t, "2", values["pages"])
	assert.Equal(t, "3", values["known names"])
}

func TestSyncCommandUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	cfg := &config.Config{
		SyncInterval:    time.Hour,
		UpstreamTimeout: 5 * time.Second,
		ResolveTimeout:  time.Second,
		NuGetCatalogURL: srv.URL + "/catalog/index.json",
	}
	cmd := NewCommand(&application.Mock{ConfigFunc: func() *config.Config { return cfg }})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs(nil)
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestSummary(t *testing.T) {
	before := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	d := summary(catalogsync.RunResult{Pages: 3, FailedPages: 1, CursorBefore: before, CursorAfter: before.Add(time.Hour)}, catalogsync.Status{KnownNames: 7})
	rec := map[string]string{}
	for _, row := range d.Rows {
		rec[row[0]] = row[1]
	}
	assert.Equal(t, "partial", rec["outcome"])
	assert.Equal(t, "7", rec["known names"])
	assert.Equal(t, "2024-05-01T01:00:00Z", rec["cursor after"])
}
