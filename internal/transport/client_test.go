package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
)

func TestClientGetAppliesHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(WithCredential(AuthFor("X-NuGet-ApiKey"), "k"), WithRateLimit(0, 0), WithName("nuget"))
	resp, err := c.Get(context.Background(), srv.URL, http.Header{"If-None-Match": {`"abc"`}})
	require.NoError(t, err)

	var body struct{ OK bool }
	require.NoError(t, c.DecodeResponse(resp, &body))
	assert.True(t, body.OK)
	assert.Equal(t, "k", got.Get("X-NuGet-ApiKey"))
	assert.Equal(t, `"abc"`, got.Get("If-None-Match"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
}

func TestDecodeResponseStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(WithRateLimit(0, 0))
	resp, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	var v any
	err = c.DecodeResponse(resp, &v)
	assert.True(t, errors.IsNotFound(err))
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(WithTimeout(time.Second))
	_, err := c.Get(context.Background(), url, nil)
	require.Error(t, err)
	assert.True(t, errors.IsUpstreamUnavailable(err))
}
