package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

func TestAuth(t *testing.T) {
	cfg := DefaultAuthConfig()
	cfg.Enabled = true
	cfg.APIKey = "secret"

	tests := []struct {
		name       string
		config     AuthConfig
		path       string
		remoteAddr string
		header     string
		want       int
	}{
		{name: "disabled", config: DefaultAuthConfig(), path: "/", remoteAddr: "10.0.0.1:1", want: 200},
		{name: "valid token", config: cfg, path: "/", remoteAddr: "10.0.0.1:1", header: "Bearer secret", want: 200},
		{name: "lower case scheme", config: cfg, path: "/", remoteAddr: "10.0.0.1:1", header: "bearer secret", want: 200},
		{name: "missing token", config: cfg, path: "/", remoteAddr: "10.0.0.1:1", want: 401},
		{name: "wrong token", config: cfg, path: "/", remoteAddr: "10.0.0.1:1", header: "Bearer nope", want: 401},
		{name: "raw key is not a bearer token", config: cfg, path: "/", remoteAddr: "10.0.0.1:1", header: "secret", want: 401},
		{name: "health is public", config: cfg, path: "/health", remoteAddr: "10.0.0.1:1", want: 200},
		{name: "loopback v4 bypass", config: cfg, path: "/", remoteAddr: "127.0.0.1:5000", want: 200},
		{name: "loopback v6 bypass", config: cfg, path: "/", remoteAddr: "[::1]:5000", want: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Auth(tt.config, logging.NewNopLogger())(http.HandlerFunc(okHandler))
			r := httptest.NewRequest("GET", tt.path, nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == 401 {
				assert.Equal(t, `Bearer realm="xregistry"`, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestAuthWithoutLoopbackBypass(t *testing.T) {
	cfg := AuthConfig{Enabled: true, APIKey: "secret"}
	h := Auth(cfg, logging.NewNopLogger())(http.HandlerFunc(okHandler))
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
