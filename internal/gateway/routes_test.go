package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
)

func TestParseRoutes(t *testing.T) {
	routes, err := ParseRoutes([]string{
		"/dotnetregistries=http://localhost:3100/",
		"npm:noderegistries=http://localhost:3200",
		"",
	})
	require.NoError(t, err)
	require.Len(t, routes, 2)

	assert.Equal(t, Route{Name: "dotnetregistries", Prefix: "/dotnetregistries", URL: "http://localhost:3100"}, routes[0])
	assert.Equal(t, Route{Name: "npm", Prefix: "/noderegistries", URL: "http://localhost:3200"}, routes[1])
}

func TestParseRoutesErrors(t *testing.T) {
	tests := []struct {
		name  string
		pairs []string
	}{
		{"empty", nil},
		{"no separator", []string{"/dotnetregistries"}},
		{"root prefix", []string{"/=http://localhost:3100"}},
		{"relative url", []string{"/dotnetregistries=localhost:3100"}},
		{"duplicate", []string{"/a=http://x", "a=http://y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoutes(tt.pairs)
			require.Error(t, err)
		})
	}

	_, err := ParseRoutes([]string{"/dotnetregistries"})
	assert.True(t, errors.IsValidationError(err))
}

func TestLoadRoutes(t *testing.T) {
	routes, err := LoadRoutes([]byte(`
routes:
  - name: nuget
    prefix: dotnetregistries
    url: http://nuget-adapter:3100
  - prefix: /dotnetregistries/extra
    url: http://extra:3100
`))
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "/dotnetregistries/extra", routes[0].Prefix, "most specific route first")
	assert.Equal(t, "nuget", routes[1].Name)

	_, err = LoadRoutes([]byte("routes: []"))
	assert.Error(t, err)
}

func TestRouteMatches(t *testing.T) {
	r := Route{Prefix: "/dotnetregistries"}
	assert.True(t, r.Matches("/dotnetregistries"))
	assert.True(t, r.Matches("/dotnetregistries/nuget.org/packages"))
	assert.False(t, r.Matches("/dotnetregistriesx"))
	assert.False(t, r.Matches("/noderegistries"))
}
