package gateway

import (
	"net/url"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
)

// Route maps a path prefix (a group type such as "/dotnetregistries") to
// the adapter serving it.
type Route struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
	URL    string `yaml:"url"`
}

// routesFile is the YAML routes document.
type routesFile struct {
	Routes []Route `yaml:"routes"`
}

// ParseRoutes parses "prefix=url" pairs, optionally "name:prefix=url".
func ParseRoutes(pairs []string) ([]Route, error) {
	routes := make([]Route, 0, len(pairs))
	for _, p := range pairs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lhs, target, ok := strings.Cut(p, "=")
		if !ok {
			return nil, errors.NewValidationError("routes", p, "expected prefix=url")
		}
		r := Route{Prefix: lhs, URL: target}
		if name, prefix, ok := strings.Cut(lhs, ":"); ok {
			r.Name, r.Prefix = name, prefix
		}
		routes = append(routes, r)
	}
	return normalize(routes)
}

// LoadRoutes parses a YAML routes document.
func LoadRoutes(data []byte) ([]Route, error) {
	var f routesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.WrapParse("yaml", "routes", err)
	}
	return normalize(f.Routes)
}

func normalize(routes []Route) ([]Route, error) {
	if len(routes) == 0 {
		return nil, errors.NewConfigError("gateway", "no routes configured", nil)
	}
	seen := map[string]bool{}
	for i := range routes {
		r := &routes[i]
		r.Prefix = "/" + strings.Trim(strings.TrimSpace(r.Prefix), "/")
		if r.Prefix == "/" {
			return nil, errors.NewValidationError("routes", r.Prefix, "prefix must name a group type")
		}
		if seen[r.Prefix] {
			return nil, errors.NewValidationError("routes", r.Prefix, "duplicate prefix")
		}
		seen[r.Prefix] = true

		u, err := url.Parse(strings.TrimSpace(r.URL))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errors.NewValidationError("routes", r.URL, "adapter url must be absolute")
		}
		r.URL = strings.TrimSuffix(u.String(), "/")
		if r.Name == "" {
			r.Name = strings.TrimPrefix(r.Prefix, "/")
		}
	}
	// longest prefix first so Match finds the most specific route
	slices.SortStableFunc(routes, func(a, b Route) int { return len(b.Prefix) - len(a.Prefix) })
	return routes, nil
}

// Matches reports whether path falls under the route's prefix on a
// segment boundary.
func (r Route) Matches(path string) bool {
	if !strings.HasPrefix(path, r.Prefix) {
		return false
	}
	rest := path[len(r.Prefix):]
	return rest == "" || rest[0] == '/'
}
