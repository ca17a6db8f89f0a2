package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/metrics"
)

// Metrics records request counts and latencies.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)
			next.ServeHTTP(wrapped, r)
			m.ObserveRequest(Route(r.URL.Path), r.Method, wrapped.statusCode, time.Since(start))
		})
	}
}

// Route classifies a path into a low-cardinality label.
func Route(path string) string {
	switch path {
	case "/", "":
		return "root"
	case "/model", "/capabilities", "/health", "/metrics":
		return path[1:]
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	switch len(segs) {
	case 1:
		return "groups"
	case 2:
		return "group"
	case 3:
		return "resources"
	case 4:
		return "resource"
	case 5:
		switch segs[4] {
		case "meta":
			return "meta"
		case "doc":
			return "doc"
		}
		return "versions"
	case 6:
		return "version"
	}
	return "other"
}
