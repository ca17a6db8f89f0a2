package middleware

import (
	"net/http"
	"strings"
)

// DetailsSuffix is the path suffix clients may append to ask for an
// entity's full document. Read-only adapters always serve it.
const DetailsSuffix = "$details"

// DetailsAlias strips a trailing $details from the path before dispatch.
func DetailsAlias(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := stripDetails(r.URL.Path); ok {
			r2 := r.Clone(r.Context())
			r2.URL.Path = p
			r2.URL.RawPath = ""
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}

func stripDetails(path string) (string, bool) {
	if !strings.HasSuffix(path, DetailsSuffix) {
		return path, false
	}
	p := strings.TrimSuffix(path, DetailsSuffix)
	if p == "" || (strings.HasSuffix(p, "/") && p != "/") {
		return path, false
	}
	return p, true
}
