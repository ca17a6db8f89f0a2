package transport

import (
	"net/http"
	"strings"
)

// Authenticator applies an upstream credential to outgoing requests.
type Authenticator interface {
	Apply(req *http.Request, credential string)
}

// NoAuth sends requests unauthenticated. Public registries need nothing else.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (NoAuth) Apply(_ *http.Request, _ string) {}

// BearerAuth sends the credential as a bearer token.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (BearerAuth) Apply(req *http.Request, credential string) {
	req.Header.Set("Authorization", "Bearer "+credential)
}

// HeaderAuth sends the credential verbatim in a custom header, for
// example X-NuGet-ApiKey on private feeds.
type HeaderAuth struct {
	Header string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a HeaderAuth) Apply(req *http.Request, credential string) {
	req.Header.Set(a.Header, credential)
}

// AuthFor picks an authenticator for a configured header name. An empty
// name or "Authorization" means bearer auth.
func AuthFor(header string) Authenticator {
	if header == "" || strings.EqualFold(header, "Authorization") {
		return BearerAuth{}
	}
	return HeaderAuth{Header: header}
}
