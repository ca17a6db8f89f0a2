// Package handlers serves the read-only registry protocol for one adapter
// backend: the root, model and capabilities documents, group, resource,
// version and meta entities, their collections, and the health probe.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/query"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/response"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
)

// Config holds handler settings.
type Config struct {
	// BaseURL is the externally visible base URL. When empty it is derived
	// from the request and its X-Forwarded-* headers.
	BaseURL string

	// Version is the build version reported by /health.
	Version string
}

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	backend   Backend
	config    Config
	logger    *zerolog.Logger
	startTime time.Time
}

// New creates a new Handlers instance.
func New(backend Backend, config Config, logger *zerolog.Logger) *Handlers {
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	return &Handlers{
		backend:   backend,
		config:    config,
		logger:    logger,
		startTime: time.Now(),
	}
}

// HandleRegistry dispatches every registry path: the root, group and
// resource collections, entities, meta and doc.
func (h *Handlers) HandleRegistry(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}

	if rest, ok := strings.CutSuffix(path, "/"+registry.DocSegment); ok {
		p, err := registry.ParseXID(rest)
		if err == nil && p.ResourceID != "" && !p.Versions && !p.Meta {
			h.HandleDoc(w, r, p)
			return
		}
	}

	p, err := registry.ParseXID(path)
	if err != nil {
		response.NotFound(w, r, err.Error())
		return
	}

	opts, err := query.Parse(r)
	if err != nil {
		response.ErrorFromType(w, r, err)
		return
	}

	switch {
	case p.Depth() == 0:
		h.HandleRoot(w, r, opts)
	case p.Depth() == 1:
		h.HandleGroups(w, r, p, opts)
	case p.Depth() == 2:
		h.HandleGroup(w, r, p, opts)
	case p.Depth() == 3:
		h.HandleResources(w, r, p, opts)
	case p.Depth() == 4:
		h.HandleResource(w, r, p, opts)
	case p.Meta:
		h.HandleMeta(w, r, p, opts)
	case p.VersionID == "":
		h.HandleVersions(w, r, p, opts)
	default:
		h.HandleVersion(w, r, p, opts)
	}
}

// baseURL returns the externally visible base URL for r.
func (h *Handlers) baseURL(r *http.Request) string {
	if h.config.BaseURL != "" {
		return h.config.BaseURL
	}
	return RequestBase(r)
}

// RequestBase derives scheme://host from r, honoring X-Forwarded-Proto and
// X-Forwarded-Host set by the gateway.
func RequestBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme, _, _ = strings.Cut(p, ",")
		scheme = strings.TrimSpace(scheme)
	}
	host := r.Host
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		host, _, _ = strings.Cut(fh, ",")
		host = strings.TrimSpace(host)
	}
	return scheme + "://" + host
}

// modelFor resolves the group and resource models addressed by p.
func (h *Handlers) modelFor(p registry.Path) (registry.GroupModel, registry.ResourceModel, bool) {
	g, ok := h.backend.Model().Group(p.GroupType)
	if !ok {
		return registry.GroupModel{}, registry.ResourceModel{}, false
	}
	if p.ResourceType == "" {
		return g, registry.ResourceModel{}, true
	}
	rm, ok := g.Resources[p.ResourceType]
	return g, rm, ok
}
