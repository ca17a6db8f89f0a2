package handlers

import (
	"net/http"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/filter"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/query"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/response"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
)

// HandleVersions handles GET .../{resourceId}/versions.
// @Summary List versions
// @Tags versions
// @Produce json
// @Router /{groupType}/{groupId}/{resourceType}/{resourceId}/versions [get]
func (h *Handlers) HandleVersions(w http.ResponseWriter, r *http.Request, p registry.Path, opts query.Options) {
	if _, _, ok := h.modelFor(p); !ok {
		response.ErrorFromType(w, r, errors.NewNotFoundError("resource type", p.ResourceType))
		return
	}
	versions, err := h.backend.Versions(r.Context(), p)
	if err != nil {
		response.ErrorFromType(w, r, err)
		return
	}
	bindAll(versions, h.baseURL(r))

	versions = filter.Apply(opts.Filter, versions)
	query.Entities(opts.Sort, versions)
	total := len(versions)
	page := query.Paginate(versions, opts.Offset, opts.Limit)

	docs := make([]document, len(page))
	for i, v := range page {
		docs[i] = entityDocument(v, nil, nil)
	}
	h.writeCollection(w, r, opts, docs, total, nil)
}

// HandleVersion handles GET .../{resourceId}/versions/{versionId}.
// @Summary Get version
// @Tags versions
// @Produce json
// @Router /{groupType}/{groupId}/{resourceType}/{resourceId}/versions/{versionId} [get]
func (h *Handlers) HandleVersion(w http.ResponseWriter, r *http.Request, p registry.Path, opts query.Options) {
	if _, _, ok := h.modelFor(p); !ok {
		response.ErrorFromType(w, r, errors.NewNotFoundError("resource type", p.ResourceType))
		return
	}
	v, err := h.backend.Version(r.Context(), p)
	if err != nil {
		response.ErrorFromType(w, r, err)
		return
	}
	v.Bind(h.baseURL(r))
	h.writeEntity(w, r, opts, entityDocument(v, nil, nil))
}
