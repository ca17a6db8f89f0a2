package handlers

import (
	"context"
	"net/http"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/filter"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/inline"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/query"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/response"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
)

// HandleGroups handles GET /{groupType}.
// @Summary List groups
// @Tags groups
// @Produce json
// @Param filter query string false "Filter expression"
// @Param sort query string false "Sort attribute and direction"
// @Router /{groupType} [get]
func (h *Handlers) HandleGroups(w http.ResponseWriter, r *http.Request, p registry.Path, opts query.Options) {
	gm, _, ok := h.modelFor(p)
	if !ok {
		response.ErrorFromType(w, r, errors.NewNotFoundError("group type", p.GroupType))
		return
	}

	groups, err := h.backend.Groups(r.Context(), p.GroupType)
	if err != nil {
		response.ErrorFromType(w, r, err)
		return
	}
	base := h.baseURL(r)
	bindAll(groups, base)

	groups = filter.Apply(opts.Filter, groups)
	query.Entities(opts.Sort, groups)
	total := len(groups)
	page := query.Paginate(groups, opts.Offset, opts.Limit)

	resourceTypes := sortedKeys(gm.Resources)
	docs := make([]document, len(page))
	for i, g := range page {
		docs[i] = entityDocument(g, resourceTypes, h.groupProviders(g, resourceTypes, base))
	}
	h.writeCollection(w, r, opts, docs, total, nil)
}

// HandleGroup handles GET /{groupType}/{groupId}.
// @Summary Get group
// @Tags groups
// @Produce json
// @Router /{groupType}/{groupId} [get]
func (h *Handlers) HandleGroup(w http.ResponseWriter, r *http.Request, p registry.Path, opts query.Options) {
	gm, _, ok := h.modelFor(p)
	if !ok {
		response.ErrorFromType(w, r, errors.NewNotFoundError("group type", p.GroupType))
		return
	}
	g, err := h.backend.Group(r.Context(), p)
	if err != nil {
		response.ErrorFromType(w, r, err)
		return
	}
	base := h.baseURL(r)
	g.Bind(base)

	resourceTypes := sortedKeys(gm.Resources)
	h.writeEntity(w, r, opts, entityDocument(g, resourceTypes, h.groupProviders(g, resourceTypes, base)))
}

// groupProviders inlines the first resources of each resource collection.
func (h *Handlers) groupProviders(g *registry.Group, resourceTypes []string, base string) map[string]inline.Provider {
	gp, err := registry.ParseXID(g.XID)
	if err != nil {
		return nil
	}
	providers := make(map[string]inline.Provider, len(resourceTypes))
	for _, rt := range resourceTypes {
		rp := registry.Path{GroupType: gp.GroupType, GroupID: gp.GroupID, ResourceType: rt}
		providers[rt] = func(ctx context.Context, max int) (inline.Value, error) {
			names, err := h.backend.ResourceNames(ctx, rp)
			if err != nil {
				return inline.Value{}, err
			}
			truncated := len(names) > max
			if truncated {
				names = names[:max]
			}
			resources, _, err := h.materialize(ctx, rp, names)
			if err != nil {
				return inline.Value{}, err
			}
			bindAll(resources, base)
			v := inline.Map(resources, 0)
			v.Truncated = truncated
			return v, nil
		}
	}
	return providers
}
