package handlers

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/filter"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/inline"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/query"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/response"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
)

var resourceCollections = []string{registry.VersionsCollection}

// HandleResources handles GET /{groupType}/{groupId}/{resourceType}.
//
// Listings come from the backend's name index. Filters and sorts that only
// touch the name are evaluated on the index and just the requested page is
// fetched upstream; anything else materializes a bounded prefix of the
// index first.
// @Summary List resources
// @Tags resources
// @Produce json
// @Param filter query string false "Filter expression or keyword"
// @Param sort query string false "Sort attribute and direction"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Router /{groupType}/{groupId}/{resourceType} [get]
func (h *Handlers) HandleResources(w http.ResponseWriter, r *http.Request, p registry.Path, opts query.Options) {
	ctx := r.Context()
	_, rm, ok := h.modelFor(p)
	if !ok {
		response.ErrorFromType(w, r, errors.NewNotFoundError("resource type", p.ResourceType))
		return
	}
	if _, err := h.backend.Group(ctx, registry.Path{GroupType: p.GroupType, GroupID: p.GroupID}); err != nil {
		response.ErrorFromType(w, r, err)
		return
	}

	idAttr := rm.Singular + "id"
	parent := "/" + p.GroupType + "/" + p.GroupID + "/" + p.ResourceType + "/"
	nameAttrs := func(n string) map[string]any {
		id := registry.SanitizeID(n)
		return map[string]any{"name": n, idAttr: id, "xid": parent + id}
	}

	var (
		names    []string
		warnings []string
		err      error
	)
	textOnly := opts.Filter.TextOnly()
	if textOnly {
		text, _ := opts.Filter.Text()
		names, err = h.backend.Search(ctx, p, text, constants.MaxFilterMaterialize)
		if err != nil {
			h.logger.Warn().Err(err).Str("query", text).Msg("Upstream search failed, matching locally")
			warnings = append(warnings, "upstream search unavailable, matched names locally")
			textOnly = false
			names = nil
		}
	}
	if names == nil {
		if names, err = h.backend.ResourceNames(ctx, p); err != nil {
			response.ErrorFromType(w, r, err)
			return
		}
	}

	if !textOnly {
		names = h.withExactNames(ctx, p, names, opts.Filter.ExactValues("name", idAttr))
	}

	var (
		resources []*registry.Resource
		total     int
	)
	sortOnName := opts.Sort.Field == "" || opts.Sort.Field == "name" || opts.Sort.Field == idAttr
	if opts.Filter.NameOnly("name", idAttr, "xid") && sortOnName {
		if !textOnly {
			names = filter.Names(opts.Filter, names, nameAttrs)
		}
		if opts.Sort.Field != "" {
			names = slices.Clone(names)
			query.Names(opts.Sort, names, idAttr)
		}
		total = len(names)
		page := query.Paginate(names, opts.Offset, opts.Limit)
		var more []string
		if resources, more, err = h.materialize(ctx, p, page); err != nil {
			response.ErrorFromType(w, r, err)
			return
		}
		warnings = append(warnings, more...)
	} else {
		candidates := names
		if len(candidates) > constants.MaxFilterMaterialize {
			candidates = candidates[:constants.MaxFilterMaterialize]
			warnings = append(warnings, fmt.Sprintf("filter and sort evaluated over the first %d of %d resources", len(candidates), len(names)))
		}
		var more []string
		if resources, more, err = h.materialize(ctx, p, candidates); err != nil {
			response.ErrorFromType(w, r, err)
			return
		}
		warnings = append(warnings, more...)
		bindAll(resources, h.baseURL(r))
		resources = filter.Apply(opts.Filter, resources)
		query.Entities(opts.Sort, resources)
		total = len(resources)
		resources = query.Paginate(resources, opts.Offset, opts.Limit)
	}

	base := h.baseURL(r)
	docs := make([]document, len(resources))
	for i, res := range resources {
		res.Bind(base)
		docs[i] = entityDocument(res, resourceCollections, h.resourceProviders(res, base))
	}
	h.writeCollection(w, r, opts, docs, total, warnings)
}

// HandleResource handles GET /{groupType}/{groupId}/{resourceType}/{resourceId}.
// @Summary Get resource
// @Tags resources
// @Produce json
// @Router /{groupType}/{groupId}/{resourceType}/{resourceId} [get]
func (h *Handlers) HandleResource(w http.ResponseWriter, r *http.Request, p registry.Path, opts query.Options) {
	res, ok := h.resource(w, r, p)
	if !ok {
		return
	}
	base := h.baseURL(r)
	res.Bind(base)
	h.writeEntity(w, r, opts, entityDocument(res, resourceCollections, h.resourceProviders(res, base)))
}

// HandleMeta handles GET .../{resourceId}/meta.
// @Summary Get resource meta
// @Tags resources
// @Produce json
// @Router /{groupType}/{groupId}/{resourceType}/{resourceId}/meta [get]
func (h *Handlers) HandleMeta(w http.ResponseWriter, r *http.Request, p registry.Path, opts query.Options) {
	res, ok := h.resource(w, r, p)
	if !ok {
		return
	}
	base := h.baseURL(r)
	res.Bind(base)
	h.writeEntity(w, r, opts, entityDocument(registry.NewMeta(res, base), nil, nil))
}

// HandleDoc handles GET .../{resourceId}/doc. Packages with an external
// documentation URL redirect there; others get their description as text.
// @Summary Resource documentation
// @Tags resources
// @Produce plain
// @Success 302
// @Router /{groupType}/{groupId}/{resourceType}/{resourceId}/doc [get]
func (h *Handlers) HandleDoc(w http.ResponseWriter, r *http.Request, p registry.Path) {
	res, ok := h.resource(w, r, p)
	if !ok {
		return
	}
	if res.Docs != "" {
		http.Redirect(w, r, registry.AbsoluteURL(h.baseURL(r), res.Docs), http.StatusFound)
		return
	}
	text := res.Name + "\n"
	if res.Description != "" {
		text += "\n" + res.Description + "\n"
	}
	response.Raw(w, r, http.StatusOK, []byte(text), "text/plain; charset=utf-8", res.ModifiedAt.Time)
}

func (h *Handlers) resource(w http.ResponseWriter, r *http.Request, p registry.Path) (*registry.Resource, bool) {
	if _, _, ok := h.modelFor(p); !ok {
		response.ErrorFromType(w, r, errors.NewNotFoundError("resource type", p.ResourceType))
		return nil, false
	}
	rp := registry.Path{GroupType: p.GroupType, GroupID: p.GroupID, ResourceType: p.ResourceType, ResourceID: p.ResourceID}
	res, err := h.backend.Resource(r.Context(), rp)
	if err != nil {
		response.ErrorFromType(w, r, err)
		return nil, false
	}
	return res, true
}

// withExactNames adds the exact names a filter asks for that the index
// does not hold yet. The index only covers the synchronized catalog
// window, so older resources are confirmed upstream one by one. The
// result keeps the index's case-insensitive name order.
func (h *Handlers) withExactNames(ctx context.Context, p registry.Path, names, exact []string) []string {
	var added bool
	for _, want := range exact {
		if slices.ContainsFunc(names, func(n string) bool {
			return strings.EqualFold(n, want) || strings.EqualFold(registry.SanitizeID(n), want)
		}) {
			continue
		}
		rp := registry.Path{GroupType: p.GroupType, GroupID: p.GroupID, ResourceType: p.ResourceType, ResourceID: want}
		res, err := h.backend.Resource(ctx, rp)
		if err != nil {
			if !errors.IsNotFound(err) {
				h.logger.Debug().Err(err).Str("name", want).Msg("Exact name lookup failed")
			}
			continue
		}
		if !added {
			names = slices.Clone(names)
			added = true
		}
		i, _ := slices.BinarySearchFunc(names, res.Name, func(a, b string) int {
			return strings.Compare(strings.ToLower(a), strings.ToLower(b))
		})
		names = slices.Insert(names, i, res.Name)
	}
	return names
}

// resourceProviders inlines a resource's versions and meta.
func (h *Handlers) resourceProviders(res *registry.Resource, base string) map[string]inline.Provider {
	rp, err := registry.ParseXID(res.XID)
	if err != nil {
		return nil
	}
	return map[string]inline.Provider{
		registry.VersionsCollection: func(ctx context.Context, max int) (inline.Value, error) {
			versions, err := h.backend.Versions(ctx, rp)
			if err != nil {
				return inline.Value{}, err
			}
			bindAll(versions, base)
			return inline.Map(versions, max), nil
		},
		registry.MetaSegment: func(context.Context, int) (inline.Value, error) {
			return inline.Value{Data: registry.NewMeta(res, base).Attributes()}, nil
		},
	}
}

// materialize fetches resources by name, preserving order. Failures are
// isolated: missing or failing resources are dropped with a warning, and an
// error is returned only when nothing could be fetched.
func (h *Handlers) materialize(ctx context.Context, p registry.Path, names []string) ([]*registry.Resource, []string, error) {
	if len(names) == 0 {
		return nil, nil, nil
	}
	results := make([]*registry.Resource, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(constants.MaxResolveConcurrency)
	start := time.Now()
	for i, name := range names {
		g.Go(func() error {
			rp := registry.Path{GroupType: p.GroupType, GroupID: p.GroupID, ResourceType: p.ResourceType, ResourceID: name}
			results[i], errs[i] = h.backend.Resource(ctx, rp)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	out := make([]*registry.Resource, 0, len(names))
	var (
		warnings []string
		firstErr error
	)
	for i, res := range results {
		switch {
		case errs[i] == nil && res != nil:
			out = append(out, res)
		case errors.IsNotFound(errs[i]):
			warnings = append(warnings, fmt.Sprintf("%s %q is indexed but no longer found upstream", p.ResourceType, names[i]))
		case errs[i] != nil:
			if firstErr == nil {
				firstErr = errs[i]
			}
			warnings = append(warnings, fmt.Sprintf("%s %q omitted: %v", p.ResourceType, names[i], errs[i]))
		}
	}
	h.logger.Debug().
		Int("requested", len(names)).
		Int("fetched", len(out)).
		Dur("duration", time.Since(start)).
		Msg("Materialized resources")

	if len(out) == 0 && firstErr != nil {
		return nil, warnings, firstErr
	}
	return out, warnings, nil
}
