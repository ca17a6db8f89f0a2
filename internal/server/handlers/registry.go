package handlers

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/inline"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/query"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/response"
)

// HandleRoot handles GET /.
// @Summary Registry root
// @Description Root document with links to the model, capabilities and group collections
// @Tags registry
// @Produce json
// @Router / [get]
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request, opts query.Options) {
	reg, err := h.backend.Registry(r.Context())
	if err != nil {
		response.ErrorFromType(w, r, err)
		return
	}
	base := h.baseURL(r)
	reg.Bind(base)

	model := h.backend.Model()
	groupTypes := sortedKeys(model.Groups)

	providers := map[string]inline.Provider{
		"model": func(context.Context, int) (inline.Value, error) {
			return inline.Value{Data: model}, nil
		},
		"capabilities": func(context.Context, int) (inline.Value, error) {
			return inline.Value{Data: h.backend.Capabilities()}, nil
		},
		"schema": func(context.Context, int) (inline.Value, error) {
			return inline.Value{Data: model.Schema()}, nil
		},
	}
	for _, gt := range groupTypes {
		providers[gt] = func(ctx context.Context, max int) (inline.Value, error) {
			groups, err := h.backend.Groups(ctx, gt)
			if err != nil {
				return inline.Value{}, err
			}
			bindAll(groups, base)
			return inline.Map(groups, max), nil
		}
	}

	h.writeEntity(w, r, opts, entityDocument(reg, groupTypes, providers))
}

// HandleModel handles GET /model.
// @Summary Registry model
// @Tags registry
// @Produce json
// @Router /model [get]
func (h *Handlers) HandleModel(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, h.backend.Model(), time.Time{})
}

// HandleCapabilities handles GET /capabilities.
// @Summary Registry capabilities
// @Tags registry
// @Produce json
// @Router /capabilities [get]
func (h *Handlers) HandleCapabilities(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, h.backend.Capabilities(), time.Time{})
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// bindAll binds every entity to base.
func bindAll[T interface{ Bind(string) }](items []T, base string) {
	for _, it := range items {
		it.Bind(base)
	}
}
