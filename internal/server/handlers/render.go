package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/inline"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/query"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/response"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
)

// document is an entity on its way out: its attributes plus what the
// inline and collections flags need to know about it.
type document struct {
	xid         string
	attrs       map[string]any
	collections []string
	providers   map[string]inline.Provider
}

// render applies the per-document flags in order: inline, noepoch,
// collections, doc.
func (h *Handlers) render(ctx context.Context, opts query.Options, base string, d document, res *inline.Resolver) (map[string]any, []string) {
	attrs := d.attrs
	warnings := res.Apply(ctx, d.xid, attrs, opts.Inline, d.providers)
	if opts.NoEpoch {
		delete(attrs, "epoch")
	}
	if opts.Collections {
		attrs = collectionsOnly(attrs, d.collections)
	}
	if opts.Doc {
		relativize(attrs, base)
	}
	return attrs, warnings
}

// writeEntity renders a single entity.
func (h *Handlers) writeEntity(w http.ResponseWriter, r *http.Request, opts query.Options, d document) {
	base := h.baseURL(r)
	res := inline.NewResolver(constants.MaxInlineItems)

	warnings := opts.Warnings()
	if opts.Epoch > 0 {
		if epoch, ok := d.attrs["epoch"].(int); ok && epoch != opts.Epoch {
			warnings = append(warnings, fmt.Sprintf("epoch %d requested, entity is at epoch %d", opts.Epoch, epoch))
		}
	}
	attrs, more := h.render(r.Context(), opts, base, d, res)
	warnings = append(warnings, more...)
	for _, warning := range warnings {
		response.AddWarning(w, warning)
	}
	response.JSON(w, r, attrs, modifiedAt(d.attrs))
}

// writeCollection renders one page of a collection with its Link header.
func (h *Handlers) writeCollection(w http.ResponseWriter, r *http.Request, opts query.Options, docs []document, total int, warnings []string) {
	base := h.baseURL(r)
	res := inline.NewResolver(constants.MaxInlineItems)

	warnings = append(opts.Warnings(), warnings...)
	col := response.NewCollection(len(docs))
	var latest time.Time
	for _, d := range docs {
		attrs, more := h.render(r.Context(), opts, base, d, res)
		warnings = append(warnings, more...)
		id := d.xid[strings.LastIndexByte(d.xid, '/')+1:]
		col.Add(id, attrs)
		if t := modifiedAt(d.attrs); t.After(latest) {
			latest = t
		}
	}

	if self, err := url.Parse(base + r.URL.RequestURI()); err == nil {
		if link := query.Links(self, total, opts.Offset, opts.Limit); link != "" {
			w.Header().Set("Link", link)
		}
	}
	for _, warning := range dedupe(warnings) {
		response.AddWarning(w, warning)
	}
	response.JSON(w, r, col, latest)
}

func modifiedAt(attrs map[string]any) time.Time {
	s, _ := attrs["modifiedat"].(string)
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// collectionsOnly keeps the identity attributes and the named child
// collections (their url, count and inlined value).
func collectionsOnly(attrs map[string]any, collections []string) map[string]any {
	out := map[string]any{}
	for _, k := range []string{"xid", "self"} {
		if v, ok := attrs[k]; ok {
			out[k] = v
		}
	}
	for _, c := range collections {
		for _, k := range []string{c, c + "url", c + "count"} {
			if v, ok := attrs[k]; ok {
				out[k] = v
			}
		}
	}
	return out
}

// relativize rewrites absolute URLs under base into base-relative paths.
func relativize(attrs map[string]any, base string) {
	for k, v := range attrs {
		attrs[k] = relativeValue(v, base)
	}
}

func relativeValue(v any, base string) any {
	switch x := v.(type) {
	case string:
		if rest, ok := strings.CutPrefix(x, base); ok && (rest == "" || rest[0] == '/') {
			if rest == "" {
				return "/"
			}
			return rest
		}
		return x
	case map[string]any:
		relativize(x, base)
		return x
	case []any:
		for i := range x {
			x[i] = relativeValue(x[i], base)
		}
		return x
	}
	return v
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// entityDocument wraps a bound entity.
func entityDocument(e registry.Entity, collections []string, providers map[string]inline.Provider) document {
	return document{
		xid:         e.EntityXID(),
		attrs:       e.Attributes(),
		collections: collections,
		providers:   providers,
	}
}
