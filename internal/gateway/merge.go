package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/query"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/response"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/registry"
)

// result is one adapter's answer during a fan-out.
type result[T any] struct {
	adapter *adapter
	value   T
	err     error
}

// fanOut calls fn for every adapter concurrently. Failures are isolated
// per adapter.
func fanOut[T any](ctx context.Context, adapters []*adapter, fn func(context.Context, *adapter) (T, error)) []result[T] {
	out := make([]result[T], len(adapters))
	var eg errgroup.Group
	for i, a := range adapters {
		eg.Go(func() error {
			v, err := fn(ctx, a)
			out[i] = result[T]{adapter: a, value: v, err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// fetchJSON GETs path from an adapter as the gateway's client would see
// it: forwarded headers make the adapter build gateway URLs.
func (g *Gateway) fetchJSON(ctx context.Context, r *http.Request, a *adapter, path string, target any) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.AdapterTimeout)
	defer cancel()

	u := a.route.URL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	g.forwardHeaders(req.Header, r)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return errors.WrapUpstream(a.route.Name, u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.NewUpstreamError(a.route.Name, u, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return errors.WrapParse("json", u, err)
	}
	return nil
}

// forwardHeaders copies the headers an adapter needs to answer on the
// gateway's behalf.
func (g *Gateway) forwardHeaders(h http.Header, r *http.Request) {
	if base, err := url.Parse(g.baseURL(r)); err == nil {
		h.Set("X-Forwarded-Host", base.Host)
		h.Set("X-Forwarded-Proto", base.Scheme)
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		h.Set("Authorization", auth)
	}
	if id := r.Header.Get("X-Request-ID"); id != "" {
		h.Set("X-Request-ID", id)
	}
}

func (g *Gateway) warnFailures(w http.ResponseWriter, what string, a *adapter, err error) {
	g.logger.Warn().Err(err).Str("adapter", a.route.Name).Str("document", what).Msg("Adapter omitted from merged document")
	response.AddWarning(w, fmt.Sprintf("%s from adapter %s unavailable", what, a.route.Name))
}

// HandleModel handles GET /model: the union of every adapter's group types.
// @Summary Merged registry model
// @Tags registry
// @Produce json
// @Router /model [get]
func (g *Gateway) HandleModel(w http.ResponseWriter, r *http.Request) {
	results := fanOut(r.Context(), g.adapters, func(ctx context.Context, a *adapter) (*registry.Model, error) {
		var m registry.Model
		err := g.fetchJSON(ctx, r, a, "/model", &m)
		return &m, err
	})
	merged := &registry.Model{Groups: map[string]registry.GroupModel{}}
	ok := 0
	for _, res := range results {
		if res.err != nil {
			g.warnFailures(w, "model", res.adapter, res.err)
			continue
		}
		merged.Merge(res.value)
		ok++
	}
	if ok == 0 && len(results) > 0 {
		g.unreachable(w, r, "no adapter answered")
		return
	}
	response.JSON(w, r, merged, time.Time{})
}

// HandleCapabilities handles GET /capabilities.
// @Summary Merged registry capabilities
// @Tags registry
// @Produce json
// @Router /capabilities [get]
func (g *Gateway) HandleCapabilities(w http.ResponseWriter, r *http.Request) {
	results := fanOut(r.Context(), g.adapters, func(ctx context.Context, a *adapter) (registry.Capabilities, error) {
		var c registry.Capabilities
		err := g.fetchJSON(ctx, r, a, "/capabilities", &c)
		return c, err
	})
	var (
		merged registry.Capabilities
		first  = true
	)
	for _, res := range results {
		if res.err != nil {
			g.warnFailures(w, "capabilities", res.adapter, res.err)
			continue
		}
		if first {
			merged, first = res.value, false
			continue
		}
		merged.Merge(res.value)
	}
	if first {
		g.unreachable(w, r, "no adapter answered")
		return
	}
	response.JSON(w, r, merged, time.Time{})
}

// HandleRoot handles GET /: a registry document linking every adapter's
// group collection. Counts come from the adapters' own root documents.
// @Summary Merged registry root
// @Tags registry
// @Produce json
// @Router / [get]
func (g *Gateway) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if accept := r.Header.Get("Accept"); accept != "" && !query.Acceptable(accept) {
		response.ErrorFromType(w, r, &errors.NotAcceptableError{What: "media type", Value: accept})
		return
	}
	results := fanOut(r.Context(), g.adapters, func(ctx context.Context, a *adapter) (map[string]any, error) {
		var doc map[string]any
		err := g.fetchJSON(ctx, r, a, "/", &doc)
		return doc, err
	})

	reg := registry.NewRegistry("xregistry-gateway", constants.SpecVersion)
	reg.Description = "Package registry gateway"
	var latest time.Time
	for _, res := range results {
		groupType := strings.TrimPrefix(res.adapter.route.Prefix, "/")
		col := registry.Collection{Name: groupType, URL: res.adapter.route.Prefix}
		if res.err != nil {
			g.warnFailures(w, "root", res.adapter, res.err)
		} else {
			if n, ok := res.value[groupType+"count"].(float64); ok {
				col.Count = int(n)
			}
			if s, ok := res.value["modifiedat"].(string); ok {
				if t, err := time.Parse(time.RFC3339, s); err == nil && t.After(latest) {
					latest = t
				}
			}
		}
		reg.Collections = append(reg.Collections, col)
	}
	reg.Bind(g.baseURL(r))
	response.JSON(w, r, reg, latest)
}
