// Package nuget is the NuGet adapter: it maps nuget.org's v3 API onto the
// registry model as /dotnetregistries/nuget.org/packages, keeps a name index
// current from the catalog feed, and links version dependencies.
package nuget

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/httpcache"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/transport"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/version"
)

// Endpoints are the NuGet v3 service URLs the adapter talks to.
type Endpoints struct {
	Catalog       string // catalog index document
	Registration  string // registration base, without trailing slash
	FlatContainer string // package base address
	Search        string // search query service
}

// DefaultEndpoints returns the nuget.org service URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Catalog:       "https://api.nuget.org/v3/catalog0/index.json",
		Registration:  "https://api.nuget.org/v3/registration5-semver1",
		FlatContainer: "https://api.nuget.org/v3-flatcontainer",
		Search:        "https://azuresearch-usnc.nuget.org/query",
	}
}

// WithDefaults fills unset endpoints from DefaultEndpoints.
func (e Endpoints) WithDefaults() Endpoints {
	d := DefaultEndpoints()
	if e.Catalog == "" {
		e.Catalog = d.Catalog
	}
	if e.Registration == "" {
		e.Registration = d.Registration
	}
	if e.FlatContainer == "" {
		e.FlatContainer = d.FlatContainer
	}
	if e.Search == "" {
		e.Search = d.Search
	}
	e.Registration = strings.TrimSuffix(e.Registration, "/")
	e.FlatContainer = strings.TrimSuffix(e.FlatContainer, "/")
	return e
}

// Client reads package metadata from NuGet. Metadata requests go through
// the conditional cache; catalog pages are read directly since they are
// crawled once and never served.
type Client struct {
	transport *transport.Client
	cache     *httpcache.Cache
	endpoints Endpoints
	logger    *zerolog.Logger

	registrations singleflight.Group
}

// NewClient creates a NuGet client.
func NewClient(tc *transport.Client, cache *httpcache.Cache, endpoints Endpoints, logger *zerolog.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		transport: tc,
		cache:     cache,
		endpoints: endpoints.WithDefaults(),
		logger:    logger,
	}
}

// Endpoints returns the effective service URLs.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Registration returns every version of a package in ascending order,
// fetching registration pages the index leaves out. Concurrent calls for
// the same package share one upstream round trip. The shared fetch is
// detached from any single caller: a canceled caller stops waiting but the
// others still get the result.
func (c *Client) Registration(ctx context.Context, id string) ([]registrationLeaf, error) {
	key := strings.ToLower(id)
	ch := c.registrations.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.SharedFetchTimeout)
		defer cancel()
		return c.registration(fetchCtx, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]registrationLeaf), nil
	}
}

func (c *Client) registration(ctx context.Context, key string) ([]registrationLeaf, error) {
	var idx registrationIndex
	if _, err := c.cache.GetJSON(ctx, c.registrationURL(key), &idx); err != nil {
		return nil, err
	}

	var leaves []registrationLeaf
	for _, page := range idx.Items {
		items := page.Items
		if len(items) == 0 && page.ID != "" {
			var full registrationPage
			if _, err := c.cache.GetJSON(ctx, page.ID, &full); err != nil {
				return nil, err
			}
			logging.FromContext(ctx).Debug().
				Str("package", key).
				Str("page", page.ID).
				Int("items", len(full.Items)).
				Msg("Fetched registration page")
			items = full.Items
		}
		leaves = append(leaves, items...)
	}
	slices.SortStableFunc(leaves, func(a, b registrationLeaf) int {
		return version.Compare(a.CatalogEntry.Version, b.CatalogEntry.Version)
	})
	return leaves, nil
}

func (c *Client) registrationURL(id string) string {
	return c.endpoints.Registration + "/" + url.PathEscape(strings.ToLower(id)) + "/index.json"
}

func (c *Client) leafURL(id, v string) string {
	return c.endpoints.Registration + "/" + url.PathEscape(strings.ToLower(id)) + "/" + url.PathEscape(strings.ToLower(v)) + ".json"
}

// VersionList returns the published versions of a package from the
// package base address, as normalized lower-case strings.
func (c *Client) VersionList(ctx context.Context, id string) ([]string, error) {
	var idx flatContainerIndex
	u := c.endpoints.FlatContainer + "/" + url.PathEscape(strings.ToLower(id)) + "/index.json"
	if _, err := c.cache.GetJSON(ctx, u, &idx); err != nil {
		return nil, err
	}
	return idx.Versions, nil
}

// VersionExists reports whether the registration leaf of id@v exists.
func (c *Client) VersionExists(ctx context.Context, id, v string) (bool, error) {
	var leaf struct {
		ID string `json:"@id"`
	}
	_, err := c.cache.GetJSON(ctx, c.leafURL(id, v), &leaf)
	switch {
	case err == nil:
		return true, nil
	case errors.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// Versions implements resolver.Upstream.
func (c *Client) Versions(ctx context.Context, id string) ([]string, error) {
	return c.VersionList(ctx, id)
}

// PackageExists reports whether id has a registration index.
func (c *Client) PackageExists(ctx context.Context, id string) (bool, error) {
	var idx struct {
		Count int `json:"count"`
	}
	_, err := c.cache.GetJSON(ctx, c.registrationURL(id), &idx)
	switch {
	case err == nil:
		return true, nil
	case errors.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// Search runs a keyword query and returns up to take package ids in
// relevance order.
func (c *Client) Search(ctx context.Context, text string, take int) ([]string, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("skip", "0")
	q.Set("take", strconv.Itoa(take))
	q.Set("prerelease", "true")
	q.Set("semVerLevel", "2.0.0")

	var resp searchResponse
	r, err := c.cache.GetJSON(ctx, c.endpoints.Search+"?"+q.Encode(), &resp)
	if err != nil {
		return nil, err
	}
	if r.Status == httpcache.Stale {
		// Stale search results count as a failure; callers fall back to the index.
		return nil, r.Err
	}
	ids := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// getJSON fetches a document without caching it.
func (c *Client) getJSON(ctx context.Context, u string, target any) error {
	resp, err := c.transport.Get(ctx, u, http.Header{})
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return errors.NewNotFoundError("catalog page", u)
	}
	return c.transport.DecodeResponse(resp, target)
}
