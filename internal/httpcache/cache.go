// Package httpcache is the conditional cache in front of every upstream
// registry request. Entries are keyed by request URL, revalidated with
// If-None-Match, and served stale when the upstream cannot be reached.
// There is no expiry: an entry only changes when the upstream returns a
// new representation.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/store"
	"github.com/clemensv/xregistry-package-registries-sub002/internal/transport"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

// Status is the outcome of a cache lookup.
type Status int

const (
	// Miss means the upstream reported the resource does not exist.
	Miss Status = iota
	// Fresh means the payload was fetched or revalidated just now.
	Fresh
	// Stale means the upstream failed and a previously cached payload is served.
	Stale
	// Failed means the upstream failed and nothing was cached.
	Failed
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Failed:
		return "failed"
	}
	return "miss"
}

// Result is returned by Get. Payload is set for Fresh and Stale, Err for
// Failed and, as a NotFoundError, for Miss.
type Result struct {
	Status    Status
	Payload   []byte
	ETag      string
	Timestamp utc.Time
	Err       error
}

// OK reports whether the result carries a payload.
func (r Result) OK() bool {
	return r.Status == Fresh || r.Status == Stale
}

// Entry is the persisted form of a cached response.
type Entry struct {
	Key       string   `json:"key"`
	ETag      string   `json:"etag,omitempty"`
	Payload   []byte   `json:"payload"`
	Timestamp utc.Time `json:"timestamp"`
}

// Key derives the store key for a request URL.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "http/" + hex.EncodeToString(sum[:])
}

// Observer is notified of every lookup outcome.
type Observer func(upstream string, status Status)

// Cache performs conditional upstream GETs through a Store.
type Cache struct {
	client   *transport.Client
	store    store.Store
	logger   *zerolog.Logger
	observer Observer
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithObserver registers an outcome callback, used for metrics.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// New creates a cache fetching through client and persisting into st.
func New(client *transport.Client, st store.Store, opts ...Option) *Cache {
	c := &Cache{client: client, store: st, logger: logging.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches url, revalidating any cached entry. headers are added to the
// upstream request.
func (c *Cache) Get(ctx context.Context, url string, headers http.Header) Result {
	r := c.get(ctx, url, headers)
	if c.observer != nil {
		c.observer(c.client.Name(), r.Status)
	}
	return r
}

func (c *Cache) get(ctx context.Context, url string, headers http.Header) Result {
	key := Key(url)
	entry, cached := c.load(ctx, key)

	h := headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	if cached && entry.ETag != "" {
		h.Set("If-None-Match", entry.ETag)
	}

	resp, err := c.client.Get(ctx, url, h)
	if err != nil {
		return c.fallback(ctx, url, entry, cached, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		resp.Body.Close()
		if !cached {
			return Result{Status: Failed, Err: errors.NewUpstreamError(c.client.Name(), url, resp.StatusCode, "not modified without a cached entry")}
		}
		return Result{Status: Fresh, Payload: entry.Payload, ETag: entry.ETag, Timestamp: entry.Timestamp}

	case resp.StatusCode == http.StatusOK:
		body, err := transport.ReadBody(resp)
		if err != nil {
			return c.fallback(ctx, url, entry, cached, err)
		}
		fresh := Entry{Key: url, ETag: resp.Header.Get("ETag"), Payload: body, Timestamp: utc.Now()}
		c.save(ctx, key, fresh)
		return Result{Status: Fresh, Payload: body, ETag: fresh.ETag, Timestamp: fresh.Timestamp}

	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return Result{Status: Miss, Err: errors.NewNotFoundError("upstream resource", url)}

	default:
		resp.Body.Close()
		err := errors.NewUpstreamError(c.client.Name(), url, resp.StatusCode, http.StatusText(resp.StatusCode))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return c.fallback(ctx, url, entry, cached, err)
		}
		return Result{Status: Failed, Err: err}
	}
}

func (c *Cache) fallback(ctx context.Context, url string, entry Entry, cached bool, err error) Result {
	if cached {
		logging.FromContext(ctx).Warn().Err(err).Str("url", url).Msg("Upstream failed, serving cached payload")
		return Result{Status: Stale, Payload: entry.Payload, ETag: entry.ETag, Timestamp: entry.Timestamp, Err: err}
	}
	return Result{Status: Failed, Err: err}
}

func (c *Cache) load(ctx context.Context, key string) (Entry, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return Entry{}, false
	}
	return e, true
}

func (c *Cache) save(ctx context.Context, key string, e Entry) {
	raw, err := json.Marshal(e)
	if err == nil {
		err = c.store.Put(ctx, key, raw)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("url", e.Key).Msg("Cache write failed")
	}
}

// GetJSON fetches url and decodes the payload into target. A Miss becomes
// a NotFoundError and a Failed result its underlying error.
func (c *Cache) GetJSON(ctx context.Context, url string, target any) (Result, error) {
	r := c.Get(ctx, url, nil)
	switch r.Status {
	case Miss, Failed:
		return r, r.Err
	}
	if err := json.Unmarshal(r.Payload, target); err != nil {
		return r, errors.WrapParse("json", url, err)
	}
	return r, nil
}
