// Package transport is the HTTP client every adapter uses to talk to its
// upstream registry. It applies credentials, a politeness rate limit, and
// common headers, and maps failures onto the shared error taxonomy.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
)

// DefaultUserAgent identifies the adapter to upstream registries.
const DefaultUserAgent = "xregistry-package-registries/1.0"

// Client provides upstream HTTP access.
type Client struct {
	http       *http.Client
	auth       Authenticator
	credential string
	limiter    *rate.Limiter
	userAgent  string
	name       string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying client. Tests use it to point at
// an httptest server with custom transport settings.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit limits outgoing requests to rps per second. rps <= 0
// disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithCredential sends credential on every request using auth.
func WithCredential(auth Authenticator, credential string) Option {
	return func(c *Client) {
		c.auth = auth
		c.credential = credential
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithName labels errors with the upstream's name.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// New creates a client with default timeout and rate limit.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: constants.DefaultHTTPTimeout},
		auth:      NoAuth{},
		limiter:   rate.NewLimiter(rate.Limit(constants.UpstreamRateLimit), constants.BurstSize),
		userAgent: DefaultUserAgent,
		name:      "upstream",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the upstream label.
func (c *Client) Name() string {
	return c.name
}

// Do sends req after waiting for the rate limiter. Transport failures are
// returned as unreachable UpstreamErrors; HTTP status codes are left to
// the caller.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.WrapUpstream(c.name, req.URL.String(), err)
		}
	}
	if c.credential != "" {
		c.auth.Apply(req, c.credential)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &errors.TimeoutError{Operation: "GET " + req.URL.String(), Duration: c.http.Timeout.String()}
		}
		return nil, errors.WrapUpstream(c.name, req.URL.String(), err)
	}
	return resp, nil
}

// Get performs a GET request with extra headers.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewValidationError("url", url, err.Error())
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.Do(ctx, req)
}

// ReadBody reads at most MaxResponseBytes of the response and closes it.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseBytes))
	if err != nil {
		return nil, errors.WrapIO("read", "response body", err)
	}
	return body, nil
}

// DecodeResponse decodes a 200 JSON response into target. Any other status
// becomes an UpstreamError.
func (c *Client) DecodeResponse(resp *http.Response, target any) error {
	body, err := ReadBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.NewUpstreamError(c.name, resp.Request.URL.String(), resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", resp.Request.URL.String(), err)
	}
	return nil
}
