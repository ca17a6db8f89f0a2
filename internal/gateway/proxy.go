package gateway

import (
	"context"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/response"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

// AdapterHeader names the adapter that produced a proxied response.
const AdapterHeader = "X-Registry-Adapter"

func (g *Gateway) newProxy(a *adapter) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Transport: g.client.Transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(a.target)
			pr.SetXForwarded()
			if base, err := url.Parse(g.baseURL(pr.In)); err == nil {
				pr.Out.Header.Set("X-Forwarded-Host", base.Host)
				pr.Out.Header.Set("X-Forwarded-Proto", base.Scheme)
			}
			pr.Out.Host = a.target.Host
		},
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Set(AdapterHeader, a.route.Name)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			g.proxyError(w, r, a, err)
		},
	}
}

// HandleProxy forwards a registry request to the adapter owning its
// prefix. Content negotiation and conditional headers pass through
// unchanged.
func (g *Gateway) HandleProxy(w http.ResponseWriter, r *http.Request) {
	a := g.match(r.URL.Path)
	if a == nil {
		response.NotFound(w, r, "no adapter serves "+r.URL.Path)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.AdapterTimeout)
	defer cancel()
	a.proxy.ServeHTTP(w, r.WithContext(logging.WithAdapter(ctx, a.route.Name)))
}

func (g *Gateway) proxyError(w http.ResponseWriter, r *http.Request, a *adapter, err error) {
	log := logging.FromContext(r.Context())
	if errors.Is(r.Context().Err(), context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		log.Debug().Err(err).Str("adapter", a.route.Name).Msg("Client went away")
		return
	}
	status := http.StatusBadGateway
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		status = http.StatusGatewayTimeout
	}
	log.Warn().Err(err).Str("adapter", a.route.Name).Int("status", status).Msg("Adapter unreachable")
	w.Header().Set(AdapterHeader, a.route.Name)
	response.WriteProblem(w, r, status, response.TypeAdapterUnreachable, "Adapter unreachable",
		"adapter "+a.route.Name+" did not answer")
}

func (g *Gateway) unreachable(w http.ResponseWriter, r *http.Request, detail string) {
	response.WriteProblem(w, r, http.StatusBadGateway, response.TypeAdapterUnreachable, "Adapter unreachable", detail)
}
