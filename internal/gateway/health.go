package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/server/handlers"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
)

// StatusUnknown marks an adapter that has not been probed yet.
const StatusUnknown = "unknown"

// AdapterHealth is the gateway's last view of one adapter.
type AdapterHealth struct {
	Name      string    `json:"name"`
	Prefix    string    `json:"prefix"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Code      int       `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
	Latency   string    `json:"latency,omitempty"`
	CheckedAt time.Time `json:"checkedAt,omitzero"`
}

// Ready reports whether the adapter can serve requests.
func (h AdapterHealth) Ready() bool {
	return handlers.Health{Status: h.Status}.Ready()
}

func (a *adapter) snapshot() AdapterHealth {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.health
}

// probe checks one adapter's /health and records the outcome.
func (g *Gateway) probe(ctx context.Context, a *adapter) AdapterHealth {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.HealthTimeout)
	defer cancel()

	h := AdapterHealth{Name: a.route.Name, Prefix: a.route.Prefix, URL: a.route.URL, Status: handlers.StatusUnhealthy}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.route.URL+"/health", nil)
	if err == nil {
		var resp *http.Response
		if resp, err = g.client.Do(req); err == nil {
			h.Code = resp.StatusCode
			var doc struct {
				Status string `json:"status"`
			}
			if decErr := json.NewDecoder(resp.Body).Decode(&doc); decErr == nil && doc.Status != "" && resp.StatusCode == http.StatusOK {
				h.Status = doc.Status
			} else if resp.StatusCode == http.StatusOK {
				h.Status = handlers.StatusHealthy
			}
			resp.Body.Close()
		}
	}
	if err != nil {
		h.Error = err.Error()
	}
	h.Latency = time.Since(start).Round(time.Millisecond).String()
	h.CheckedAt = time.Now().UTC()

	a.mu.Lock()
	prev := a.health.Status
	a.health = h
	a.mu.Unlock()

	g.metrics.SetAdapterUp(a.route.Name, h.Ready())
	if prev != h.Status {
		ev := g.logger.Info()
		if !h.Ready() {
			ev = g.logger.Warn()
		}
		ev.Str("adapter", a.route.Name).
			Str("from", prev).
			Str("to", h.Status).
			Int("code", h.Code).
			Str("error", h.Error).
			Msg("Adapter health changed")
	}
	return h
}

// Probe checks every adapter concurrently.
func (g *Gateway) Probe(ctx context.Context) []AdapterHealth {
	out := make([]AdapterHealth, len(g.adapters))
	var eg errgroup.Group
	for i, a := range g.adapters {
		eg.Go(func() error {
			out[i] = g.probe(ctx, a)
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// WaitReady polls the adapters with exponential backoff until all report
// ready or the startup timeout elapses. It returns an error naming the
// adapters still not ready; the gateway serves degraded in that case.
func (g *Gateway) WaitReady(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = constants.RetryBackoff
	b.MaxInterval = constants.MaxRetryBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		var pending []string
		for _, h := range g.Probe(ctx) {
			if !h.Ready() {
				pending = append(pending, h.Name)
			}
		}
		if len(pending) > 0 {
			return struct{}{}, fmt.Errorf("adapters not ready: %s", strings.Join(pending, ", "))
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(g.cfg.StartupTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			g.logger.Info().Err(err).Dur("retry_in", next).Msg("Waiting for adapters")
		}),
	)
	if err != nil {
		g.logger.Warn().Err(err).Dur("timeout", g.cfg.StartupTimeout).Msg("Starting degraded")
		return err
	}
	g.logger.Info().Msg("All adapters ready")
	return nil
}

// Monitor re-probes the adapters every recheck interval until ctx is done.
func (g *Gateway) Monitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(g.cfg.RecheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Probe(ctx)
			}
		}
	}()
}

// HandleHealth handles GET /health. It always answers 200; the body
// reports each adapter's status and the overall status is degraded when
// any adapter is not ready.
// @Summary Gateway health
// @Tags health
// @Produce json
// @Success 200 {object} object
// @Router /health [get]
func (g *Gateway) HandleHealth(w http.ResponseWriter, r *http.Request) {
	adapters := g.Probe(r.Context())
	status := handlers.StatusHealthy
	byName := make(map[string]AdapterHealth, len(adapters))
	for _, h := range adapters {
		byName[h.Name] = h
		if !h.Ready() {
			status = handlers.StatusDegraded
		}
	}
	doc := map[string]any{
		"status":   status,
		"version":  g.cfg.Server.Version,
		"uptime":   time.Since(g.started).Round(time.Second).String(),
		"adapters": byName,
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		g.logger.Debug().Err(err).Msg("Failed to write health response")
	}
}
