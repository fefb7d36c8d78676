// Package gateway is the serve loop of the cache controller: every resource
// request the page issues is intercepted here, classified into a routing
// tier, and served by the matching fetch strategy against the registry.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quietriver/sitecache/pkg/cache"
	"github.com/quietriver/sitecache/pkg/classify"
	"github.com/quietriver/sitecache/pkg/notify"
	"github.com/quietriver/sitecache/pkg/offline"
	"github.com/quietriver/sitecache/pkg/strategy"
)

// Generations names the current generation per purpose. The gateway routes
// each tier to exactly one of them.
type Generations struct {
	Static  string
	Dynamic string
	API     string
}

// Config holds gateway configuration.
type Config struct {
	// Origin is the base URL origin-form requests resolve against.
	Origin string

	// Registry is the cache registry.
	Registry *cache.Registry

	// Classifier assigns requests to tiers.
	Classifier *classify.Classifier

	// Fetcher executes the per-tier strategies.
	Fetcher *strategy.Fetcher

	// Generations are the current generation names.
	Generations Generations

	// Client is the HTTP client for bypassed (non-read) requests
	// (default: a plain http.Client).
	Client *http.Client
}

// Handler intercepts and serves page resource requests.
type Handler struct {
	origin      *url.URL
	registry    *cache.Registry
	classifier  *classify.Classifier
	fetcher     *strategy.Fetcher
	generations Generations
	client      *http.Client
	logger      zerolog.Logger
}

// New creates a gateway handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Registry == nil || cfg.Classifier == nil || cfg.Fetcher == nil {
		return nil, fmt.Errorf("registry, classifier and fetcher are required")
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin must be an absolute URL: %q", cfg.Origin)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Handler{
		origin:      origin,
		registry:    cfg.Registry,
		classifier:  cfg.Classifier,
		fetcher:     cfg.Fetcher,
		generations: cfg.Generations,
		client:      client,
		logger:      log.With().Str("component", "gateway").Logger(),
	}, nil
}

// ServeHTTP classifies the request and serves it through the tier's
// strategy. Absolute-form requests (CDN, remote APIs) are fetched as-is;
// origin-form requests resolve against the configured origin.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	target := h.resolve(r)
	outReq := r.Clone(r.Context())
	outReq.URL = target
	outReq.Host = ""

	tier := h.classifier.Classify(outReq)
	defer func() {
		requestDuration.WithLabelValues(tier.String()).Observe(time.Since(start).Seconds())
	}()

	if tier == classify.TierBypass {
		h.proxy(w, outReq)
		requestsTotal.WithLabelValues(tier.String(), "network").Inc()
		return
	}

	entry, source, err := h.dispatch(r.Context(), tier, outReq)
	if err != nil {
		if tier == classify.TierDocumentNetworkFirst && errors.Is(err, strategy.ErrNetworkAndCacheMiss) {
			h.logger.Warn().
				Str("url", target.String()).
				Msg("Document navigation exhausted network and cache, serving offline page")
			requestsTotal.WithLabelValues(tier.String(), "offline").Inc()
			offline.Write(w)
			return
		}
		h.logger.Error().
			Err(err).
			Str("tier", tier.String()).
			Str("url", target.String()).
			Msg("Request failed on every source")
		requestsTotal.WithLabelValues(tier.String(), "error").Inc()
		http.Error(w, "upstream unavailable", http.StatusGatewayTimeout)
		return
	}

	requestsTotal.WithLabelValues(tier.String(), string(source)).Inc()
	h.logger.Debug().
		Str("tier", tier.String()).
		Str("source", string(source)).
		Str("url", target.String()).
		Int("status_code", entry.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request served")

	if err := entry.WriteTo(w); err != nil {
		h.logger.Debug().Err(err).Msg("Client went away while writing response")
	}
}

// dispatch runs the strategy matching the tier against its generation.
func (h *Handler) dispatch(ctx context.Context, tier classify.Tier, req *http.Request) (*cache.Entry, strategy.Source, error) {
	switch tier {
	case classify.TierAPINetworkFirst:
		return h.fetcher.NetworkFirstWithTimeout(ctx, req, h.registry.Open(h.generations.API))
	case classify.TierStaticCacheFirst:
		return h.fetcher.CacheFirstWithRefresh(ctx, req, h.registry.Open(h.generations.Static))
	case classify.TierDocumentNetworkFirst:
		return h.fetcher.NetworkFirstWithCacheFallback(ctx, req, h.registry.Open(h.generations.Static))
	default:
		// CDN and unmatched dynamic requests share the dynamic generation.
		return h.fetcher.CacheFirstWithRefresh(ctx, req, h.registry.Open(h.generations.Dynamic))
	}
}

// resolve returns the absolute fetch target for a request.
func (h *Handler) resolve(r *http.Request) *url.URL {
	if r.URL.IsAbs() {
		return r.URL
	}
	return h.origin.ResolveReference(r.URL)
}

// proxy passes a non-read request straight to the network, untouched by any
// cache.
func (h *Handler) proxy(w http.ResponseWriter, r *http.Request) {
	r.RequestURI = ""

	resp, err := h.client.Do(r)
	if err != nil {
		h.logger.Error().Err(err).Str("url", r.URL.String()).Msg("Bypass proxy failed")
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Debug().Err(err).Msg("Client went away while proxying response")
	}
}

// HealthHandler reports liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// StatusHandler surfaces the cache-status query over HTTP: per-generation
// entry counts, fetched from the controller through the notify bus.
// Diagnostics only.
func StatusHandler(bus *notify.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		counts, err := notify.CacheStatus(ctx, bus)
		if err != nil {
			http.Error(w, fmt.Sprintf("cache status: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"generations": counts})
	}
}
