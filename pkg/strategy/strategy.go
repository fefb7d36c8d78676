// Package strategy implements the per-tier read/write/fallback policies
// against the cache registry and the network.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quietriver/sitecache/pkg/cache"
)

// ErrNetworkAndCacheMiss is returned when a strategy exhausts both the
// network and the cache.
var ErrNetworkAndCacheMiss = errors.New("network and cache both missed")

// Source reports where a strategy found the response.
type Source string

const (
	// SourceNetwork means the response came from a live fetch.
	SourceNetwork Source = "network"

	// SourceCache means the response came from a stored snapshot.
	SourceCache Source = "cache"
)

const (
	// DefaultAPITimeout is the deadline for the API tier's network attempt
	// when none is configured.
	DefaultAPITimeout = 3 * time.Second

	// backgroundRefreshTimeout bounds the detached re-fetch that follows a
	// cache-first hit.
	backgroundRefreshTimeout = 30 * time.Second
)

// Config holds fetcher configuration.
type Config struct {
	// Client is the HTTP client used for all network fetches
	// (default: a plain http.Client).
	Client *http.Client

	// APITimeout is the deadline for the network-first-with-timeout
	// strategy (default: DefaultAPITimeout).
	APITimeout time.Duration
}

// Fetcher executes the fetch strategies. Safe for concurrent use.
type Fetcher struct {
	client     *http.Client
	apiTimeout time.Duration
	logger     zerolog.Logger

	refreshWG sync.WaitGroup
}

// New creates a fetcher.
func New(cfg Config) *Fetcher {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = DefaultAPITimeout
	}
	return &Fetcher{
		client:     client,
		apiTimeout: timeout,
		logger:     log.With().Str("component", "strategy").Logger(),
	}
}

// NetworkFirstWithTimeout issues the network request under the configured
// deadline. A completed response is stored (best-effort) and returned; on
// transport failure or timeout the in-flight fetch is abandoned and the
// cached snapshot, if any, is served instead.
func (f *Fetcher) NetworkFirstWithTimeout(ctx context.Context, req *http.Request, store *cache.Store) (*cache.Entry, Source, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.apiTimeout)
	defer cancel()

	entry, err := f.fetch(fetchCtx, req)
	if err == nil {
		f.storeBestEffort(ctx, store, req.URL.String(), entry)
		fetchesTotal.WithLabelValues("network_first_timeout", string(SourceNetwork)).Inc()
		return entry, SourceNetwork, nil
	}

	f.logger.Debug().
		Err(err).
		Str("url", req.URL.String()).
		Dur("timeout", f.apiTimeout).
		Msg("Network failed within deadline, trying cache")

	if cached, cerr := store.Match(ctx, req.URL.String()); cerr == nil {
		fetchesTotal.WithLabelValues("network_first_timeout", string(SourceCache)).Inc()
		return cached, SourceCache, nil
	}

	return nil, "", fmt.Errorf("%w: %v", ErrNetworkAndCacheMiss, err)
}

// CacheFirstWithRefresh serves the cached snapshot when present and kicks
// off a detached re-fetch that overwrites the entry on success. The refresh
// is fire-and-forget: the caller never waits on it, and its failure is
// invisible. On a cache miss the fetch happens synchronously.
func (f *Fetcher) CacheFirstWithRefresh(ctx context.Context, req *http.Request, store *cache.Store) (*cache.Entry, Source, error) {
	key := req.URL.String()

	if cached, err := store.Match(ctx, key); err == nil {
		f.refreshWG.Add(1)
		go f.refresh(req, store, key)
		fetchesTotal.WithLabelValues("cache_first", string(SourceCache)).Inc()
		return cached, SourceCache, nil
	}

	entry, err := f.fetch(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNetworkAndCacheMiss, err)
	}
	f.storeBestEffort(ctx, store, key, entry)
	fetchesTotal.WithLabelValues("cache_first", string(SourceNetwork)).Inc()
	return entry, SourceNetwork, nil
}

// NetworkFirstWithCacheFallback tries the network with no explicit deadline
// and falls back to the cache on any transport failure. Both missing is
// reported as ErrNetworkAndCacheMiss; for document navigations the caller
// serves the offline page in that case.
func (f *Fetcher) NetworkFirstWithCacheFallback(ctx context.Context, req *http.Request, store *cache.Store) (*cache.Entry, Source, error) {
	entry, err := f.fetch(ctx, req)
	if err == nil {
		f.storeBestEffort(ctx, store, req.URL.String(), entry)
		fetchesTotal.WithLabelValues("network_first", string(SourceNetwork)).Inc()
		return entry, SourceNetwork, nil
	}

	f.logger.Debug().
		Err(err).
		Str("url", req.URL.String()).
		Msg("Network failed, trying cache")

	if cached, cerr := store.Match(ctx, req.URL.String()); cerr == nil {
		fetchesTotal.WithLabelValues("network_first", string(SourceCache)).Inc()
		return cached, SourceCache, nil
	}

	return nil, "", fmt.Errorf("%w: %v", ErrNetworkAndCacheMiss, err)
}

// Drain blocks until all in-flight background refreshes finish. Called
// during shutdown so detached writes are not cut off mid-store.
func (f *Fetcher) Drain() {
	f.refreshWG.Wait()
}

// refresh re-fetches a cache-first entry in the background. Runs detached
// from the triggering request's context; the write always follows the read
// that triggered it, so the caller's response is never raced.
func (f *Fetcher) refresh(req *http.Request, store *cache.Store, key string) {
	defer f.refreshWG.Done()

	ctx, cancel := context.WithTimeout(context.Background(), backgroundRefreshTimeout)
	defer cancel()

	entry, err := f.fetch(ctx, req)
	if err != nil {
		backgroundRefreshTotal.WithLabelValues("error").Inc()
		f.logger.Debug().
			Err(err).
			Str("url", key).
			Msg("Background refresh failed")
		return
	}

	if !entry.Successful() {
		backgroundRefreshTotal.WithLabelValues("not_ok").Inc()
		return
	}

	f.storeBestEffort(ctx, store, key, entry)
	backgroundRefreshTotal.WithLabelValues("ok").Inc()
	f.logger.Debug().
		Str("generation", store.Name()).
		Str("url", key).
		Msg("Background refresh stored")
}

// fetch executes the request and snapshots the response. Only transport
// errors are failures here: a non-2xx response is still a response, returned
// to the caller as-is and skipped by the store.
func (f *Fetcher) fetch(ctx context.Context, req *http.Request) (*cache.Entry, error) {
	out := req.Clone(ctx)
	out.RequestURI = ""

	resp, err := f.client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("network fetch: %w", err)
	}
	defer resp.Body.Close()

	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return nil, fmt.Errorf("snapshot response: %w", err)
	}
	return entry, nil
}

// storeBestEffort writes an entry and swallows the failure: a cache write
// error must never fail the response already in hand.
func (f *Fetcher) storeBestEffort(ctx context.Context, store *cache.Store, url string, entry *cache.Entry) {
	if err := store.Put(ctx, url, entry); err != nil {
		f.logger.Warn().
			Err(err).
			Str("generation", store.Name()).
			Str("url", url).
			Msg("Cache write failed, serving response anyway")
	}
}
