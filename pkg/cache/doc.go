// Package cache implements the generation-based page-asset cache registry.
//
// Responses are stored as immutable snapshots inside named generations. A
// generation is a versioned store (for example "static-v3") that is created
// on install, superseded wholesale by the next deploy, and deleted during
// activation of its successor. Entries are never mutated in place; a
// background refresh overwrites the whole snapshot.
//
// # Basic Usage
//
//	backend, err := cache.OpenLevelDB("/var/lib/sitecache")
//	if err != nil {
//		return err
//	}
//	registry := cache.NewRegistry(backend)
//
//	store := registry.Open(cache.GenerationName(cache.PurposeStatic, "v3"))
//
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//	if err := store.Put(ctx, req.URL.String(), entry); err != nil {
//		// Cache writes are best-effort; log and continue.
//	}
//
//	entry, err = store.Match(ctx, req.URL.String())
//	if err == cache.ErrCacheMiss {
//		// Fall through to the network.
//	}
//
// # Generations
//
// At most one generation per purpose (static, dynamic, api) is current at
// any time. Activation calls DeleteGenerationsNotIn with the current
// version's generation set; everything else is removed. Match never searches
// across generations, so a stale static snapshot can never answer a dynamic
// API key.
//
// # Backends
//
// Two backends implement the same Backend interface: Redis for shared
// deployments and embedded LevelDB for single-node installs. Unit tests run
// against LevelDB in a temp directory; Redis tests skip when no server is
// reachable.
//
// # Metrics
//
// The registry exports Prometheus metrics:
//
//   - sitecache_cache_hits_total{generation} - Cache hits
//   - sitecache_cache_misses_total - Cache misses
//   - sitecache_cache_errors_total{operation} - Cache operation errors
//   - sitecache_generations_deleted_total - Generations removed at activation
package cache
