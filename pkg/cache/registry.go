package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the generation
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Registry owns the mapping from generation names to their backing store.
type Registry struct {
	backend Backend
	logger  zerolog.Logger
}

// NewRegistry creates a cache registry over the given backend.
func NewRegistry(backend Backend) *Registry {
	if backend == nil {
		panic("backend cannot be nil")
	}
	return &Registry{
		backend: backend,
		logger:  log.With().Str("component", "cache-registry").Logger(),
	}
}

// Open returns the store for the named generation. The operation is
// idempotent: generations exist implicitly as key namespaces, so opening an
// absent generation simply yields an empty store.
func (r *Registry) Open(name string) *Store {
	return &Store{registry: r, name: name}
}

// Generations enumerates the names of all generations with at least one entry.
func (r *Registry) Generations(ctx context.Context) ([]string, error) {
	keys, err := r.backend.Keys(ctx, keyPrefix+":")
	if err != nil {
		CacheErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("list generations: %w", err)
	}

	seen := make(map[string]struct{})
	var names []string
	for _, key := range keys {
		name := generationFromKey(key)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// EntryCounts returns the number of stored entries per generation.
// Diagnostics only; the counts may be stale by the time they are read.
func (r *Registry) EntryCounts(ctx context.Context) (map[string]int, error) {
	keys, err := r.backend.Keys(ctx, keyPrefix+":")
	if err != nil {
		CacheErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("count entries: %w", err)
	}

	counts := make(map[string]int)
	for _, key := range keys {
		if name := generationFromKey(key); name != "" {
			counts[name]++
		}
	}
	return counts, nil
}

// DeleteGenerationsNotIn removes every generation whose name is not in keep.
// Called once at activation; irreversible. Individual delete failures are
// collected rather than aborting the sweep, so one bad generation cannot
// keep the rest alive.
func (r *Registry) DeleteGenerationsNotIn(ctx context.Context, keep map[string]struct{}) ([]string, error) {
	names, err := r.Generations(ctx)
	if err != nil {
		return nil, err
	}

	var deleted []string
	var errs []error
	for _, name := range names {
		if _, ok := keep[name]; ok {
			continue
		}
		n, err := r.backend.DeletePrefix(ctx, generationPrefix(name))
		if err != nil {
			CacheErrors.WithLabelValues("delete").Inc()
			errs = append(errs, fmt.Errorf("delete generation %s: %w", name, err))
			continue
		}
		GenerationsDeleted.Inc()
		deleted = append(deleted, name)
		r.logger.Info().
			Str("generation", name).
			Int("entries", n).
			Msg("Deleted stale generation")
	}
	return deleted, errors.Join(errs...)
}

// DeleteGeneration removes every entry in one generation. Used to roll back
// a partially committed install.
func (r *Registry) DeleteGeneration(ctx context.Context, name string) (int, error) {
	n, err := r.backend.DeletePrefix(ctx, generationPrefix(name))
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("delete generation %s: %w", name, err)
	}
	return n, nil
}

// PurgeAll removes every entry in every generation.
func (r *Registry) PurgeAll(ctx context.Context) (int, error) {
	n, err := r.backend.DeletePrefix(ctx, keyPrefix+":")
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("purge all: %w", err)
	}
	return n, nil
}

// Close releases the underlying backend.
func (r *Registry) Close() error {
	return r.backend.Close()
}

// Store is a view onto one generation's entries.
type Store struct {
	registry *Registry
	name     string
}

// Name returns the generation name this store reads and writes.
func (s *Store) Name() string {
	return s.name
}

// Put stores a response snapshot under the normalized request URL,
// overwriting any existing entry. Snapshots of non-2xx responses are
// silently skipped: only successful responses are ever stored.
func (s *Store) Put(ctx context.Context, rawURL string, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if !entry.Successful() {
		return nil
	}

	key, err := NormalizeKey(rawURL)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return err
	}

	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.registry.backend.Set(ctx, storageKey(s.name, key), data); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("store entry: %w", err)
	}

	s.registry.logger.Debug().
		Str("generation", s.name).
		Str("url", key).
		Int("bytes", len(entry.Data)).
		Msg("Stored cache entry")

	return nil
}

// Match returns the entry stored for the normalized request URL. Only this
// generation is searched, never any other, so a stale static snapshot can
// never answer a dynamic API key. Returns ErrCacheMiss when absent.
func (s *Store) Match(ctx context.Context, rawURL string) (*Entry, error) {
	key, err := NormalizeKey(rawURL)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, err
	}

	data, err := s.registry.backend.Get(ctx, storageKey(s.name, key))
	if err != nil {
		if err == ErrNotFound {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("load entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues(s.name).Inc()
	return &entry, nil
}

// Delete removes the entry for the normalized request URL.
func (s *Store) Delete(ctx context.Context, rawURL string) error {
	key, err := NormalizeKey(rawURL)
	if err != nil {
		return err
	}
	if err := s.registry.backend.Delete(ctx, storageKey(s.name, key)); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}
