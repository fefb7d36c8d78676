package cache

import (
	"context"
	"errors"
)

// ErrNotFound indicates the backend holds no value for the given key.
var ErrNotFound = errors.New("key not found")

// Backend is the key-value store a Registry persists entries in.
//
// Implementations must be safe for concurrent use. Concurrent writes to the
// same key are last-write-wins; entries are idempotent snapshots of an
// external resource, never locally authored state, so no merge is needed.
type Backend interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// DeletePrefix removes every key starting with prefix and returns how
	// many were deleted.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Close releases backend resources.
	Close() error
}
