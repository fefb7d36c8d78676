package cache

import (
	"context"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBBackend stores entries in an embedded LevelDB database. Suitable
// for single-node deployments with no external services.
type LevelDBBackend struct {
	db *leveldb.DB
}

// OpenLevelDB opens (creating if necessary) a LevelDB database at path.
func OpenLevelDB(path string) (*LevelDBBackend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDBBackend{db: db}, nil
}

// Get returns the value for key, or ErrNotFound.
func (b *LevelDBBackend) Get(_ context.Context, key string) ([]byte, error) {
	data, err := b.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("leveldb get: %w", err)
	}
	return data, nil
}

// Set stores value under key.
func (b *LevelDBBackend) Set(_ context.Context, key string, value []byte) error {
	if err := b.db.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("leveldb put: %w", err)
	}
	return nil
}

// Delete removes key.
func (b *LevelDBBackend) Delete(_ context.Context, key string) error {
	if err := b.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("leveldb delete: %w", err)
	}
	return nil
}

// Keys returns all keys starting with prefix.
func (b *LevelDBBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := b.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldb iterate: %w", err)
	}
	return keys, nil
}

// DeletePrefix removes every key starting with prefix in one batch.
func (b *LevelDBBackend) DeletePrefix(_ context.Context, prefix string) (int, error) {
	batch := new(leveldb.Batch)
	iter := b.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("leveldb iterate: %w", err)
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	if err := b.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("leveldb batch delete: %w", err)
	}
	return batch.Len(), nil
}

// Close closes the database.
func (b *LevelDBBackend) Close() error {
	return b.db.Close()
}
