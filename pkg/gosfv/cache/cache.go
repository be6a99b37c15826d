// Package cache provides a Badger DB-backed digest cache. A file whose
// size and mtime are unchanged since its digest was recorded is unchanged
// for integrity purposes, so re-runs over large trees skip the read
// entirely for files the cache still vouches for.
package cache

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/Wishwanderer/gosfv/pkg/gosfv/types"
)

// Cache is the digest cache. Safe for concurrent use.
type Cache struct {
	db *badger.DB
}

// Open opens or creates a cache at the given directory.
func Open(path string) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logging is noise here.

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening digest cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.db.Close()
}

// key is "<alg>:<path>". One entry per algorithm per file, so switching
// algorithms never serves a stale digest of the wrong width.
func key(alg types.Algorithm, path string) []byte {
	return []byte(alg.String() + ":" + path)
}

// value layout: size int64 | mtime int64 | digest bytes, all big-endian.
const valueHeader = 16

// Lookup returns the cached digest for the file if one was recorded for
// the same (size, mtime) pair. The second return is false on miss.
func (c *Cache) Lookup(alg types.Algorithm, path string, size, mtime int64) (types.Digest, bool) {
	var d types.Digest

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(alg, path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) < valueHeader {
				return badger.ErrKeyNotFound
			}
			if int64(binary.BigEndian.Uint64(val[0:8])) != size ||
				int64(binary.BigEndian.Uint64(val[8:16])) != mtime {
				return badger.ErrKeyNotFound
			}
			d = append(types.Digest(nil), val[valueHeader:]...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	if len(d) != alg.DigestSize() {
		return nil, false
	}
	return d, true
}

// Store records a freshly computed digest against the file's current size
// and mtime.
func (c *Cache) Store(alg types.Algorithm, path string, size, mtime int64, d types.Digest) error {
	val := make([]byte, valueHeader+len(d))
	binary.BigEndian.PutUint64(val[0:8], uint64(size))
	binary.BigEndian.PutUint64(val[8:16], uint64(mtime))
	copy(val[valueHeader:], d)

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(alg, path), val)
	})
}

// Forget drops the entry for a file, if present.
func (c *Cache) Forget(alg types.Algorithm, path string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(alg, path))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}
