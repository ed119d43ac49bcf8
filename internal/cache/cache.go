// Package cache provides a small bbolt-backed cache for derived views
// (autotune mining, regime attribution) so unchanged artifacts are not
// re-parsed on every request.
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// derivedBucket holds every cached derived view, JSON-encoded.
const derivedBucket = "derived"

// Cache is a key-value cache of JSON-encoded derived results.
type Cache struct {
	db *bolt.DB
}

// Open creates or opens the cache file at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(derivedBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}

	return &Cache{db: db}, nil
}

// Key derives a cache key from an artifact path and its modification time,
// so a rewritten artifact naturally misses.
func Key(kind, path string, mtime time.Time) string {
	return fmt.Sprintf("%s:%s@%d", kind, path, mtime.UnixNano())
}

// Get unmarshals a cached value into v. Returns false on miss or decode
// failure (a corrupt entry behaves like a miss).
func (c *Cache) Get(key string, v any) bool {
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket([]byte(derivedBucket)).Get([]byte(key)); raw != nil {
			data = append(data, raw...)
		}
		return nil
	})
	if err != nil || data == nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// Put stores a JSON-encoded value under key.
func (c *Cache) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(derivedBucket)).Put([]byte(key), data)
	})
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
