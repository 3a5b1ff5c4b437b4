// Package ristretto implements the cache port with an in-process
// dgraph-io/ristretto cache (L1).
package ristretto

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// avgEntryBytes is the expected size of a cached schedule, used to size the
// admission counters.
const avgEntryBytes = 4 << 10

// Cache is a size-bounded L1 cache. Writes are applied before Set returns.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a cache holding at most maxSizeMB megabytes of values.
func New(maxSizeMB int64) (*Cache, error) {
	if maxSizeMB < 1 {
		return nil, errors.New("ristretto: max size must be >= 1 MB")
	}
	maxCost := maxSizeMB << 20
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10 * (maxCost / avgEntryBytes),
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores value with the given TTL. A zero TTL never expires. Values the
// admission policy rejects are silently not cached.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.c.SetWithTTL(key, value, int64(len(value)), ttl) {
		c.c.Wait()
	}
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Close stops the cache's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
