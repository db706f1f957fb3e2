// Package tiered composes a local and a shared cache into one. The
// completion cache uses it to pair an in-process ristretto layer with a
// cluster-wide JetStream KV layer.
package tiered

import (
	"context"
	"time"

	"github.com/forensiq/tribunal/internal/port/cache"
)

// Cache reads through the local layer first and falls back to the
// shared layer, promoting shared hits into the local layer. Writes and
// deletes go to both layers.
type Cache struct {
	local    cache.Cache
	shared   cache.Cache
	localTTL time.Duration
}

// New composes the two layers. localTTL bounds how long a promoted
// entry lives locally before the shared layer is consulted again.
func New(local, shared cache.Cache, localTTL time.Duration) *Cache {
	return &Cache{local: local, shared: shared, localTTL: localTTL}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if val, ok, err := c.local.Get(ctx, key); err != nil || ok {
		return val, ok, err
	}

	val, ok, err := c.shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	// Promote so the next lookup stays in-process.
	_ = c.local.Set(ctx, key, val, c.localTTL)
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.shared.Set(ctx, key, value, ttl)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	return c.shared.Delete(ctx, key)
}
