// Package natskv backs the cache port with a JetStream KeyValue bucket,
// the cluster-shared layer of the completion cache. Every API replica
// sees the same entries, so a prompt answered once is answered for all.
package natskv

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Cache adapts a JetStream KV bucket to the cache port.
type Cache struct {
	kv jetstream.KeyValue
}

// New wraps an existing KV bucket. Expiry is configured on the bucket
// itself, so per-entry TTLs passed to Set are ignored.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.Value(), true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := c.kv.Put(ctx, key, value)
	return err
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.kv.Delete(ctx, key); !errors.Is(err, jetstream.ErrKeyNotFound) {
		return err
	}
	return nil
}
