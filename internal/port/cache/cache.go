// Package cache defines the port for byte-value caching. Its main
// consumer is the LLM completion cache, which keeps repeated detective
// and judge prompts from hitting the gateway twice.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys. Get reports a miss
// with ok=false rather than an error, so callers can treat misses as the
// normal path.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
