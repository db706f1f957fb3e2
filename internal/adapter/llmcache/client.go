// Package llmcache decorates an llm.Client with response caching, so
// repeated audits of the same subject reuse completions instead of paying
// for them twice.
package llmcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/forensiq/tribunal/internal/port/cache"
	"github.com/forensiq/tribunal/internal/port/llm"
)

// Client wraps an llm.Client with a cache. Cache faults are never surfaced:
// a broken cache degrades to pass-through.
type Client struct {
	inner llm.Client
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

// New builds the caching decorator.
func New(inner llm.Client, c cache.Cache, ttl time.Duration, log *slog.Logger) *Client {
	return &Client{inner: inner, cache: c, ttl: ttl, log: log}
}

// ChatCompletion returns a cached completion when the exact request was seen
// before, otherwise delegates and stores the result.
func (c *Client) ChatCompletion(ctx context.Context, req llm.Request) (*llm.Response, error) {
	key, ok := requestKey(req)
	if ok {
		if data, found, err := c.cache.Get(ctx, key); err == nil && found {
			c.log.Debug("llm cache hit", "key", key[:12])
			return &llm.Response{Content: string(data)}, nil
		}
	}

	resp, err := c.inner.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	if ok {
		if err := c.cache.Set(ctx, key, []byte(resp.Content), c.ttl); err != nil {
			c.log.Warn("llm cache store failed", "error", err)
		}
	}
	return resp, nil
}

// requestKey hashes the full request. A request that cannot be marshaled is
// simply not cached. The "llm." prefix keeps the key inside the JetStream KV
// key grammar, which allows dots but not colons.
func requestKey(req llm.Request) (string, bool) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return "llm." + hex.EncodeToString(sum[:]), true
}
