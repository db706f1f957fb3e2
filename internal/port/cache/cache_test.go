package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/forensiq/tribunal/internal/port/cache"
)

// mapCache is a reference implementation used to pin down the port
// contract: misses are ok=false with a nil error, deletes of absent
// keys succeed, and overwrites replace.
type mapCache map[string][]byte

func (m mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m[key] = value
	return nil
}

func (m mapCache) Delete(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

func TestCacheContract(t *testing.T) {
	var c cache.Cache = mapCache{}
	ctx := context.Background()

	t.Run("set then get", func(t *testing.T) {
		if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, ok, err := c.Get(ctx, "k")
		if err != nil {
			t.Fatal(err)
		}
		if !ok || string(val) != "v" {
			t.Fatalf("expected hit with v, got ok=%v val=%s", ok, val)
		}
	})

	t.Run("miss is not an error", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "absent")
		if err != nil {
			t.Fatalf("miss must not error: %v", err)
		}
		if ok {
			t.Fatal("expected miss")
		}
	})

	t.Run("delete absent key succeeds", func(t *testing.T) {
		if err := c.Delete(ctx, "never-set"); err != nil {
			t.Fatalf("deleting an absent key must not error: %v", err)
		}
	})

	t.Run("overwrite replaces", func(t *testing.T) {
		_ = c.Set(ctx, "ow", []byte("first"), time.Minute)
		_ = c.Set(ctx, "ow", []byte("second"), time.Minute)
		val, ok, _ := c.Get(ctx, "ow")
		if !ok || string(val) != "second" {
			t.Fatalf("expected second, got ok=%v val=%s", ok, val)
		}
	})
}
