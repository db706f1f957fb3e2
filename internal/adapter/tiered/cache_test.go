package tiered_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forensiq/tribunal/internal/adapter/tiered"
)

type mapCache struct {
	data   map[string][]byte
	getErr error
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mapCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestLocalHitSkipsShared(t *testing.T) {
	local, shared := newMapCache(), newMapCache()
	shared.getErr = errors.New("shared layer must not be consulted")
	c := tiered.New(local, shared, 5*time.Minute)

	local.data["k"] = []byte("v")

	val, ok, err := c.Get(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(val) != "v" {
		t.Fatalf("expected local hit with v, got ok=%v val=%s", ok, val)
	}
}

func TestSharedHitPromotesToLocal(t *testing.T) {
	local, shared := newMapCache(), newMapCache()
	c := tiered.New(local, shared, 5*time.Minute)

	shared.data["k"] = []byte("v")

	val, ok, err := c.Get(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(val) != "v" {
		t.Fatalf("expected shared hit with v, got ok=%v val=%s", ok, val)
	}
	if got := string(local.data["k"]); got != "v" {
		t.Fatalf("expected promotion into local layer, got %q", got)
	}
}

func TestMissInBothLayers(t *testing.T) {
	c := tiered.New(newMapCache(), newMapCache(), 5*time.Minute)

	_, ok, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestSharedErrorSurfaces(t *testing.T) {
	local, shared := newMapCache(), newMapCache()
	shared.getErr = errors.New("kv unavailable")
	c := tiered.New(local, shared, 5*time.Minute)

	_, _, err := c.Get(context.Background(), "k")
	if err == nil {
		t.Fatal("expected shared layer error to surface")
	}
}

func TestSetWritesBothLayers(t *testing.T) {
	local, shared := newMapCache(), newMapCache()
	c := tiered.New(local, shared, 5*time.Minute)

	if err := c.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := local.data["k"]; !ok {
		t.Fatal("expected key in local layer")
	}
	if _, ok := shared.data["k"]; !ok {
		t.Fatal("expected key in shared layer")
	}
}

func TestDeleteRemovesBothLayers(t *testing.T) {
	local, shared := newMapCache(), newMapCache()
	c := tiered.New(local, shared, 5*time.Minute)

	local.data["k"] = []byte("v")
	shared.data["k"] = []byte("v")

	if err := c.Delete(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok := local.data["k"]; ok {
		t.Fatal("expected key removed from local layer")
	}
	if _, ok := shared.data["k"]; ok {
		t.Fatal("expected key removed from shared layer")
	}
}
