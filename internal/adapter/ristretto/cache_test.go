package ristretto

import (
	"context"
	"testing"
	"time"
)

// newTestCache returns a small cache; Wait flushes ristretto's async
// set buffer so reads observe prior writes.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(1 << 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c.c.Wait()

	got, ok, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected hit, got miss")
	}
	if string(got) != "v1" {
		t.Errorf("got %q, want %q", got, "v1")
	}
}

func TestCacheMiss(t *testing.T) {
	c := newTestCache(t)

	_, ok, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected miss for absent key")
	}
}

func TestCacheDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c.c.Wait()

	if err := c.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	c.c.Wait()

	if _, ok, _ := c.Get(ctx, "k1"); ok {
		t.Error("expected miss after delete")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c.c.Wait()

	time.Sleep(50 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "k1"); ok {
		t.Error("expected miss after TTL expiry")
	}
}

func TestCacheOverwrite(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("old"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c.c.Wait()
	if err := c.Set(ctx, "k1", []byte("new"), time.Minute); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	c.c.Wait()

	got, ok, _ := c.Get(ctx, "k1")
	if !ok {
		t.Fatal("expected hit after overwrite")
	}
	if string(got) != "new" {
		t.Errorf("got %q, want %q", got, "new")
	}
}
