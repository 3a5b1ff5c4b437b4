// Package cachetest provides a behavior suite shared by cache adapters.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/PertForge/internal/port/cache"
)

// Run exercises c against the cache.Cache contract. settle is called after
// every write for adapters that apply writes asynchronously; it may be nil.
func Run(t *testing.T, c cache.Cache, settle func()) {
	t.Helper()
	ctx := context.Background()
	if settle == nil {
		settle = func() {}
	}

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "schedule:abc", []byte(`{"order":["A"]}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		settle()
		val, found, err := c.Get(ctx, "schedule:abc")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected hit after Set")
		}
		if string(val) != `{"order":["A"]}` {
			t.Fatalf("unexpected value %s", val)
		}
	})

	t.Run("Miss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "schedule:missing")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "schedule:del", []byte("x"), time.Minute)
		settle()
		if err := c.Delete(ctx, "schedule:del"); err != nil {
			t.Fatal(err)
		}
		settle()
		if _, found, _ := c.Get(ctx, "schedule:del"); found {
			t.Fatal("expected miss after Delete")
		}
		if err := c.Delete(ctx, "schedule:never"); err != nil {
			t.Fatalf("deleting a missing key: %v", err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "schedule:ow", []byte("v1"), time.Minute)
		settle()
		_ = c.Set(ctx, "schedule:ow", []byte("v2"), time.Minute)
		settle()
		val, found, err := c.Get(ctx, "schedule:ow")
		if err != nil || !found {
			t.Fatalf("expected hit, got found=%v err=%v", found, err)
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2, got %s", val)
		}
	})
}
