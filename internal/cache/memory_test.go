// internal/cache/memory_test.go
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/wishlink/wishlink/pkg/api"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	product := &api.Product{Title: "Widget", Price: "9.99", Currency: "EUR"}

	t.Run("miss returns nil nil", func(t *testing.T) {
		got, err := c.Get(ctx, "https://shop.pt/missing")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Fatalf("expected miss, got %+v", got)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		if err := c.Set(ctx, "https://shop.pt/p1", product, time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := c.Get(ctx, "https://shop.pt/p1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got == nil || got.Title != "Widget" {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("returned product is a copy", func(t *testing.T) {
		got, _ := c.Get(ctx, "https://shop.pt/p1")
		got.Title = "mutated"

		again, _ := c.Get(ctx, "https://shop.pt/p1")
		if again.Title != "Widget" {
			t.Errorf("cache entry was mutated through the returned pointer")
		}
	})

	t.Run("expired entry misses", func(t *testing.T) {
		if err := c.Set(ctx, "https://shop.pt/p2", product, 10*time.Millisecond); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		time.Sleep(30 * time.Millisecond)
		got, err := c.Get(ctx, "https://shop.pt/p2")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Fatalf("expected expiry, got %+v", got)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := c.Delete(ctx, "https://shop.pt/p1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		got, _ := c.Get(ctx, "https://shop.pt/p1")
		if got != nil {
			t.Fatalf("expected deletion, got %+v", got)
		}
	})
}
