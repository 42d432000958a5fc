package analysis

import (
	"sync"
	"testing"
	"time"
)

func TestCacheTTLBoundary(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(WithClock(func() time.Time { return now }))

	c.Put("k", Result{Summary: "s"})

	now = now.Add(23*time.Hour + 59*time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected entry at T+23h59m")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry to expire at T+24h01m")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be evicted on read, len=%d", c.Len())
	}
}

func TestCachePutOverwrites(t *testing.T) {
	c := NewCache(WithTTL(time.Minute))
	c.Put("k", Result{Summary: "first"})
	c.Put("k", Result{Summary: "second"})
	got, ok := c.Get("k")
	if !ok || got.Summary != "second" {
		t.Fatalf("expected overwrite, got %+v ok=%v", got, ok)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key([]string{"a", "b", "c", "d"}[i%4])
			c.Put(key, Result{Summary: string(key)})
			if got, ok := c.Get(key); ok && got.Summary != string(key) {
				t.Errorf("torn read for %s: %+v", key, got)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 4 {
		t.Fatalf("expected 4 keys, got %d", c.Len())
	}
}

func TestNilCacheLen(t *testing.T) {
	var c *Cache
	if c.Len() != 0 {
		t.Fatalf("nil cache should be empty")
	}
}
