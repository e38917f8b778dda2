package search

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"moviediscovery/searchservice/internal/domain"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func sampleSets(name string) []ResultSet {
	return []ResultSet{{Catalog: "tmdb", Records: []domain.MovieRecord{{Name: name, YearReleased: "2010", Cast: []string{"A"}}}}}
}

func TestMemoryCacheTTLBoundary(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Hour
	clock := &manualClock{now: t0}
	cache := NewMemoryCache(ttl, 10, WithClock(clock.Now))
	ctx := context.Background()

	cache.Set(ctx, "Inception", sampleSets("Inception"))

	clock.Set(t0.Add(ttl - time.Millisecond))
	if _, ok := cache.Get(ctx, "Inception"); !ok {
		t.Fatal("expected entry before ttl elapsed")
	}

	clock.Set(t0.Add(ttl + time.Millisecond))
	if _, ok := cache.Get(ctx, "Inception"); ok {
		t.Fatal("expected entry to expire after ttl")
	}
	if cache.Len() != 0 {
		t.Fatalf("expected expired entry to be deleted, len=%d", cache.Len())
	}
}

func TestMemoryCacheNormalizesKeys(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 10)
	ctx := context.Background()

	cache.Set(ctx, "  The Matrix ", sampleSets("The Matrix"))
	got, ok := cache.Get(ctx, "the matrix")
	if !ok {
		t.Fatal("expected normalized key hit")
	}
	if len(got) != 1 || got[0].Records[0].Name != "The Matrix" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if _, ok := cache.Get(ctx, "THE MATRIX\t"); !ok {
		t.Fatal("expected case and whitespace insensitive hit")
	}
}

func TestMemoryCacheIgnoresBlankKey(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 10)
	cache.Set(context.Background(), "   ", sampleSets("x"))
	if cache.Len() != 0 {
		t.Fatal("expected blank key to be ignored")
	}
}

func TestMemoryCacheClear(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 10)
	ctx := context.Background()
	cache.Set(ctx, "a", sampleSets("a"))
	cache.Set(ctx, "b", sampleSets("b"))

	cache.Clear(ctx)
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache, len=%d", cache.Len())
	}
	if _, ok := cache.Get(ctx, "a"); ok {
		t.Fatal("expected miss after clear")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 2)
	ctx := context.Background()
	cache.Set(ctx, "a", sampleSets("a"))
	cache.Set(ctx, "b", sampleSets("b"))
	cache.Get(ctx, "a")
	cache.Set(ctx, "c", sampleSets("c"))

	if _, ok := cache.Get(ctx, "b"); ok {
		t.Fatal("expected least recently used entry to be evicted")
	}
	if _, ok := cache.Get(ctx, "a"); !ok {
		t.Fatal("expected recently read entry to survive")
	}
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 10)
	ctx := context.Background()
	sets := sampleSets("Heat")
	cache.Set(ctx, "heat", sets)
	sets[0].Records[0].Cast[0] = "mutated before read"

	got, _ := cache.Get(ctx, "heat")
	got[0].Records[0].Cast[0] = "mutated after read"

	again, _ := cache.Get(ctx, "heat")
	if again[0].Records[0].Cast[0] != "A" {
		t.Fatalf("cache payload aliased caller data: %q", again[0].Records[0].Cast[0])
	}
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 50)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("title-%d", i%5)
			cache.Set(ctx, key, sampleSets(key))
			cache.Get(ctx, key)
		}()
	}
	wg.Wait()
	if cache.Len() != 5 {
		t.Fatalf("expected 5 entries, got %d", cache.Len())
	}
}
