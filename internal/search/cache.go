package search

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"moviediscovery/searchservice/internal/domain"
	"moviediscovery/searchservice/internal/metrics"
)

const (
	defaultCacheTTL        = 4 * time.Hour
	defaultCacheMaxEntries = 1000
)

// ResultSet is one catalog's answer for one title.
type ResultSet struct {
	Catalog string               `json:"catalog"`
	Records []domain.MovieRecord `json:"records"`
}

// Cache stores resolved title results. Keys are normalized by the
// implementation; writes are best effort and never fail the caller.
type Cache interface {
	Get(ctx context.Context, key string) ([]ResultSet, bool)
	Set(ctx context.Context, key string, sets []ResultSet)
	Clear(ctx context.Context)
}

func normalizeCacheKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

type memoryEntry struct {
	sets       []ResultSet
	insertedAt time.Time
}

// MemoryCache is a size-bounded in-process cache. Expiry is checked lazily on
// read: an entry older than the TTL is deleted and reported as absent.
type MemoryCache struct {
	entries *lru.Cache[string, memoryEntry]
	ttl     time.Duration
	now     func() time.Time
}

type MemoryCacheOption func(*MemoryCache)

func WithClock(now func() time.Time) MemoryCacheOption {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

func NewMemoryCache(ttl time.Duration, maxEntries int, opts ...MemoryCacheOption) *MemoryCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, memoryEntry](maxEntries)
	cache := &MemoryCache{
		entries: entries,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]ResultSet, bool) {
	key = normalizeCacheKey(key)
	entry, ok := c.entries.Get(key)
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	if c.now().Sub(entry.insertedAt) > c.ttl {
		c.entries.Remove(key)
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return cloneResultSets(entry.sets), true
}

func (c *MemoryCache) Set(_ context.Context, key string, sets []ResultSet) {
	key = normalizeCacheKey(key)
	if key == "" {
		return
	}
	c.entries.Add(key, memoryEntry{sets: cloneResultSets(sets), insertedAt: c.now()})
}

func (c *MemoryCache) Clear(_ context.Context) {
	c.entries.Purge()
}

func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

func cloneResultSets(sets []ResultSet) []ResultSet {
	if sets == nil {
		return nil
	}
	out := make([]ResultSet, len(sets))
	for i, set := range sets {
		out[i] = ResultSet{Catalog: set.Catalog, Records: domain.CloneMovies(set.Records)}
	}
	return out
}
