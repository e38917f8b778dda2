package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"moviediscovery/searchservice/internal/metrics"
)

const (
	redisCachePrefix   = "moviesearch:titles:"
	redisClearScanSize = 200
)

type redisCacheEntry struct {
	InsertedAt time.Time   `json:"insertedAt"`
	Sets       []ResultSet `json:"sets"`
}

// RedisCache shares title results across instances. Redis expires keys on its
// own; the insertion time is checked on read as well so both backends agree on
// the TTL boundary.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger, now: time.Now}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]ResultSet, bool) {
	key = redisCachePrefix + normalizeCacheKey(key)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("title cache read failed", slog.String("error", err.Error()))
		}
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	var entry redisCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		r.logger.Warn("title cache entry unreadable", slog.String("error", err.Error()))
		_ = r.client.Del(ctx, key).Err()
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	if r.now().Sub(entry.InsertedAt) > r.ttl {
		_ = r.client.Del(ctx, key).Err()
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return entry.Sets, true
}

func (r *RedisCache) Set(ctx context.Context, key string, sets []ResultSet) {
	normalized := normalizeCacheKey(key)
	if normalized == "" {
		return
	}
	data, err := json.Marshal(redisCacheEntry{InsertedAt: r.now().UTC(), Sets: sets})
	if err != nil {
		metrics.CacheWriteFailuresTotal.Inc()
		r.logger.Warn("title cache encode failed", slog.String("key", normalized), slog.String("error", err.Error()))
		return
	}
	if err := r.client.Set(ctx, redisCachePrefix+normalized, data, r.ttl).Err(); err != nil {
		metrics.CacheWriteFailuresTotal.Inc()
		r.logger.Warn("title cache write failed", slog.String("key", normalized), slog.String("error", err.Error()))
	}
}

// Clear removes every title entry under the cache prefix.
func (r *RedisCache) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, redisCachePrefix+"*", redisClearScanSize).Iterator()
	batch := make([]string, 0, redisClearScanSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == redisClearScanSize {
			r.deleteKeys(ctx, batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("title cache scan failed", slog.String("error", err.Error()))
	}
	r.deleteKeys(ctx, batch)
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) deleteKeys(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warn("title cache clear failed", slog.String("error", err.Error()))
	}
}
