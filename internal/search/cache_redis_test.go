package search

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisCacheUnavailableDegradesToMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	cache := NewRedisCache(client, time.Hour, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	cache.Set(ctx, "Heat", sampleSets("Heat"))
	if _, ok := cache.Get(ctx, "Heat"); ok {
		t.Fatal("expected miss when redis is unreachable")
	}
	cache.Clear(ctx)
}

func newIntegrationRedis(t *testing.T) *redis.Client {
	t.Helper()
	raw := os.Getenv("REDIS_TEST_URL")
	if raw == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		t.Fatalf("parse REDIS_TEST_URL: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	return client
}

func TestRedisCacheIntegrationRoundTripAndTTL(t *testing.T) {
	client := newIntegrationRedis(t)
	cache := NewRedisCache(client, time.Hour, slog.New(slog.DiscardHandler))
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return t0 }
	cache.Clear(ctx)
	t.Cleanup(func() { cache.Clear(ctx) })

	cache.Set(ctx, " Inception ", sampleSets("Inception"))

	cache.now = func() time.Time { return t0.Add(time.Hour - time.Millisecond) }
	got, ok := cache.Get(ctx, "INCEPTION")
	if !ok {
		t.Fatal("expected hit before ttl elapsed")
	}
	if len(got) != 1 || got[0].Records[0].Name != "Inception" {
		t.Fatalf("unexpected payload: %+v", got)
	}

	cache.now = func() time.Time { return t0.Add(time.Hour + time.Millisecond) }
	if _, ok := cache.Get(ctx, "inception"); ok {
		t.Fatal("expected miss after ttl elapsed")
	}
}

func TestRedisCacheIntegrationClear(t *testing.T) {
	client := newIntegrationRedis(t)
	cache := NewRedisCache(client, time.Hour, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	cache.Set(ctx, "a", sampleSets("a"))
	cache.Set(ctx, "b", sampleSets("b"))
	cache.Clear(ctx)

	if _, ok := cache.Get(ctx, "a"); ok {
		t.Fatal("expected miss after clear")
	}
	if _, ok := cache.Get(ctx, "b"); ok {
		t.Fatal("expected miss after clear")
	}
}
