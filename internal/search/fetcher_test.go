package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"moviediscovery/searchservice/internal/domain"
	"moviediscovery/searchservice/internal/providers/common"
)

func TestResolveTitlesPartialCatalogFailure(t *testing.T) {
	tmdb := failingCatalog("tmdb", common.ServiceError("tmdb", 500, "internal"))
	omdb := staticCatalog("omdb", map[string][]domain.MovieRecord{
		"X": {movie("X", "2001", "omdb"), movie("X2", "2003", "omdb")},
	})
	h := newTestHandler(DefaultConfig(), []Catalog{tmdb, omdb})

	got := h.ResolveTitles(context.Background(), []string{"X"})
	if names := names(got); !equalStrings(names, []string{"X", "X2"}) {
		t.Fatalf("expected omdb results, got %v", names)
	}
	if len(tmdb.seen()) != 1 || len(omdb.seen()) != 1 {
		t.Fatal("expected both catalogs to be queried")
	}

	cached, ok := h.cache.Get(context.Background(), "x")
	if !ok {
		t.Fatal("expected partial success to be cached")
	}
	if len(cached) != 1 || cached[0].Catalog != "omdb" {
		t.Fatalf("unexpected cached sets: %+v", cached)
	}
}

func TestResolveTitlesTotalFailureContributesNothing(t *testing.T) {
	h := newTestHandler(DefaultConfig(), []Catalog{
		failingCatalog("tmdb", errors.New("boom")),
		failingCatalog("omdb", errors.New("boom")),
	})
	got := h.ResolveTitles(context.Background(), []string{"Missing"})
	if len(got) != 0 {
		t.Fatalf("expected no results, got %v", names(got))
	}
	if _, ok := h.cache.Get(context.Background(), "Missing"); ok {
		t.Fatal("expected failed title to stay uncached")
	}
}

func TestResolveTitlesOneTitleFailingKeepsOthers(t *testing.T) {
	catalog := &fakeCatalog{name: "tmdb", search: func(_ context.Context, query string) ([]domain.MovieRecord, error) {
		if query == "Broken" {
			return nil, common.Unreachable("tmdb", errors.New("connection refused"))
		}
		return []domain.MovieRecord{movie(query, "2000", "tmdb")}, nil
	}}
	h := newTestHandler(DefaultConfig(), []Catalog{catalog})

	got := h.ResolveTitles(context.Background(), []string{"Alpha", "Broken", "Gamma"})
	if names := names(got); !equalStrings(names, []string{"Alpha", "Gamma"}) {
		t.Fatalf("unexpected results: %v", names)
	}
}

func TestResolveTitlesCatalogPanicIsIsolated(t *testing.T) {
	panicking := &fakeCatalog{name: "tmdb", search: func(context.Context, string) ([]domain.MovieRecord, error) {
		panic("nil pointer")
	}}
	omdb := staticCatalog("omdb", map[string][]domain.MovieRecord{"Heat": {movie("Heat", "1995", "omdb")}})
	h := newTestHandler(DefaultConfig(), []Catalog{panicking, omdb})

	got := h.ResolveTitles(context.Background(), []string{"Heat"})
	if names := names(got); !equalStrings(names, []string{"Heat"}) {
		t.Fatalf("unexpected results: %v", names)
	}
}

func TestResolveTitlesCacheHitSkipsCatalogs(t *testing.T) {
	catalog := staticCatalog("tmdb", map[string][]domain.MovieRecord{"Heat": {movie("Heat", "1995", "tmdb")}})
	cache := NewMemoryCache(time.Hour, 10)
	cache.Set(context.Background(), "heat", []ResultSet{{Catalog: "tmdb", Records: []domain.MovieRecord{movie("Heat", "1995", "cache")}}})
	h := newTestHandler(DefaultConfig(), []Catalog{catalog}, WithCache(cache))

	got := h.ResolveTitles(context.Background(), []string{"  Heat "})
	if len(got) != 1 || got[0].Metadata.Source != "cache" {
		t.Fatalf("expected cached record, got %+v", got)
	}
	if calls := catalog.seen(); len(calls) != 0 {
		t.Fatalf("expected no catalog calls, got %v", calls)
	}
}

func TestResolveTitlesCacheDisabledAlwaysFetches(t *testing.T) {
	var hits atomic.Int32
	catalog := &fakeCatalog{name: "tmdb", search: func(_ context.Context, query string) ([]domain.MovieRecord, error) {
		hits.Add(1)
		return []domain.MovieRecord{movie(query, "1995", "tmdb")}, nil
	}}
	cfg := DefaultConfig()
	cfg.CacheEnabled = false
	h := newTestHandler(cfg, []Catalog{catalog}, WithCache(NewMemoryCache(time.Hour, 10)))

	h.ResolveTitles(context.Background(), []string{"Heat"})
	h.ResolveTitles(context.Background(), []string{"Heat"})
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 catalog calls with cache disabled, got %d", got)
	}
}

func TestResolveTitlesRespectsConcurrencyLimit(t *testing.T) {
	var (
		inFlight atomic.Int32
		peak     atomic.Int32
	)
	catalog := &fakeCatalog{name: "tmdb", search: func(_ context.Context, query string) ([]domain.MovieRecord, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		return []domain.MovieRecord{movie(query, "2000", "tmdb")}, nil
	}}
	cfg := DefaultConfig()
	cfg.ConcurrentSearchLimit = 2
	cfg.CacheEnabled = false
	h := newTestHandler(cfg, []Catalog{catalog})

	titles := make([]string, 6)
	for i := range titles {
		titles[i] = fmt.Sprintf("Title %d", i)
	}
	got := h.ResolveTitles(context.Background(), titles)
	if len(got) != len(titles) {
		t.Fatalf("expected %d results, got %d", len(titles), len(got))
	}
	if p := peak.Load(); p > 2 {
		t.Fatalf("expected at most 2 titles in flight, observed %d", p)
	}
}

func TestResolveTitlesAdmitsInSubmissionOrder(t *testing.T) {
	catalog := &fakeCatalog{name: "tmdb", search: func(_ context.Context, query string) ([]domain.MovieRecord, error) {
		time.Sleep(2 * time.Millisecond)
		return []domain.MovieRecord{movie(query, "2000", "tmdb")}, nil
	}}
	cfg := DefaultConfig()
	cfg.ConcurrentSearchLimit = 1
	cfg.CacheEnabled = false
	h := newTestHandler(cfg, []Catalog{catalog})

	titles := []string{"E", "D", "C", "B", "A"}
	h.ResolveTitles(context.Background(), titles)
	if got := catalog.seen(); !equalStrings(got, titles) {
		t.Fatalf("expected FIFO admission %v, got %v", titles, got)
	}
}

func TestResolveTitlesOutputIndependentOfCompletionOrder(t *testing.T) {
	delays := map[string]time.Duration{"Slow": 30 * time.Millisecond, "Fast": 0}
	catalog := &fakeCatalog{name: "tmdb", search: func(_ context.Context, query string) ([]domain.MovieRecord, error) {
		time.Sleep(delays[query])
		return []domain.MovieRecord{movie(query, "2000", "tmdb")}, nil
	}}
	h := newTestHandler(DefaultConfig(), []Catalog{catalog})

	got := h.ResolveTitles(context.Background(), []string{"Slow", "Fast"})
	if names := names(got); !equalStrings(names, []string{"Slow", "Fast"}) {
		t.Fatalf("expected submission order, got %v", names)
	}
}

func TestResolveTitlesCancelledContextStopsAdmission(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	catalog := &fakeCatalog{name: "tmdb", search: func(ctx context.Context, query string) ([]domain.MovieRecord, error) {
		<-release
		return []domain.MovieRecord{movie(query, "2000", "tmdb")}, nil
	}}
	cfg := DefaultConfig()
	cfg.ConcurrentSearchLimit = 1
	cfg.CacheEnabled = false
	h := newTestHandler(cfg, []Catalog{catalog})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
		once.Do(func() { close(release) })
	}()
	got := h.ResolveTitles(ctx, []string{"First", "Second", "Third"})
	if len(got) > 1 {
		t.Fatalf("expected queued titles to be abandoned, got %v", names(got))
	}
	if calls := catalog.seen(); len(calls) != 1 || calls[0] != "First" {
		t.Fatalf("expected only the admitted title to run, got %v", calls)
	}
}

func TestResolveTitlesCancelledTitleIsNotCached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tmdbDone := make(chan struct{})
	tmdb := &fakeCatalog{name: "tmdb", search: func(_ context.Context, query string) ([]domain.MovieRecord, error) {
		defer close(tmdbDone)
		return []domain.MovieRecord{movie(query, "2010", "tmdb")}, nil
	}}
	omdb := &fakeCatalog{name: "omdb", search: func(callCtx context.Context, _ string) ([]domain.MovieRecord, error) {
		<-tmdbDone
		cancel()
		<-callCtx.Done()
		return nil, callCtx.Err()
	}}
	cache := NewMemoryCache(time.Hour, 10)
	h := newTestHandler(DefaultConfig(), []Catalog{tmdb, omdb}, WithCache(cache))

	got := h.ResolveTitles(ctx, []string{"Inception"})
	if names := names(got); !equalStrings(names, []string{"Inception"}) {
		t.Fatalf("expected the completed catalog's results, got %v", names)
	}
	if cache.Len() != 0 {
		t.Fatalf("cancelled resolution must not be cached, cache holds %d entries", cache.Len())
	}
}
