package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"moviediscovery/searchservice/internal/domain"
	"moviediscovery/searchservice/internal/metrics"
)

// ResolveTitles looks every title up in the cache and, on a miss, in all
// catalogs, then merges the outcome. At most ConcurrentSearchLimit titles are
// in flight; the rest wait and are admitted in submission order.
func (h *QueryHandler) ResolveTitles(ctx context.Context, titles []string) []domain.MovieRecord {
	perTitle := h.resolveResultSets(ctx, titles)
	sets := make([][]domain.MovieRecord, 0, len(perTitle)*len(h.catalogs))
	for _, titleSets := range perTitle {
		for _, set := range titleSets {
			sets = append(sets, set.Records)
		}
	}
	return MergeDedupResults(sets)
}

func (h *QueryHandler) resolveResultSets(ctx context.Context, titles []string) [][]ResultSet {
	results := make([][]ResultSet, len(titles))
	if len(titles) == 0 || len(h.catalogs) == 0 {
		return results
	}

	sem := semaphore.NewWeighted(int64(h.cfg.ConcurrentSearchLimit))
	var wg sync.WaitGroup
	for index, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		// Acquire in the submit loop so admission follows submission order.
		if err := sem.Acquire(ctx, 1); err != nil {
			h.logger.Warn("title resolution abandoned",
				slog.Int("pending", len(titles)-index),
				slog.String("error", err.Error()),
			)
			break
		}
		wg.Add(1)
		metrics.FetcherInFlight.Inc()
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			defer metrics.FetcherInFlight.Dec()
			results[index] = h.resolveTitle(ctx, title)
		}()
	}
	wg.Wait()
	return results
}

// resolveTitle queries every catalog independently and waits for all of them.
// One catalog failing never cancels the others.
func (h *QueryHandler) resolveTitle(ctx context.Context, title string) []ResultSet {
	if h.cache != nil {
		if cached, ok := h.cache.Get(ctx, title); ok {
			return cached
		}
	}

	start := h.now()
	sets := make([]ResultSet, len(h.catalogs))
	errs := make([]error, len(h.catalogs))
	var wg sync.WaitGroup
	for index, guard := range h.catalogs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if recovered := recover(); recovered != nil {
					errs[index] = fmt.Errorf("%s: catalog panic: %v", guard.name, recovered)
				}
			}()
			records, err := guard.search(ctx, title)
			if err != nil {
				errs[index] = err
				return
			}
			sets[index] = ResultSet{Catalog: guard.name, Records: records}
		}()
	}
	wg.Wait()

	succeeded := make([]ResultSet, 0, len(h.catalogs))
	failures := make([]slog.Attr, 0, len(h.catalogs))
	for index, guard := range h.catalogs {
		if errs[index] != nil {
			failures = append(failures, slog.String(guard.name, errs[index].Error()))
			continue
		}
		succeeded = append(succeeded, sets[index])
	}

	if len(succeeded) == 0 {
		h.logger.Warn("title resolution failed on every catalog",
			slog.String("title", truncateQuery(title)),
			slog.Int64("elapsedMs", h.now().Sub(start).Milliseconds()),
			slog.Any("errors", slog.GroupValue(failures...)),
		)
		return nil
	}
	if len(failures) > 0 {
		h.logger.Warn("title resolution partially failed",
			slog.String("title", truncateQuery(title)),
			slog.Any("errors", slog.GroupValue(failures...)),
		)
	}
	// A cancelled resolution may be missing catalogs that were cut short.
	if h.cache != nil && ctx.Err() == nil {
		h.cache.Set(ctx, title, succeeded)
	}
	return succeeded
}
