package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"moviediscovery/searchservice/internal/domain"
	"moviediscovery/searchservice/internal/metrics"
	"moviediscovery/searchservice/internal/providers/common"
)

const (
	breakerMinRequests  = 10
	breakerFailureRatio = 0.6
	breakerHalfOpenMax  = 3
	breakerInterval     = time.Minute
	breakerOpenTimeout  = time.Minute
	defaultCallTimeout  = 30 * time.Second
)

// LimiterSettings configures the outbound token bucket applied per catalog.
// A zero RPS disables limiting.
type LimiterSettings struct {
	RPS   float64
	Burst int
}

type catalogHealth struct {
	consecutiveFailures int
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastQuery           string
	totalRequests       int64
	totalFailures       int64
	rateLimited         int64
}

// catalogGuard wraps one catalog with an outbound limiter, a circuit breaker,
// bounded retry and a per-call timeout, and keeps health counters for
// diagnostics.
type catalogGuard struct {
	catalog Catalog
	name    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]domain.MovieRecord]
	retry   RetryConfig
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	health catalogHealth
}

func newCatalogGuard(catalog Catalog, limits LimiterSettings, retry RetryConfig, timeout time.Duration, logger *slog.Logger) *catalogGuard {
	name := strings.ToLower(strings.TrimSpace(catalog.Name()))
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	guard := &catalogGuard{
		catalog: catalog,
		name:    name,
		retry:   retry,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
	if limits.RPS > 0 {
		burst := limits.Burst
		if burst <= 0 {
			burst = 1
		}
		guard.limiter = rate.NewLimiter(rate.Limit(limits.RPS), burst)
	}
	guard.breaker = gobreaker.NewCircuitBreaker[[]domain.MovieRecord](gobreaker.Settings{
		Name:        name,
		MaxRequests: breakerHalfOpenMax,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the catalog.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CatalogBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logger.Warn("catalog breaker state changed",
				slog.String("catalog", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	metrics.CatalogBreakerState.WithLabelValues(name).Set(0)
	return guard
}

func (g *catalogGuard) search(ctx context.Context, query string) ([]domain.MovieRecord, error) {
	start := g.now()
	var records []domain.MovieRecord
	err := RetryWithBackoff(ctx, g.retry, func() error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		out, err := g.breaker.Execute(func() ([]domain.MovieRecord, error) {
			callCtx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()
			return g.catalog.Search(callCtx, query)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return common.Unreachable(g.name, err)
		}
		records = out
		return err
	})
	g.record(query, err, g.now().Sub(start))
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.MovieRecord{}
	}
	return records, nil
}

func (g *catalogGuard) record(query string, err error, latency time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := &g.health
	state.totalRequests++
	state.lastQuery = strings.TrimSpace(query)
	if latency > 0 {
		state.lastLatency = latency
		metrics.CatalogRequestDuration.WithLabelValues(g.name).Observe(latency.Seconds())
	}

	if err == nil {
		state.consecutiveFailures = 0
		state.lastError = ""
		state.lastSuccessAt = g.now()
		metrics.CatalogRequestsTotal.WithLabelValues(g.name, "ok").Inc()
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = g.now()
	state.lastError = diagnosticError(err)

	status := "error"
	switch {
	case common.IsRateLimited(err):
		status = "rate_limited"
		state.rateLimited++
	case isTimeoutLikeError(err):
		status = "timeout"
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		status = "breaker_open"
	}
	metrics.CatalogRequestsTotal.WithLabelValues(g.name, status).Inc()
}

func (g *catalogGuard) diagnostics() domain.CatalogDiagnostics {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.health
	item := domain.CatalogDiagnostics{
		Name:                g.name,
		Enabled:             true,
		BreakerState:        g.breaker.State().String(),
		ConsecutiveFailures: state.consecutiveFailures,
		LastError:           state.lastError,
		LastLatencyMS:       state.lastLatency.Milliseconds(),
		LastQuery:           state.lastQuery,
		TotalRequests:       state.totalRequests,
		TotalFailures:       state.totalFailures,
		RateLimitedCount:    state.rateLimited,
	}
	if !state.lastSuccessAt.IsZero() {
		lastSuccessAt := state.lastSuccessAt
		item.LastSuccessAt = &lastSuccessAt
	}
	if !state.lastFailureAt.IsZero() {
		lastFailureAt := state.lastFailureAt
		item.LastFailureAt = &lastFailureAt
	}
	return item
}

// diagnosticError is the form of err published on the health endpoint. Raw
// upstream payloads and request URLs stay in the logs.
func diagnosticError(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit breaker open"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case isTimeoutLikeError(err):
		return "timeout"
	}
	if upstream, ok := common.AsUpstream(err); ok {
		return upstream.Summary()
	}
	return "catalog error"
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

type guardedCatalog struct {
	guard *catalogGuard
}

func (c guardedCatalog) Name() string { return c.guard.name }

func (c guardedCatalog) Search(ctx context.Context, query string) ([]domain.MovieRecord, error) {
	return c.guard.search(ctx, query)
}

// GuardedCatalog returns a registered catalog wrapped in the same limiter,
// breaker and health accounting the fetcher uses. Errors keep their upstream
// type.
func (h *QueryHandler) GuardedCatalog(name string) (Catalog, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, guard := range h.catalogs {
		if guard.name == name {
			return guardedCatalog{guard: guard}, true
		}
	}
	return nil, false
}

// CatalogDiagnostics reports the health of every configured catalog in
// registration order.
func (h *QueryHandler) CatalogDiagnostics() []domain.CatalogDiagnostics {
	items := make([]domain.CatalogDiagnostics, 0, len(h.catalogs))
	for _, guard := range h.catalogs {
		items = append(items, guard.diagnostics())
	}
	return items
}
