package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"moviediscovery/searchservice/internal/domain"
	"moviediscovery/searchservice/internal/metrics"
)

var (
	ErrInvalidQuery   = errors.New("query is required")
	ErrLLMUnavailable = errors.New("language model is not configured")
)

const (
	defaultMaxTitles     = 8
	defaultConcurrency   = 8
	historySaveTimeout   = 5 * time.Second
	maxLoggedQueryLength = 80
)

// LLM is a free-text completion service. Its output carries no structure
// guarantee and is parsed defensively.
type LLM interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Catalog is an external movie catalog adapter. "No results" is an empty
// slice, never an error.
type Catalog interface {
	Name() string
	Search(ctx context.Context, query string) ([]domain.MovieRecord, error)
}

// HistoryRecorder persists a search-history entry.
type HistoryRecorder interface {
	Save(ctx context.Context, userID, query string, movie domain.MovieRecord, kind domain.HistoryKind) (domain.HistoryEntry, error)
}

// Config is fixed for the lifetime of a QueryHandler. To change it, build a
// new handler.
type Config struct {
	MaxTitlesToSearch     int
	CacheTTL              time.Duration
	ConcurrentSearchLimit int
	CacheEnabled          bool
}

func DefaultConfig() Config {
	return Config{
		MaxTitlesToSearch:     defaultMaxTitles,
		CacheTTL:              defaultCacheTTL,
		ConcurrentSearchLimit: defaultConcurrency,
		CacheEnabled:          true,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxTitlesToSearch <= 0 {
		c.MaxTitlesToSearch = defaultMaxTitles
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.ConcurrentSearchLimit <= 0 {
		c.ConcurrentSearchLimit = defaultConcurrency
	}
	return c
}

type QueryHandler struct {
	cfg         Config
	llm         LLM
	catalogs    []*catalogGuard
	cache       Cache
	history     HistoryRecorder
	logger      *slog.Logger
	retry       RetryConfig
	limits      LimiterSettings
	callTimeout time.Duration
	now         func() time.Time
}

type HandlerOption func(*QueryHandler)

func WithLLM(llm LLM) HandlerOption {
	return func(h *QueryHandler) {
		h.llm = llm
	}
}

// WithCache injects the title cache. Without it an in-memory cache sized by
// the config is created when caching is enabled.
func WithCache(cache Cache) HandlerOption {
	return func(h *QueryHandler) {
		h.cache = cache
	}
}

func WithHistory(history HistoryRecorder) HandlerOption {
	return func(h *QueryHandler) {
		h.history = history
	}
}

func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *QueryHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithRetryConfig(cfg RetryConfig) HandlerOption {
	return func(h *QueryHandler) {
		h.retry = cfg
	}
}

func WithCatalogLimits(limits LimiterSettings) HandlerOption {
	return func(h *QueryHandler) {
		h.limits = limits
	}
}

func WithCallTimeout(timeout time.Duration) HandlerOption {
	return func(h *QueryHandler) {
		if timeout > 0 {
			h.callTimeout = timeout
		}
	}
}

func NewQueryHandler(cfg Config, catalogs []Catalog, opts ...HandlerOption) *QueryHandler {
	h := &QueryHandler{
		cfg:         cfg.withDefaults(),
		logger:      slog.Default(),
		retry:       DefaultRetryConfig(),
		callTimeout: defaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if !h.cfg.CacheEnabled {
		h.cache = nil
	} else if h.cache == nil {
		h.cache = NewMemoryCache(h.cfg.CacheTTL, defaultCacheMaxEntries)
	}

	seen := make(map[string]struct{}, len(catalogs))
	for _, catalog := range catalogs {
		if catalog == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(catalog.Name()))
		if name == "" {
			continue
		}
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		h.catalogs = append(h.catalogs, newCatalogGuard(catalog, h.limits, h.retry, h.callTimeout, h.logger))
	}
	return h
}

func (h *QueryHandler) Config() Config {
	return h.cfg
}

// ProcessQuery runs the full pipeline for one free-text query. Stage failures
// degrade to fallback values; the only error returned is ErrInvalidQuery.
func (h *QueryHandler) ProcessQuery(ctx context.Context, query, userID string) (response domain.SearchResponse, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.EmptySearchResponse(), ErrInvalidQuery
	}
	userID = strings.TrimSpace(userID)

	start := h.now()
	intent := "unknown"
	defer func() {
		if recovered := recover(); recovered != nil {
			h.logger.Error("query pipeline panic",
				slog.String("query", truncateQuery(query)),
				slog.Any("error", recovered),
			)
			response = domain.EmptySearchResponse()
			err = nil
			metrics.QueriesTotal.WithLabelValues(intent, "failed").Inc()
			return
		}
		metrics.QueriesTotal.WithLabelValues(intent, string(response.Type)).Inc()
		metrics.QueryDuration.Observe(h.now().Sub(start).Seconds())
	}()

	analysis := h.AnalyzeQueryIntent(ctx, query)
	intent = string(analysis.Type)

	switch analysis.Type {
	case domain.QueryTypeRecommendation:
		response = h.generateRecommendation(ctx, query, analysis)
	case domain.QueryTypeSpecificTheme:
		response = h.findMoviesByTheme(ctx, query, analysis)
	case domain.QueryTypePlotDescription:
		response = h.findMovieByPlot(ctx, query, analysis)
	default:
		response = h.performGenericSearch(ctx, query, analysis)
	}
	if response.Results == nil {
		response.Results = []domain.MovieRecord{}
	}
	response.Type = domain.ResponseTypeFor(len(response.Results))

	if response.Type == domain.ResponseTypeSingle && userID != "" {
		h.recordHistory(ctx, userID, query, response.Results[0])
	}

	h.logger.Info("ai search completed",
		slog.String("query", truncateQuery(query)),
		slog.String("intent", intent),
		slog.String("type", string(response.Type)),
		slog.Int("results", len(response.Results)),
		slog.Int64("elapsedMs", h.now().Sub(start).Milliseconds()),
	)
	return response, nil
}

func (h *QueryHandler) recordHistory(ctx context.Context, userID, query string, movie domain.MovieRecord) {
	if h.history == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historySaveTimeout)
	defer cancel()
	if _, err := h.history.Save(saveCtx, userID, query, movie, domain.HistoryKindSingle); err != nil {
		metrics.HistoryWritesTotal.WithLabelValues(string(domain.HistoryKindSingle), "error").Inc()
		h.logger.Warn("search history save failed",
			slog.String("userId", userID),
			slog.String("query", truncateQuery(query)),
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.HistoryWritesTotal.WithLabelValues(string(domain.HistoryKindSingle), "ok").Inc()
}

// generate wraps one LLM call with metrics and the per-call timeout.
func (h *QueryHandler) generate(ctx context.Context, operation, prompt string) (string, error) {
	if h.llm == nil {
		return "", ErrLLMUnavailable
	}
	callCtx, cancel := context.WithTimeout(ctx, h.callTimeout)
	defer cancel()

	start := h.now()
	text, err := h.llm.GenerateContent(callCtx, prompt)
	metrics.LLMRequestDuration.WithLabelValues(operation).Observe(h.now().Sub(start).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(operation, "error").Inc()
		return "", fmt.Errorf("%s: %w", operation, err)
	}
	metrics.LLMRequestsTotal.WithLabelValues(operation, "ok").Inc()
	return text, nil
}

func truncateQuery(query string) string {
	if len(query) <= maxLoggedQueryLength {
		return query
	}
	cut := maxLoggedQueryLength - 3
	for cut > 0 && !utf8.RuneStart(query[cut]) {
		cut--
	}
	return query[:cut] + "..."
}
