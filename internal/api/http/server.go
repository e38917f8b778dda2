package apihttp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"moviediscovery/searchservice/internal/domain"
	"moviediscovery/searchservice/internal/providers/common"
	"moviediscovery/searchservice/internal/repository/mongo"
	"moviediscovery/searchservice/internal/search"
)

const maxRequestBodyBytes = 1 << 20

type QueryService interface {
	ProcessQuery(ctx context.Context, query, userID string) (domain.SearchResponse, error)
	CatalogDiagnostics() []domain.CatalogDiagnostics
}

// MovieSearcher answers plain keyword searches against a single catalog.
type MovieSearcher interface {
	Search(ctx context.Context, query string) ([]domain.MovieRecord, error)
}

type HistoryStore interface {
	Save(ctx context.Context, userID, query string, movie domain.MovieRecord, kind domain.HistoryKind) (domain.HistoryEntry, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)
	ClearByUser(ctx context.Context, userID string) (int64, error)
}

type Server struct {
	query     QueryService
	movies    MovieSearcher
	history   HistoryStore
	logger    *slog.Logger
	rateRPS   float64
	rateBurst int
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithMovieSearch(movies MovieSearcher) ServerOption {
	return func(s *Server) {
		s.movies = movies
	}
}

func WithHistory(history HistoryStore) ServerOption {
	return func(s *Server) {
		s.history = history
	}
}

// WithRateLimit sets the inbound token bucket. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateRPS = rps
		s.rateBurst = burst
	}
}

func NewServer(queryService QueryService, options ...ServerOption) *Server {
	server := &Server{
		query:     queryService,
		logger:    slog.Default(),
		rateRPS:   50,
		rateBurst: 100,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/ai-search", s.handleAISearch)
	mux.HandleFunc("/api/v1/movies/search", s.handleMovieSearch)
	mux.HandleFunc("/api/v1/catalogs/health", s.handleCatalogsHealth)
	mux.HandleFunc("/api/v1/search-history", s.handleSearchHistory)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "movie-search",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	var handler http.Handler = metricsMiddleware(traced)
	if s.rateRPS > 0 {
		handler = rateLimitMiddleware(s.rateRPS, s.rateBurst, handler)
	}
	return requestIDMiddleware(recoveryMiddleware(s.logger, handler))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleAISearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.query == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "ai search is not configured")
		return
	}

	req := aiSearchRequest{
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		UserID: strings.TrimSpace(r.URL.Query().Get("userId")),
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	response, err := s.query.ProcessQuery(r.Context(), req.Query, req.UserID)
	if err != nil {
		if errors.Is(err, search.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.writeUpstreamError(w, "ai search failed", req.Query, err)
		return
	}

	explanation := response.Explanation
	if explanation == "" {
		explanation = "Search results for: " + req.Query
	}
	results := response.Results
	if results == nil {
		results = []domain.MovieRecord{}
	}
	noteSearch(r.Context(), string(response.Type), len(results), req.UserID != "")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"type":        response.Type,
		"results":     results,
		"explanation": explanation,
	})
}

func (s *Server) handleMovieSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.movies == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "movie search is not configured")
		return
	}

	req := movieSearchRequest{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if err := validateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	results, err := s.movies.Search(r.Context(), req.Query)
	if err != nil {
		s.writeUpstreamError(w, "movie search failed", req.Query, err)
		return
	}
	if results == nil {
		results = []domain.MovieRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": results,
	})
}

func (s *Server) handleCatalogsHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items := []domain.CatalogDiagnostics{}
	if s.query != nil {
		items = append(items, s.query.CatalogDiagnostics()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"catalogs": items,
	})
}

func (s *Server) handleSearchHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "search history is not configured")
		return
	}
	switch r.Method {
	case http.MethodPost:
		s.saveHistory(w, r)
	case http.MethodGet:
		s.listHistory(w, r)
	case http.MethodDelete:
		s.clearHistory(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) saveHistory(w http.ResponseWriter, r *http.Request) {
	var req historySaveRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Query = strings.TrimSpace(req.Query)
	if err := validateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Movie.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "movie.name is required")
		return
	}

	entry, err := s.history.Save(r.Context(), req.UserID, req.Query, req.Movie, domain.HistoryKindSelected)
	if err != nil {
		if errors.Is(err, mongo.ErrInvalidHistoryEntry) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.logger.Error("search history save failed",
			slog.String("userId", req.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save search history")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"entry":   entry,
	})
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositiveInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}
	limit = min(limit, maxHistoryLimit)
	req := historyListRequest{
		UserID: strings.TrimSpace(r.URL.Query().Get("userId")),
		Limit:  limit,
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	entries, err := s.history.ListByUser(r.Context(), req.UserID, req.Limit)
	if err != nil {
		s.logger.Error("search history list failed",
			slog.String("userId", req.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list search history")
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"entries": entries,
	})
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	req := historyListRequest{
		UserID: strings.TrimSpace(r.URL.Query().Get("userId")),
		Limit:  1,
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	deleted, err := s.history.ClearByUser(r.Context(), req.UserID)
	if err != nil {
		s.logger.Error("search history clear failed",
			slog.String("userId", req.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to clear search history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deleted": deleted,
	})
}

// writeUpstreamError maps typed upstream failures onto client-facing codes.
// Raw upstream payloads are logged only.
func (s *Server) writeUpstreamError(w http.ResponseWriter, msg, query string, err error) {
	attrs := []any{
		slog.String("query", truncate(query, 80)),
		slog.String("error", err.Error()),
	}
	upstream, ok := common.AsUpstream(err)
	if !ok {
		s.logger.Error(msg, attrs...)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	s.logger.Warn(msg, append(attrs, slog.String("service", upstream.Service), slog.Int("status", upstream.StatusCode))...)
	switch upstream.Kind {
	case common.KindRateLimited:
		retryAfter := 1
		if upstream.RetryAfter > 0 {
			retryAfter = int(math.Ceil(upstream.RetryAfter.Seconds()))
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, "rate_limited", upstream.Service+" rate limit exceeded, try again later")
	default:
		writeError(w, http.StatusBadGateway, "external_service_error", upstream.Service+" request failed")
	}
}

func decodeJSONBody(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func parsePositiveInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, errors.New("invalid integer")
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
