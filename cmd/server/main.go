package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "moviediscovery/searchservice/internal/api/http"
	"moviediscovery/searchservice/internal/app"
	"moviediscovery/searchservice/internal/metrics"
	"moviediscovery/searchservice/internal/providers/gemini"
	"moviediscovery/searchservice/internal/providers/omdb"
	"moviediscovery/searchservice/internal/providers/tmdb"
	mongorepo "moviediscovery/searchservice/internal/repository/mongo"
	"moviediscovery/searchservice/internal/search"
	"moviediscovery/searchservice/internal/telemetry"
)

const serviceName = "movie-search"

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.ServiceVersion,
		Endpoint:       cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("upstreamTimeout", cfg.UpstreamTimeout),
		slog.Bool("hasGeminiKey", cfg.GeminiAPIKey != ""),
		slog.Bool("hasTMDBKey", cfg.TMDBAPIKey != ""),
		slog.Bool("hasOMDBKey", cfg.OMDBAPIKey != ""),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Bool("hasMongo", strings.TrimSpace(cfg.MongoURI) != ""),
		slog.Int("maxTitles", cfg.MaxTitlesToSearch),
		slog.Int("concurrency", cfg.ConcurrentSearchLimit),
		slog.Duration("cacheTTL", cfg.CacheTTL),
		slog.Bool("cacheDisabled", cfg.CacheDisabled),
	)

	redisClient := connectRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	history, disconnectMongo := buildHistoryRepository(cfg, logger)
	defer disconnectMongo()

	tmdbClient := tmdb.NewClient(tmdb.Config{
		APIKey:        cfg.TMDBAPIKey,
		BaseURL:       cfg.TMDBBaseURL,
		Language:      cfg.TMDBLanguage,
		Client:        newHTTPClient(cfg.UpstreamTimeout),
		Redis:         redisClient,
		GenreCacheTTL: cfg.TMDBCacheTTL,
		Logger:        logger,
	})
	omdbClient := omdb.NewClient(omdb.Config{
		APIKey:  cfg.OMDBAPIKey,
		BaseURL: cfg.OMDBBaseURL,
		Client:  newHTTPClient(cfg.UpstreamTimeout),
	})

	var catalogs []search.Catalog
	if tmdbClient.Enabled() {
		catalogs = append(catalogs, tmdbClient)
	} else {
		logger.Info("tmdb api key not configured, catalog disabled")
	}
	if omdbClient.Enabled() {
		catalogs = append(catalogs, omdbClient)
	} else {
		logger.Info("omdb api key not configured, catalog disabled")
	}

	handlerOpts := []search.HandlerOption{
		search.WithLogger(logger),
		search.WithCatalogLimits(cfg.CatalogLimits()),
		search.WithCallTimeout(cfg.UpstreamTimeout),
		search.WithCache(buildCache(cfg, redisClient, logger)),
	}
	geminiClient := gemini.NewClient(gemini.Config{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Client:  newHTTPClient(cfg.UpstreamTimeout),
	})
	if geminiClient.Enabled() {
		handlerOpts = append(handlerOpts, search.WithLLM(geminiClient))
	} else {
		logger.Warn("gemini api key not configured, queries fall back to generic search")
	}
	if history != nil {
		handlerOpts = append(handlerOpts, search.WithHistory(history))
	}
	queryHandler := search.NewQueryHandler(cfg.SearchConfig(), catalogs, handlerOpts...)

	serverOpts := []apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithRateLimit(cfg.HTTPRateRPS, cfg.HTTPRateBurst),
	}
	if guarded, ok := queryHandler.GuardedCatalog(omdbClient.Name()); ok {
		serverOpts = append(serverOpts, apihttp.WithMovieSearch(guarded))
	}
	if history != nil {
		serverOpts = append(serverOpts, apihttp.WithHistory(history))
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apihttp.NewServer(queryHandler, serverOpts...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("movie search service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Int("catalogs", len(catalogs)),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("movie search service stopped")
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func connectRedis(cfg app.Config, logger *slog.Logger) *redis.Client {
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return client
}

func buildCache(cfg app.Config, redisClient *redis.Client, logger *slog.Logger) search.Cache {
	if cfg.CacheDisabled {
		return nil
	}
	if redisClient != nil {
		return search.NewRedisCache(redisClient, cfg.CacheTTL, logger)
	}
	return search.NewMemoryCache(cfg.CacheTTL, cfg.CacheMaxEntries)
}

func buildHistoryRepository(cfg app.Config, logger *slog.Logger) (*mongorepo.HistoryRepository, func()) {
	noop := func() {}
	uri := strings.TrimSpace(cfg.MongoURI)
	if uri == "" {
		logger.Info("mongodb uri not configured, search history disabled")
		return nil, noop
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongorepo.Connect(ctx, uri, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Warn("mongodb connect failed, search history disabled", slog.String("error", err.Error()))
		return nil, noop
	}
	disconnect := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(shutdownCtx)
	}
	if err := client.Ping(ctx, nil); err != nil {
		logger.Warn("mongodb not reachable, search history disabled", slog.String("error", err.Error()))
		disconnect()
		return nil, noop
	}

	repo := mongorepo.NewHistoryRepository(client, cfg.MongoDatabase)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("search history index setup failed", slog.String("error", err.Error()))
	}
	logger.Info("mongodb connected", slog.String("database", cfg.MongoDatabase))
	return repo, disconnect
}
