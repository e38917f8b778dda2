package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"moviediscovery/searchservice/internal/search"
)

type Config struct {
	HTTPAddr        string
	UpstreamTimeout time.Duration
	LogLevel        string
	LogFormat       string

	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string
	TMDBAPIKey    string
	TMDBBaseURL   string
	TMDBLanguage  string
	TMDBCacheTTL  time.Duration
	OMDBAPIKey    string
	OMDBBaseURL   string

	MaxTitlesToSearch     int
	ConcurrentSearchLimit int
	CacheTTL              time.Duration
	CacheDisabled         bool
	CacheMaxEntries       int

	RedisURL       string
	MongoURI       string
	MongoDatabase  string
	CatalogRPS     float64
	CatalogBurst   int
	HTTPRateRPS    float64
	HTTPRateBurst  int
	OTLPEndpoint   string
	ServiceVersion string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		UpstreamTimeout: time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 30)) * time.Second,
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),

		GeminiAPIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-pro"),
		TMDBAPIKey:    strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:   getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBLanguage:  getEnv("TMDB_LANGUAGE", "en-US"),
		TMDBCacheTTL:  time.Duration(getEnvInt("TMDB_CACHE_TTL_DAYS", 7)) * 24 * time.Hour,
		OMDBAPIKey:    strings.TrimSpace(os.Getenv("OMDB_API_KEY")),
		OMDBBaseURL:   getEnv("OMDB_BASE_URL", "http://www.omdbapi.com/"),

		MaxTitlesToSearch:     getEnvInt("AI_SEARCH_MAX_TITLES", 8),
		ConcurrentSearchLimit: getEnvInt("AI_SEARCH_CONCURRENCY", 8),
		CacheTTL:              time.Duration(getEnvInt("AI_SEARCH_CACHE_TTL_MINUTES", 240)) * time.Minute,
		CacheDisabled:         getEnvBool("AI_SEARCH_CACHE_DISABLED", false),
		CacheMaxEntries:       getEnvInt("AI_SEARCH_CACHE_MAX_ENTRIES", 1000),

		RedisURL:       getEnv("REDIS_URL", ""),
		MongoURI:       getEnv("MONGODB_URI", ""),
		MongoDatabase:  getEnv("MONGODB_DATABASE", "moviediscovery"),
		CatalogRPS:     getEnvFloat("CATALOG_RATE_LIMIT_RPS", 20),
		CatalogBurst:   getEnvInt("CATALOG_RATE_LIMIT_BURST", 40),
		HTTPRateRPS:    getEnvFloat("HTTP_RATE_LIMIT_RPS", 50),
		HTTPRateBurst:  getEnvInt("HTTP_RATE_LIMIT_BURST", 100),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
	}
}

// SearchConfig derives the immutable pipeline configuration.
func (c Config) SearchConfig() search.Config {
	return search.Config{
		MaxTitlesToSearch:     c.MaxTitlesToSearch,
		CacheTTL:              c.CacheTTL,
		ConcurrentSearchLimit: c.ConcurrentSearchLimit,
		CacheEnabled:          !c.CacheDisabled,
	}
}

func (c Config) CatalogLimits() search.LimiterSettings {
	return search.LimiterSettings{RPS: c.CatalogRPS, Burst: c.CatalogBurst}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
