package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_ADDR", "AI_SEARCH_MAX_TITLES", "AI_SEARCH_CONCURRENCY", "AI_SEARCH_CACHE_TTL_MINUTES",
		"AI_SEARCH_CACHE_DISABLED", "GEMINI_MODEL", "MONGODB_DATABASE", "CATALOG_RATE_LIMIT_RPS",
	} {
		t.Setenv(key, "")
	}
	cfg := LoadConfig()
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.GeminiModel != "gemini-pro" || cfg.MongoDatabase != "moviediscovery" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.CatalogRPS != 20 {
		t.Errorf("CatalogRPS = %v", cfg.CatalogRPS)
	}

	search := cfg.SearchConfig()
	if search.MaxTitlesToSearch != 8 || search.ConcurrentSearchLimit != 8 {
		t.Errorf("unexpected search config: %+v", search)
	}
	if search.CacheTTL != 4*time.Hour || !search.CacheEnabled {
		t.Errorf("unexpected cache config: %+v", search)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("AI_SEARCH_MAX_TITLES", "5")
	t.Setenv("AI_SEARCH_CONCURRENCY", "3")
	t.Setenv("AI_SEARCH_CACHE_TTL_MINUTES", "15")
	t.Setenv("AI_SEARCH_CACHE_DISABLED", "yes")
	t.Setenv("CATALOG_RATE_LIMIT_RPS", "2.5")
	t.Setenv("LOG_LEVEL", " DEBUG ")

	cfg := LoadConfig()
	search := cfg.SearchConfig()
	if search.MaxTitlesToSearch != 5 || search.ConcurrentSearchLimit != 3 {
		t.Errorf("unexpected limits: %+v", search)
	}
	if search.CacheTTL != 15*time.Minute || search.CacheEnabled {
		t.Errorf("unexpected cache config: %+v", search)
	}
	if limits := cfg.CatalogLimits(); limits.RPS != 2.5 || limits.Burst != 40 {
		t.Errorf("unexpected catalog limits: %+v", limits)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestGetEnvIntRejectsInvalid(t *testing.T) {
	t.Setenv("AI_SEARCH_MAX_TITLES", "-4")
	if got := getEnvInt("AI_SEARCH_MAX_TITLES", 8); got != 8 {
		t.Errorf("negative value accepted: %d", got)
	}
	t.Setenv("AI_SEARCH_MAX_TITLES", "lots")
	if got := getEnvInt("AI_SEARCH_MAX_TITLES", 8); got != 8 {
		t.Errorf("non-numeric value accepted: %d", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"1", true}, {"on", true}, {"FALSE", false}, {"off", false}, {"maybe", true}, {"", true},
	}
	for _, tc := range tests {
		t.Setenv("AI_SEARCH_CACHE_DISABLED", tc.raw)
		if got := getEnvBool("AI_SEARCH_CACHE_DISABLED", true); got != tc.want {
			t.Errorf("getEnvBool(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
