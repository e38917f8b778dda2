package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviesearch",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moviesearch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20, 40},
	}, []string{"method", "path"})

	CatalogRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviesearch",
		Name:      "catalog_requests_total",
		Help:      "Total requests to movie catalogs by catalog name and result status.",
	}, []string{"catalog", "status"})

	CatalogRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moviesearch",
		Name:      "catalog_request_duration_seconds",
		Help:      "Movie catalog request duration in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"catalog"})

	CatalogBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "moviesearch",
		Name:      "catalog_breaker_state",
		Help:      "Circuit breaker state per catalog (0=closed, 1=half-open, 2=open).",
	}, []string{"catalog"})

	LLMRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviesearch",
		Name:      "llm_requests_total",
		Help:      "Total language model calls by pipeline operation and result status.",
	}, []string{"operation", "status"})

	LLMRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moviesearch",
		Name:      "llm_request_duration_seconds",
		Help:      "Language model call duration in seconds.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"operation"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moviesearch",
		Name:      "cache_hits_total",
		Help:      "Total number of title cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moviesearch",
		Name:      "cache_misses_total",
		Help:      "Total number of title cache misses.",
	})

	CacheWriteFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moviesearch",
		Name:      "cache_write_failures_total",
		Help:      "Total number of title cache writes that failed and were skipped.",
	})

	FetcherInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moviesearch",
		Name:      "fetcher_in_flight_titles",
		Help:      "Title resolutions currently holding a fetcher slot.",
	})

	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviesearch",
		Name:      "queries_total",
		Help:      "Total AI search queries by classified intent and response type.",
	}, []string{"intent", "response"})

	QueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "moviesearch",
		Name:      "query_duration_seconds",
		Help:      "End-to-end AI search pipeline duration in seconds.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
	})

	HistoryWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviesearch",
		Name:      "history_writes_total",
		Help:      "Search history writes by kind and result status.",
	}, []string{"kind", "status"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CatalogRequestsTotal,
		CatalogRequestDuration,
		CatalogBreakerState,
		LLMRequestsTotal,
		LLMRequestDuration,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheWriteFailuresTotal,
		FetcherInFlight,
		QueriesTotal,
		QueryDuration,
		HistoryWritesTotal,
	)
}
