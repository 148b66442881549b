// 包 metrics：Prometheus 指标定义与注册，/metrics 由主入口挂载
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000}

var (
	SearchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsearch_requests_total",
		Help: "Total number of search requests by query kind",
	}, []string{"kind"})
	SearchErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsearch_errors_total",
		Help: "Total number of failed search requests by HTTP status",
	}, []string{"status"})
	SearchDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tweetsearch_request_duration_ms",
		Help:    "Search duration in milliseconds by query kind",
		Buckets: durationBuckets,
	}, []string{"kind"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsearch_cache_hits_total",
		Help: "Total LRU cache hits by query kind",
	}, []string{"kind"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsearch_cache_misses_total",
		Help: "Total LRU cache misses by query kind",
	}, []string{"kind"})
	CacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tweetsearch_cache_evictions_total",
		Help: "Total LRU cache capacity evictions",
	})
	CacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tweetsearch_cache_entries",
		Help: "Current number of LRU cache entries",
	})
	PostgresDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tweetsearch_postgres_duration_ms",
		Help:    "PostgreSQL query duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"op"})
	MongoDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tweetsearch_mongo_duration_ms",
		Help:    "MongoDB query duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"op"})
	GeocodeRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tweetsearch_geocode_requests_total",
		Help: "Total Nominatim requests",
	})
	GeocodeFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tweetsearch_geocode_fail_total",
		Help: "Total Nominatim failures (transport, decode or empty result)",
	})
	GeocodeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tweetsearch_geocode_duration_ms",
		Help:    "Nominatim call duration in milliseconds",
		Buckets: durationBuckets,
	})
	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsearch_rate_limited_total",
		Help: "Total requests rejected by the rate limiter",
	}, []string{"backend"})
)

func init() {
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchErrorsTotal)
	prometheus.MustRegister(SearchDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheEvictionsTotal)
	prometheus.MustRegister(CacheEntries)
	prometheus.MustRegister(PostgresDurationMs)
	prometheus.MustRegister(MongoDurationMs)
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(GeocodeFailTotal)
	prometheus.MustRegister(GeocodeDurationMs)
	prometheus.MustRegister(RateLimitedTotal)
}

// Handler：返回 Prometheus 抓取处理器
func Handler() http.Handler { return promhttp.Handler() }
