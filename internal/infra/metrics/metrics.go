package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CacheHit = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "url_cache_hit_total",
		Help: "Cache hits, including negative-entry hits.",
	}, []string{"kind"})
	CacheMiss = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "url_cache_miss_total",
		Help: "Cache misses that fell through to the persistent store.",
	})
	CacheDegraded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "url_cache_degraded_total",
		Help: "Resolves served directly from the persistent store because the cache store was unreachable.",
	})
	RateLimitRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_rejected_total",
		Help: "Requests rejected by the rate limiter, by endpoint class.",
	}, []string{"class"})
	RateLimitFailOpen = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_fail_open_total",
		Help: "Requests admitted without counting because the counter store was unreachable.",
	})
	ClicksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clicks_dropped_total",
		Help: "Click events dropped by the bounded queue or a failed batch insert.",
	})
	ClicksPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clicks_persisted_total",
		Help: "Click events durably written.",
	})
	ReconcilerCorrections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "click_count_corrections_total",
		Help: "Short URL rows whose click_count was corrected by reconciliation.",
	})
)

func init() {
	prometheus.MustRegister(
		CacheHit, CacheMiss, CacheDegraded,
		RateLimitRejected, RateLimitFailOpen,
		ClicksDropped, ClicksPersisted,
		ReconcilerCorrections,
	)
}
