// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazard_requests_total",
			Help: "Total number of hazard-curve requests by outcome",
		},
		[]string{"status", "code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hazard_stage_duration_seconds",
			Help:    "Duration of each request pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		},
		[]string{"stage"},
	)

	CacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazard_model_cache_events_total",
			Help: "Model cache lookups and loads by event",
		},
		[]string{"event"},
	)

	CacheLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hazard_model_load_duration_seconds",
			Help:    "Duration of hazard model loads in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 3, 10),
		},
		[]string{"model"},
	)

	PoolTasksActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hazard_pool_tasks_active",
			Help: "Number of tasks currently executing per pool",
		},
		[]string{"pool"},
	)

	PoolTasksQueued = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hazard_pool_tasks_queued",
			Help: "Number of tasks waiting for a worker per pool",
		},
		[]string{"pool"},
	)

	PoolTasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazard_pool_tasks_completed_total",
			Help: "Total number of tasks finished per pool and result",
		},
		[]string{"pool", "result"},
	)

	PoolTasksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazard_pool_tasks_rejected_total",
			Help: "Total number of tasks refused per pool and reason",
		},
		[]string{"pool", "reason"},
	)

	AccessDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazard_access_decisions_total",
			Help: "Access guard decisions",
		},
		[]string{"decision"},
	)

	AccessMirrorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazard_access_mirror_failures_total",
			Help: "Failed writes of request counts to the persistent store",
		},
		[]string{"store"},
	)
)

// Cache events.
const (
	CacheHit          = "hit"
	CacheMiss         = "miss"
	CacheLoad         = "load"
	CacheLoadFailure  = "load_failure"
	CacheNotInstalled = "not_installed"
)
