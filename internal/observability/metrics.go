package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace defines the global prefix for all metrics (e.g., heimdall_...).
const namespace = "heimdall"

// lowLatencyBuckets resolves sub-millisecond work such as flag evaluation and
// in-process cache access. Range: 50µs to 100ms.
var lowLatencyBuckets = []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .010, .025, .050, .100}

var (
	// -------------------------------------------------------------------------
	// CONFIG SERVICE (CDN fetches)
	// -------------------------------------------------------------------------

	// ConfigFetchTotal counts config JSON downloads by outcome.
	// Metric: heimdall_sdk_config_fetch_total
	ConfigFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sdk",
		Name:      "config_fetch_total",
		Help:      "Total config JSON fetches by result (fetched, not_modified, failed)",
	}, []string{"result"})

	// ConfigFetchDuration measures the latency of a fetch including redirects.
	// Metric: heimdall_sdk_config_fetch_duration_seconds
	ConfigFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sdk",
		Name:      "config_fetch_duration_seconds",
		Help:      "Time taken to download the config JSON, redirects included",
		Buckets:   prometheus.DefBuckets,
	})

	// ConfigChangesTotal counts observed changes of the config JSON content.
	ConfigChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sdk",
		Name:      "config_changes_total",
		Help:      "Total number of times a new config JSON content was applied",
	})

	// ConfigFetchTimestamp reports when the config currently in use was fetched.
	ConfigFetchTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sdk",
		Name:      "config_fetch_timestamp_seconds",
		Help:      "Unix time of the fetch that produced the config in use",
	})

	// -------------------------------------------------------------------------
	// EVALUATION
	// -------------------------------------------------------------------------

	// EvaluationsTotal counts flag evaluations by result (success, error, default).
	// Metric: heimdall_sdk_evaluations_total
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sdk",
		Name:      "evaluations_total",
		Help:      "Total flag evaluations by result",
	}, []string{"result"})

	// EvaluationDuration measures a single flag evaluation.
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sdk",
		Name:      "evaluation_duration_seconds",
		Help:      "Time taken to evaluate a flag against a user",
		Buckets:   lowLatencyBuckets,
	})

	// -------------------------------------------------------------------------
	// CACHE STORES
	// -------------------------------------------------------------------------

	// CacheHits counts external cache reads that returned an entry.
	// Metric: heimdall_cache_hits_total{backend="redis"}
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache reads that returned an entry",
	}, []string{"backend"})

	// CacheMisses counts external cache reads that found nothing.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache reads that found no entry",
	}, []string{"backend"})

	// CacheErrors counts failed cache operations.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "errors_total",
		Help:      "Total failed cache operations",
	}, []string{"backend", "op"})

	// CacheItems reports the number of entries held by the in-process store.
	CacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "memory_items_count",
		Help:      "Current number of entries in the in-process cache",
	})

	// -------------------------------------------------------------------------
	// AGENT (HTTP)
	// -------------------------------------------------------------------------

	// AgentReqDuration measures the latency of evaluation API requests.
	// Metric: heimdall_agent_http_handling_seconds
	AgentReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests in the agent",
		Buckets:   lowLatencyBuckets,
	}, []string{"method", "route"})

	// AgentReqTotal counts evaluation API requests.
	// Metric: heimdall_agent_http_requests_total
	AgentReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests in the agent",
	}, []string{"method", "route", "code"})
)
