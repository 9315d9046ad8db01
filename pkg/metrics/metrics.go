package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	IntentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paywatch_intents_created_total",
		Help: "The total number of payment intents created",
	})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paywatch_verifications_total",
		Help: "The total number of verification attempts by resulting status",
	}, []string{"status"})

	VerificationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paywatch_verification_errors_total",
		Help: "Total number of verification errors by code",
	}, []string{"code"})

	VerificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paywatch_verification_seconds",
		Help:    "Time taken to verify an intent against the chain",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // Start at 50ms with 10 buckets doubling in size
	}, []string{"asset_type"})

	CoalescedVerifications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paywatch_coalesced_verifications_total",
		Help: "Number of verification requests served by an already in-flight scan for the same intent",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paywatch_sweep_seconds",
		Help:    "Time taken by a full verification sweep",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // Start at 100ms with 10 buckets doubling in size
	})

	IntentsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paywatch_intents",
		Help: "The number of stored intents by status",
	}, []string{"status"})

	EventsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paywatch_events_appended_total",
		Help: "The total number of audit events appended",
	})

	RPCCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paywatch_rpc_calls_total",
		Help: "The total number of chain RPC calls by method and outcome",
	}, []string{"method", "outcome"})

	BlockCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paywatch_block_cache_hits_total",
		Help: "Number of block fetches served from the local cache",
	})

	CircuitBreakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paywatch_circuit_breaker_open",
		Help: "Whether the RPC circuit breaker is currently open (1) or closed (0)",
	})
)
