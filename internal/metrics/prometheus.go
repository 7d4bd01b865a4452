package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinelle_batch_duration_seconds",
			Help:    "Batch processing duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinelle_batches_total",
			Help: "Total number of batches run",
		},
		[]string{"status"},
	)

	MessagesAnalyzed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinelle_messages_analyzed_total",
			Help: "Total messages analyzed",
		},
		[]string{"outcome"},
	)

	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinelle_provider_calls_total",
			Help: "Total provider calls by outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinelle_provider_call_duration_seconds",
			Help:    "Provider call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinelle_llm_tokens_used_total",
			Help: "Total LLM tokens used",
		},
		[]string{"provider", "type"},
	)

	LLMCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinelle_llm_cost_usd",
			Help: "Estimated LLM API cost in USD (heuristic, not billing data)",
		},
		[]string{"provider"},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinelle_fingerprint_cache_hits_total",
			Help: "Total fingerprint cache hits",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinelle_fingerprint_cache_misses_total",
			Help: "Total fingerprint cache misses",
		},
	)

	AdmissionWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinelle_admission_wait_seconds",
			Help:    "Time spent waiting on the outbound rate limiter",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
		},
	)
)

func Init() {
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(BatchesTotal)
	prometheus.MustRegister(MessagesAnalyzed)
	prometheus.MustRegister(ProviderCalls)
	prometheus.MustRegister(ProviderCallDuration)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(LLMCost)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(AdmissionWait)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
