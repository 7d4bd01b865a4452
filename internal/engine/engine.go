// Package engine implements the batch analysis dispatch pipeline: for each
// message, cache lookup, admission wait, provider call, validation, cache
// write and statistics update, with concurrency bounded per group.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelle/backend/internal/cache"
	"github.com/sentinelle/backend/internal/metrics"
	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/internal/provider"
	"github.com/sentinelle/backend/pkg/logger"
	"github.com/sentinelle/backend/pkg/ratelimit"
)

// Engine owns the collaborators of one dispatch pipeline. It is constructed
// explicitly and holds no package-level state, so independent runs (and
// tests) share nothing unless the caller shares a limiter or store on
// purpose. The limiter is typically process-wide across all engines.
type Engine struct {
	classifier provider.Classifier
	store      cache.Store
	limiter    *ratelimit.Limiter
}

func New(classifier provider.Classifier, store cache.Store, limiter *ratelimit.Limiter) *Engine {
	return &Engine{
		classifier: classifier,
		store:      store,
		limiter:    limiter,
	}
}

// analyzeOne runs the per-message pipeline. Failures are returned as values;
// they are recorded in stats and never abort the surrounding batch.
func (e *Engine) analyzeOne(ctx context.Context, msg models.Message, stats *Stats) (*models.Classification, error) {
	stats.RecordAttempt()

	if err := msg.Validate(); err != nil {
		stats.RecordFailure()
		metrics.MessagesAnalyzed.WithLabelValues("failed").Inc()
		return nil, err
	}

	fingerprint := cache.Fingerprint(msg.Text)

	if judgment, ok := e.store.Get(ctx, fingerprint); ok {
		metrics.CacheHits.Inc()
		stats.RecordCacheHit()
		stats.RecordSuccess()
		metrics.MessagesAnalyzed.WithLabelValues("cached").Inc()

		return e.bind(msg, judgment, true), nil
	}
	metrics.CacheMisses.Inc()

	waitStart := time.Now()
	if err := e.limiter.Acquire(ctx); err != nil {
		stats.RecordFailure()
		metrics.MessagesAnalyzed.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.AdmissionWait.Observe(time.Since(waitStart).Seconds())

	callStart := time.Now()
	judgment, usage, err := e.classifier.Classify(ctx, msg.Text)
	metrics.ProviderCallDuration.WithLabelValues(e.classifier.Name()).Observe(time.Since(callStart).Seconds())
	stats.RecordProviderCall()

	if err != nil {
		outcome := "error"
		if kind, ok := provider.KindOf(err); ok {
			outcome = string(kind)
		}
		metrics.ProviderCalls.WithLabelValues(e.classifier.Name(), outcome).Inc()

		stats.RecordFailure()
		metrics.MessagesAnalyzed.WithLabelValues("failed").Inc()

		logger.Warn("Message analysis failed",
			zap.String("message_id", msg.ID),
			zap.String("provider", e.classifier.Name()),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.ProviderCalls.WithLabelValues(e.classifier.Name(), "success").Inc()
	metrics.LLMTokensUsed.WithLabelValues(e.classifier.Name(), "prompt").Add(float64(usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(e.classifier.Name(), "completion").Add(float64(usage.CompletionTokens))
	metrics.LLMCost.WithLabelValues(e.classifier.Name()).Add(usage.CostUSD)
	stats.RecordCost(usage.CostUSD)

	e.store.Put(ctx, fingerprint, judgment)

	stats.RecordSuccess()
	metrics.MessagesAnalyzed.WithLabelValues("analyzed").Inc()

	return e.bind(msg, judgment, false), nil
}

// bind combines a judgment with the identity of the message at hand. On a
// cache hit only the judgment fields are reused; identity always comes from
// the current message.
func (e *Engine) bind(msg models.Message, judgment *models.Judgment, fromCache bool) *models.Classification {
	return &models.Classification{
		MessageID:  msg.ID,
		Author:     msg.Author,
		PostedAt:   msg.PostedAt,
		Judgment:   *judgment,
		Provider:   e.classifier.Name(),
		Model:      e.classifier.Model(),
		FromCache:  fromCache,
		AnalyzedAt: time.Now(),
	}
}
