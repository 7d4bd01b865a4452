package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelle/backend/internal/metrics"
	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/pkg/logger"
)

type Options struct {
	// Concurrency bounds how many analysis units run at once within a group.
	// Values below 1 degenerate to sequential processing.
	Concurrency int
	// GroupDelay is an unconditional pause between consecutive groups, a
	// pacing safeguard independent of the admission controller.
	GroupDelay time.Duration
}

// RunBatch processes msgs in consecutive groups of Options.Concurrency,
// running one analysis unit per message concurrently within a group and
// waiting for the whole group before starting the next. Result positions
// always correspond to input positions. A unit failure never cancels its
// siblings. Cancelling ctx stops launching new groups; the remaining
// messages are padded as failures so the summary stays consistent.
func (e *Engine) RunBatch(ctx context.Context, msgs []models.Message, opts Options, stats *Stats) ([]models.Result, Snapshot) {
	results := make([]models.Result, len(msgs))
	if len(msgs) == 0 {
		return results, stats.Snapshot()
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	batchStart := time.Now()

	logger.Info("Batch started",
		zap.Int("messages", len(msgs)),
		zap.Int("concurrency", concurrency),
		zap.String("provider", e.classifier.Name()),
	)

	for start := 0; start < len(msgs); start += concurrency {
		if err := ctx.Err(); err != nil {
			for i := start; i < len(msgs); i++ {
				stats.RecordAttempt()
				stats.RecordFailure()
				results[i] = failureResult(i, msgs[i], err)
			}
			logger.Warn("Batch cancelled, remaining messages marked failed",
				zap.Int("remaining", len(msgs)-start),
			)
			break
		}

		end := start + concurrency
		if end > len(msgs) {
			end = len(msgs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int, msg models.Message) {
				defer wg.Done()

				classification, err := e.analyzeOne(ctx, msg, stats)
				if err != nil {
					results[i] = failureResult(i, msg, err)
					return
				}
				results[i] = models.Result{
					Index:          i,
					MessageID:      msg.ID,
					Classification: classification,
				}
			}(i, msgs[i])
		}
		wg.Wait()

		if end < len(msgs) && opts.GroupDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.GroupDelay):
			}
		}
	}

	snapshot := stats.Snapshot()
	metrics.BatchDuration.Observe(time.Since(batchStart).Seconds())

	logger.Info("Batch finished",
		zap.Int64("attempted", snapshot.Attempted),
		zap.Int64("succeeded", snapshot.Succeeded),
		zap.Int64("failed", snapshot.Failed),
		zap.Int64("cache_hits", snapshot.CacheHits),
		zap.Float64("estimated_cost_usd", snapshot.TotalCostUSD),
	)

	return results, snapshot
}

func failureResult(index int, msg models.Message, err error) models.Result {
	return models.Result{
		Index:        index,
		MessageID:    msg.ID,
		Err:          err,
		ErrorMessage: err.Error(),
	}
}
