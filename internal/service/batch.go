package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentinelle/backend/internal/cache"
	"github.com/sentinelle/backend/internal/engine"
	"github.com/sentinelle/backend/internal/metrics"
	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/internal/provider"
	storagemodels "github.com/sentinelle/backend/internal/storage/models"
	"github.com/sentinelle/backend/internal/storage/sqlite"
	"github.com/sentinelle/backend/pkg/config"
	"github.com/sentinelle/backend/pkg/logger"
	"github.com/sentinelle/backend/pkg/ratelimit"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Run tracks one in-flight or finished batch.
type Run struct {
	ID         string
	Provider   string
	Stats      *engine.Stats
	Status     string
	Results    []models.Result
	StartedAt  time.Time
	FinishedAt *time.Time
	cancel     context.CancelFunc
	messages   []models.Message
}

// BatchService starts batches asynchronously and keeps a registry of runs so
// callers can poll progress, fetch results and cancel. Persistence happens
// here after the engine hands back (results, summary); the engine itself
// never touches storage.
type BatchService struct {
	store   *sqlite.Client
	cache   cache.Store
	limiter *ratelimit.Limiter
	cfg     *config.Config

	mu   sync.RWMutex
	runs map[string]*Run
}

func NewBatchService(store *sqlite.Client, cacheStore cache.Store, limiter *ratelimit.Limiter, cfg *config.Config) *BatchService {
	return &BatchService{
		store:   store,
		cache:   cacheStore,
		limiter: limiter,
		cfg:     cfg,
		runs:    make(map[string]*Run),
	}
}

type StartRequest struct {
	Messages      []models.Message
	Provider      string
	Concurrency   int
	PacingSeconds float64
}

// Start validates the request, fails fast on an unknown provider and launches
// the batch in the background. The returned run id is immediately pollable.
func (s *BatchService) Start(req StartRequest) (string, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = s.cfg.Engine.DefaultProvider
	}

	classifier, err := provider.FromConfig(providerName, s.cfg.Providers)
	if err != nil {
		return "", fmt.Errorf("failed to resolve provider: %w", err)
	}

	concurrency := req.Concurrency
	if concurrency < 1 {
		concurrency = s.cfg.Engine.Concurrency
	}

	groupDelay := time.Duration(req.PacingSeconds * float64(time.Second))
	if groupDelay <= 0 {
		groupDelay = time.Duration(s.cfg.Engine.GroupDelayMs) * time.Millisecond
	}

	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	run := &Run{
		ID:        runID,
		Provider:  providerName,
		Stats:     engine.NewStats(),
		Status:    StatusRunning,
		StartedAt: time.Now(),
		cancel:    cancel,
		messages:  req.Messages,
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.InsertBatchRun(&storagemodels.BatchRun{
			ID:           runID,
			Provider:     providerName,
			MessageCount: len(req.Messages),
			Status:       StatusRunning,
			StartedAt:    run.StartedAt,
		}); err != nil {
			logger.Error("Failed to persist batch run start", zap.String("run_id", runID), zap.Error(err))
		}
	}

	eng := engine.New(classifier, s.cache, s.limiter)
	opts := engine.Options{Concurrency: concurrency, GroupDelay: groupDelay}

	go s.execute(ctx, eng, run, req.Messages, opts)

	logger.Info("Batch accepted",
		zap.String("run_id", runID),
		zap.String("provider", providerName),
		zap.Int("messages", len(req.Messages)),
		zap.Int("concurrency", concurrency),
	)

	return runID, nil
}

func (s *BatchService) execute(ctx context.Context, eng *engine.Engine, run *Run, msgs []models.Message, opts engine.Options) {
	results, summary := eng.RunBatch(ctx, msgs, opts, run.Stats)

	status := StatusCompleted
	if ctx.Err() != nil {
		status = StatusCancelled
	}

	finished := time.Now()

	s.mu.Lock()
	run.Results = results
	run.Status = status
	run.FinishedAt = &finished
	s.mu.Unlock()

	metrics.BatchesTotal.WithLabelValues(status).Inc()

	if s.store != nil {
		s.persist(run, results, summary, status, finished)
	}
}

func (s *BatchService) persist(run *Run, results []models.Result, summary engine.Snapshot, status string, finished time.Time) {
	rows := make([]*storagemodels.AnalyzedMessage, 0, len(results))
	for _, res := range results {
		if res.Classification == nil {
			continue
		}
		c := res.Classification

		var msg models.Message
		if res.Index >= 0 && res.Index < len(run.messages) {
			msg = run.messages[res.Index]
		}

		rows = append(rows, &storagemodels.AnalyzedMessage{
			ID:                     uuid.NewString(),
			BatchID:                run.ID,
			MessageID:              c.MessageID,
			Author:                 c.Author,
			Text:                   msg.Text,
			PostedAt:               c.PostedAt,
			Likes:                  msg.Likes,
			Reposts:                msg.Reposts,
			Replies:                msg.Replies,
			Sentiment:              string(c.Judgment.Sentiment),
			SentimentScore:         c.Judgment.SentimentScore,
			Category:               string(c.Judgment.Category),
			Priority:               string(c.Judgment.Priority),
			Keywords:               c.Judgment.Keywords,
			Urgent:                 c.Judgment.Urgent,
			NeedsResponse:          c.Judgment.NeedsResponse,
			EstimatedResolutionMin: c.Judgment.EstimatedResolutionMin,
			Provider:               c.Provider,
			Model:                  c.Model,
			FromCache:              c.FromCache,
			CreatedAt:              c.AnalyzedAt,
		})
	}

	if err := s.store.InsertAnalyses(rows); err != nil {
		logger.Error("Failed to persist analyses", zap.String("run_id", run.ID), zap.Error(err))
	}

	if err := s.store.UpdateBatchRun(&storagemodels.BatchRun{
		ID:            run.ID,
		Succeeded:     int(summary.Succeeded),
		Failed:        int(summary.Failed),
		CacheHits:     int(summary.CacheHits),
		ProviderCalls: int(summary.ProviderCalls),
		CostUSD:       summary.TotalCostUSD,
		Status:        status,
		FinishedAt:    &finished,
	}); err != nil {
		logger.Error("Failed to persist batch run summary", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// Get returns a view of the run. Results are only populated once finished.
func (s *BatchService) Get(runID string) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	return run, ok
}

// Results returns the positional results and final status for a finished
// run. For a run still in flight it returns ok with StatusRunning and no
// results.
func (s *BatchService) Results(runID string) ([]models.Result, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, "", false
	}
	return run.Results, run.Status, true
}

// Cancel stops launching new groups; in-flight units finish naturally.
func (s *BatchService) Cancel(runID string) bool {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return false
	}

	run.cancel()
	logger.Info("Batch cancellation requested", zap.String("run_id", runID))
	return true
}

// Snapshot returns the live progress counters for a run.
func (s *BatchService) Snapshot(runID string) (engine.Snapshot, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return engine.Snapshot{}, "", false
	}
	return run.Stats.Snapshot(), run.Status, true
}
