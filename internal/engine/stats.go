package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates per-run counters. One instance is created per batch
// invocation and mutated concurrently by analysis units; counters are atomic
// and the cost accumulator sits under a small mutex.
type Stats struct {
	attempted     atomic.Int64
	succeeded     atomic.Int64
	failed        atomic.Int64
	cacheHits     atomic.Int64
	providerCalls atomic.Int64

	mu        sync.Mutex
	totalCost float64

	startedAt time.Time
}

// Snapshot is a point-in-time copy of the counters, safe to read mid-run for
// progress reporting.
type Snapshot struct {
	Attempted      int64   `json:"attempted"`
	Succeeded      int64   `json:"succeeded"`
	Failed         int64   `json:"failed"`
	CacheHits      int64   `json:"cache_hits"`
	ProviderCalls  int64   `json:"provider_calls"`
	TotalCostUSD   float64 `json:"total_cost_usd"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) RecordAttempt()      { s.attempted.Add(1) }
func (s *Stats) RecordSuccess()      { s.succeeded.Add(1) }
func (s *Stats) RecordFailure()      { s.failed.Add(1) }
func (s *Stats) RecordCacheHit()     { s.cacheHits.Add(1) }
func (s *Stats) RecordProviderCall() { s.providerCalls.Add(1) }

func (s *Stats) RecordCost(delta float64) {
	s.mu.Lock()
	s.totalCost += delta
	s.mu.Unlock()
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	cost := s.totalCost
	s.mu.Unlock()

	return Snapshot{
		Attempted:      s.attempted.Load(),
		Succeeded:      s.succeeded.Load(),
		Failed:         s.failed.Load(),
		CacheHits:      s.cacheHits.Load(),
		ProviderCalls:  s.providerCalls.Load(),
		TotalCostUSD:   cost,
		ElapsedSeconds: time.Since(s.startedAt).Seconds(),
	}
}
