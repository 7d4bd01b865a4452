package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsConcurrentRecording(t *testing.T) {
	t.Parallel()

	stats := NewStats()

	const workers = 16
	const perWorker = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				stats.RecordAttempt()
				if i%4 == 0 {
					stats.RecordFailure()
					continue
				}
				if i%3 == 0 {
					stats.RecordCacheHit()
				} else {
					stats.RecordProviderCall()
					stats.RecordCost(0.001)
				}
				stats.RecordSuccess()
			}
		}(w)
	}
	wg.Wait()

	snapshot := stats.Snapshot()

	assert.Equal(t, int64(workers*perWorker), snapshot.Attempted)
	assert.Equal(t, snapshot.Attempted, snapshot.Succeeded+snapshot.Failed)
	assert.InDelta(t, float64(snapshot.ProviderCalls)*0.001, snapshot.TotalCostUSD, 1e-6)
	assert.GreaterOrEqual(t, snapshot.ElapsedSeconds, 0.0)
}

func TestSnapshotIsPointInTime(t *testing.T) {
	t.Parallel()

	stats := NewStats()
	stats.RecordAttempt()
	stats.RecordSuccess()

	before := stats.Snapshot()
	stats.RecordAttempt()
	stats.RecordFailure()
	after := stats.Snapshot()

	assert.Equal(t, int64(1), before.Attempted)
	assert.Equal(t, int64(2), after.Attempted)
	assert.Equal(t, int64(1), after.Failed)
}
