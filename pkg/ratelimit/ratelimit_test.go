package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AdmitsUpToMaxWithoutWaiting(t *testing.T) {
	t.Parallel()

	l := New(3, time.Second)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}

	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 3, l.InFlight())
}

func TestLimiter_SlidingWindowInvariant(t *testing.T) {
	t.Parallel()

	const (
		maxCalls = 5
		window   = 400 * time.Millisecond
		callers  = 12
	)

	l := New(maxCalls, window)

	var (
		mu       sync.Mutex
		admitted []time.Time
		wg       sync.WaitGroup
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if !assert.NoError(t, l.Acquire(context.Background())) {
				return
			}

			mu.Lock()
			admitted = append(admitted, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, admitted, callers)

	sort.Slice(admitted, func(i, j int) bool { return admitted[i].Before(admitted[j]) })

	// No more than maxCalls admissions in any trailing window: the (i+maxCalls)-th
	// admission must come at least a full window after the i-th. A small slack
	// absorbs the gap between admission inside the limiter and the recording above.
	const slack = 50 * time.Millisecond
	for i := 0; i+maxCalls < len(admitted); i++ {
		gap := admitted[i+maxCalls].Sub(admitted[i])
		assert.GreaterOrEqual(t, gap, window-slack,
			"admissions %d and %d are closer than the window", i, i+maxCalls)
	}
}

func TestLimiter_AcquireRespectsCancellation(t *testing.T) {
	t.Parallel()

	l := New(1, time.Minute)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_SlotsFreeAfterWindow(t *testing.T) {
	t.Parallel()

	l := New(2, 100*time.Millisecond)

	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, 2, l.InFlight())

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, l.InFlight())

	// A third acquire now completes without blocking.
	start := time.Now()
	require.NoError(t, l.Acquire(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
