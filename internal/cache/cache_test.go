package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelle/backend/internal/models"
)

func TestFingerprintNormalization(t *testing.T) {
	t.Parallel()

	// Case and whitespace differences collapse to the same fingerprint.
	base := Fingerprint("Merci Free!")
	assert.Equal(t, base, Fingerprint("merci free!"))
	assert.Equal(t, base, Fingerprint("  Merci   Free! "))
	assert.Equal(t, base, Fingerprint("MERCI\tFREE!"))

	// Different content stays distinct.
	assert.NotEqual(t, base, Fingerprint("Merci Free"))
	assert.NotEqual(t, base, Fingerprint("Panne totale sur le réseau"))
}

func TestFingerprintIsStable(t *testing.T) {
	t.Parallel()

	a := Fingerprint("Panne totale depuis ce matin à Lyon")
	b := Fingerprint("Panne totale depuis ce matin à Lyon")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func testJudgment(score float64) *models.Judgment {
	return &models.Judgment{
		Sentiment:      models.SentimentNegative,
		SentimentScore: score,
		Category:       models.CategoryNetwork,
		Priority:       models.PriorityHigh,
		Keywords:       []string{"panne"},
		Urgent:         true,
		NeedsResponse:  true,
	}
}

func TestMemoryStoreGetPut(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(0)
	ctx := context.Background()

	fp := Fingerprint("Plus de réseau depuis hier")

	_, ok := store.Get(ctx, fp)
	assert.False(t, ok)

	store.Put(ctx, fp, testJudgment(-0.7))

	got, ok := store.Get(ctx, fp)
	require.True(t, ok)
	assert.InDelta(t, -0.7, got.SentimentScore, 0.001)

	// The store hands back copies: mutating the result must not affect
	// subsequent reads.
	got.SentimentScore = 0.9

	again, ok := store.Get(ctx, fp)
	require.True(t, ok)
	assert.InDelta(t, -0.7, again.SentimentScore, 0.001)
}

func TestMemoryStoreOverwrite(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(0)
	ctx := context.Background()

	fp := Fingerprint("text")
	store.Put(ctx, fp, testJudgment(-0.5))
	store.Put(ctx, fp, testJudgment(0.5))

	got, ok := store.Get(ctx, fp)
	require.True(t, ok)
	assert.InDelta(t, 0.5, got.SentimentScore, 0.001)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreLRUEviction(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		store.Put(ctx, fmt.Sprintf("fp-%d", i), testJudgment(0))
	}

	// Touch fp-0 so fp-1 becomes the eviction candidate.
	_, ok := store.Get(ctx, "fp-0")
	require.True(t, ok)

	store.Put(ctx, "fp-3", testJudgment(0))

	assert.Equal(t, 3, store.Len())

	_, ok = store.Get(ctx, "fp-1")
	assert.False(t, ok, "least recently used entry should be evicted")

	for _, fp := range []string{"fp-0", "fp-2", "fp-3"} {
		_, ok := store.Get(ctx, fp)
		assert.True(t, ok, "%s should survive eviction", fp)
	}
}

func TestMemoryStoreUnboundedKeepsEverything(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(0)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		store.Put(ctx, fmt.Sprintf("fp-%d", i), testJudgment(0))
	}

	assert.Equal(t, 1000, store.Len())
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(64)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				fp := fmt.Sprintf("fp-%d", i%100)
				store.Put(ctx, fp, testJudgment(0))
				store.Get(ctx, fp)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Len(), 64)
}
