package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelle/backend/internal/cache"
	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/internal/provider"
	"github.com/sentinelle/backend/pkg/ratelimit"
)

// fakeClassifier counts calls and returns a canned judgment, or an error for
// texts registered in failOn.
type fakeClassifier struct {
	calls  atomic.Int64
	delay  time.Duration
	mu     sync.Mutex
	failOn map[string]error
}

func (f *fakeClassifier) Name() string  { return "fake" }
func (f *fakeClassifier) Model() string { return "fake-model" }

func (f *fakeClassifier) Classify(ctx context.Context, text string) (*models.Judgment, provider.Usage, error) {
	f.calls.Add(1)

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, provider.Usage{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}

	f.mu.Lock()
	err := f.failOn[text]
	f.mu.Unlock()
	if err != nil {
		return nil, provider.Usage{}, err
	}

	sentiment := models.SentimentNeutral
	if strings.Contains(strings.ToLower(text), "merci") {
		sentiment = models.SentimentPositive
	}

	return &models.Judgment{
		Sentiment:      sentiment,
		SentimentScore: 0.2,
		Category:       models.CategoryOther,
		Priority:       models.PriorityLow,
		Keywords:       []string{"test"},
	}, provider.Usage{PromptTokens: 10, CompletionTokens: 5, CostUSD: 0.001}, nil
}

func newTestEngine(classifier provider.Classifier) *Engine {
	return New(classifier, cache.NewMemoryStore(0), ratelimit.New(1000, time.Minute))
}

func messages(texts ...string) []models.Message {
	msgs := make([]models.Message, len(texts))
	for i, text := range texts {
		msgs[i] = models.Message{
			ID:       "msg-" + string(rune('a'+i)),
			Author:   "@client",
			Text:     text,
			PostedAt: time.Now(),
		}
	}
	return msgs
}

func TestRunBatchEmptyInput(t *testing.T) {
	t.Parallel()

	fake := &fakeClassifier{}
	eng := newTestEngine(fake)

	results, snapshot := eng.RunBatch(context.Background(), nil, Options{Concurrency: 4}, NewStats())

	assert.Empty(t, results)
	assert.Zero(t, snapshot.Attempted)
	assert.Zero(t, fake.calls.Load())
}

func TestRunBatchPositionalResults(t *testing.T) {
	t.Parallel()

	fake := &fakeClassifier{}
	eng := newTestEngine(fake)

	msgs := messages(
		"Merci Free!",
		"Panne totale sur le réseau",
		"Ma facture a doublé ce mois-ci",
		"La fibre est enfin installée",
		"Le débit est correct",
	)

	results, snapshot := eng.RunBatch(context.Background(), msgs, Options{Concurrency: 2}, NewStats())

	require.Len(t, results, len(msgs))
	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, msgs[i].ID, res.MessageID)
		require.NotNil(t, res.Classification, "message %d should succeed", i)
		assert.Equal(t, msgs[i].ID, res.Classification.MessageID)
		assert.Equal(t, "fake", res.Classification.Provider)
	}

	assert.Equal(t, int64(5), snapshot.Attempted)
	assert.Equal(t, int64(5), snapshot.Succeeded)
	assert.Zero(t, snapshot.Failed)
	assert.Equal(t, snapshot.Attempted, snapshot.Succeeded+snapshot.Failed)
}

func TestRunBatchDeduplicatesRepeatedText(t *testing.T) {
	t.Parallel()

	fake := &fakeClassifier{}
	eng := newTestEngine(fake)

	// Identical normalized text must hit the provider once; concurrency 1
	// guarantees the first occurrence lands in the cache before the repeat.
	msgs := messages(
		"Merci Free!",
		"Panne totale sur le réseau",
		"merci   FREE!",
	)

	results, snapshot := eng.RunBatch(context.Background(), msgs, Options{Concurrency: 1}, NewStats())

	require.Len(t, results, 3)
	assert.Equal(t, int64(2), fake.calls.Load())
	assert.Equal(t, int64(1), snapshot.CacheHits)
	assert.Equal(t, int64(2), snapshot.ProviderCalls)
	assert.Equal(t, int64(3), snapshot.Succeeded)

	// The cached repeat keeps its own identity and marks provenance.
	repeat := results[2]
	require.NotNil(t, repeat.Classification)
	assert.True(t, repeat.Classification.FromCache)
	assert.Equal(t, msgs[2].ID, repeat.Classification.MessageID)
	assert.Equal(t, models.SentimentPositive, repeat.Classification.Judgment.Sentiment)

	require.NotNil(t, results[0].Classification)
	assert.False(t, results[0].Classification.FromCache)
}

func TestRunBatchFailureDoesNotAbortSiblings(t *testing.T) {
	t.Parallel()

	fake := &fakeClassifier{
		failOn: map[string]error{
			"Réponse illisible": &provider.Error{
				Kind:     provider.KindMalformedResponse,
				Provider: "fake",
				Message:  "response is not valid JSON",
			},
		},
	}
	eng := newTestEngine(fake)

	msgs := messages(
		"Tout fonctionne bien",
		"Réponse illisible",
		"Aucun souci à signaler",
	)

	results, snapshot := eng.RunBatch(context.Background(), msgs, Options{Concurrency: 3}, NewStats())

	require.NotNil(t, results[0].Classification)
	require.NotNil(t, results[2].Classification)

	assert.Nil(t, results[1].Classification)
	require.Error(t, results[1].Err)
	kind, ok := provider.KindOf(results[1].Err)
	require.True(t, ok)
	assert.Equal(t, provider.KindMalformedResponse, kind)
	assert.NotEmpty(t, results[1].ErrorMessage)

	assert.Equal(t, int64(3), snapshot.Attempted)
	assert.Equal(t, int64(2), snapshot.Succeeded)
	assert.Equal(t, int64(1), snapshot.Failed)
}

func TestRunBatchInvalidMessageFailsWithoutProviderCall(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
	}{
		{"empty text", ""},
		{"whitespace-only text", "   \t  "},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeClassifier{}
			eng := newTestEngine(fake)

			msgs := []models.Message{
				{ID: "msg-a", Author: "@client", Text: tc.text, PostedAt: time.Now()},
			}

			results, snapshot := eng.RunBatch(context.Background(), msgs, Options{Concurrency: 1}, NewStats())

			require.Error(t, results[0].Err)
			assert.Nil(t, results[0].Classification)
			assert.Zero(t, fake.calls.Load(), "invalid text must never reach the provider")
			assert.Equal(t, int64(1), snapshot.Failed)
			assert.Zero(t, snapshot.Succeeded)
		})
	}
}

func TestRunBatchConcurrencyDoesNotChangeOutcomes(t *testing.T) {
	t.Parallel()

	texts := []string{
		"Merci Free!",
		"Panne totale à Marseille",
		"Box en rade depuis 3 jours",
		"Service client au top",
		"Facturation incompréhensible",
		"Débit fibre excellent",
	}

	classify := func(concurrency int) []models.Result {
		eng := newTestEngine(&fakeClassifier{})
		results, _ := eng.RunBatch(context.Background(), messages(texts...), Options{Concurrency: concurrency}, NewStats())
		return results
	}

	sequential := classify(1)
	parallel := classify(5)

	require.Len(t, parallel, len(sequential))
	for i := range sequential {
		require.NotNil(t, sequential[i].Classification)
		require.NotNil(t, parallel[i].Classification)
		assert.Equal(t, sequential[i].Classification.Judgment, parallel[i].Classification.Judgment)
		assert.Equal(t, sequential[i].MessageID, parallel[i].MessageID)
	}
}

func TestRunBatchGroupDelayPacesGroups(t *testing.T) {
	t.Parallel()

	fake := &fakeClassifier{}
	eng := newTestEngine(fake)

	msgs := messages("un", "deux", "trois", "quatre")

	start := time.Now()
	_, snapshot := eng.RunBatch(context.Background(), msgs, Options{
		Concurrency: 2,
		GroupDelay:  150 * time.Millisecond,
	}, NewStats())
	elapsed := time.Since(start)

	// Two groups, one inter-group pause. No pause after the last group.
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, 450*time.Millisecond)
	assert.Equal(t, int64(4), snapshot.Succeeded)
}

func TestRunBatchCancellationPadsRemaining(t *testing.T) {
	t.Parallel()

	fake := &fakeClassifier{delay: 100 * time.Millisecond}
	eng := newTestEngine(fake)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	msgs := messages("un", "deux", "trois", "quatre", "cinq", "six")

	results, snapshot := eng.RunBatch(ctx, msgs, Options{Concurrency: 1}, NewStats())

	require.Len(t, results, len(msgs))
	for _, res := range results {
		if res.Err != nil {
			assert.Nil(t, res.Classification)
			assert.NotEmpty(t, res.ErrorMessage)
		}
	}

	assert.Equal(t, int64(len(msgs)), snapshot.Attempted)
	assert.Equal(t, snapshot.Attempted, snapshot.Succeeded+snapshot.Failed)
	assert.Greater(t, snapshot.Failed, int64(0))
	assert.Less(t, fake.calls.Load(), int64(len(msgs)))
}

func TestRunBatchSharedLimiterBoundsCallRate(t *testing.T) {
	t.Parallel()

	fake := &fakeClassifier{}
	limiter := ratelimit.New(2, 200*time.Millisecond)
	eng := New(fake, cache.NewMemoryStore(0), limiter)

	msgs := messages("un", "deux", "trois", "quatre")

	start := time.Now()
	_, snapshot := eng.RunBatch(context.Background(), msgs, Options{Concurrency: 4}, NewStats())
	elapsed := time.Since(start)

	// 4 distinct texts against a 2-per-200ms budget needs at least one
	// full window of waiting.
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.Equal(t, int64(4), snapshot.Succeeded)
	assert.Equal(t, int64(4), fake.calls.Load())
}
