package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelle/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func testRun(id string) *models.BatchRun {
	return &models.BatchRun{
		ID:           id,
		Provider:     "mistral",
		MessageCount: 3,
		Status:       "running",
		StartedAt:    time.Now().Truncate(time.Second),
	}
}

func TestBatchRunLifecycle(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)

	run := testRun("run-1")
	require.NoError(t, client.InsertBatchRun(run))

	got, err := client.GetBatchRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "running", got.Status)
	assert.Equal(t, 3, got.MessageCount)
	assert.Nil(t, got.FinishedAt)

	finished := time.Now().Truncate(time.Second)
	run.Succeeded = 2
	run.Failed = 1
	run.CacheHits = 1
	run.ProviderCalls = 2
	run.CostUSD = 0.0042
	run.Status = "completed"
	run.FinishedAt = &finished
	require.NoError(t, client.UpdateBatchRun(run))

	got, err = client.GetBatchRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, 2, got.Succeeded)
	assert.Equal(t, 1, got.Failed)
	assert.InDelta(t, 0.0042, got.CostUSD, 1e-9)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, finished.Unix(), got.FinishedAt.Unix())
}

func TestGetBatchRunMissingReturnsNil(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)

	got, err := client.GetBatchRun("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testAnalysis(id, batchID, sentiment, category, priority string, urgent bool) *models.AnalyzedMessage {
	return &models.AnalyzedMessage{
		ID:             id,
		BatchID:        batchID,
		MessageID:      "msg-" + id,
		Author:         "@client",
		Text:           "Panne sur le réseau",
		PostedAt:       time.Now(),
		Sentiment:      sentiment,
		SentimentScore: -0.5,
		Category:       category,
		Priority:       priority,
		Keywords:       []string{"panne", "réseau"},
		Urgent:         urgent,
		NeedsResponse:  urgent,
		Provider:       "mistral",
		Model:          "mistral-small",
		CreatedAt:      time.Now(),
	}
}

func TestInsertAndListAnalyses(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	require.NoError(t, client.InsertBatchRun(testRun("run-1")))

	rows := []*models.AnalyzedMessage{
		testAnalysis("a1", "run-1", "negative", "network", "critical", true),
		testAnalysis("a2", "run-1", "positive", "offer", "low", false),
	}
	estMin := 90
	rows[0].EstimatedResolutionMin = &estMin

	require.NoError(t, client.InsertAnalyses(rows))

	got, err := client.ListAnalysesByBatch("run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := map[string]*models.AnalyzedMessage{got[0].ID: got[0], got[1].ID: got[1]}

	first := byID["a1"]
	require.NotNil(t, first)
	assert.Equal(t, "negative", first.Sentiment)
	assert.Equal(t, []string{"panne", "réseau"}, first.Keywords)
	assert.True(t, first.Urgent)
	require.NotNil(t, first.EstimatedResolutionMin)
	assert.Equal(t, 90, *first.EstimatedResolutionMin)

	second := byID["a2"]
	require.NotNil(t, second)
	assert.Nil(t, second.EstimatedResolutionMin)
	assert.False(t, second.Urgent)
}

func TestInsertAnalysesEmptyIsNoop(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	require.NoError(t, client.InsertAnalyses(nil))
}

func TestKPISummary(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	require.NoError(t, client.InsertBatchRun(testRun("run-1")))

	rows := []*models.AnalyzedMessage{
		testAnalysis("a1", "run-1", "negative", "network", "critical", true),
		testAnalysis("a2", "run-1", "negative", "network", "high", true),
		testAnalysis("a3", "run-1", "positive", "offer", "low", false),
	}
	require.NoError(t, client.InsertAnalyses(rows))

	summary, err := client.KPISummary()
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalMessages)
	assert.Equal(t, 2, summary.BySentiment["negative"])
	assert.Equal(t, 1, summary.BySentiment["positive"])
	assert.Equal(t, 2, summary.ByCategory["network"])
	assert.Equal(t, 1, summary.ByPriority["critical"])
	assert.Equal(t, 2, summary.Urgent)
	assert.Equal(t, 2, summary.NeedsResponse)
	assert.InDelta(t, -0.5, summary.AvgSentimentScore, 0.001)
}
