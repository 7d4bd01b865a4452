package models

import "time"

// AnalyzedMessage is one persisted classification row, flattened for SQL.
type AnalyzedMessage struct {
	ID                     string    `json:"id"`
	BatchID                string    `json:"batch_id"`
	MessageID              string    `json:"message_id"`
	Author                 string    `json:"author"`
	Text                   string    `json:"text"`
	PostedAt               time.Time `json:"posted_at"`
	Likes                  int       `json:"likes"`
	Reposts                int       `json:"reposts"`
	Replies                int       `json:"replies"`
	Sentiment              string    `json:"sentiment"`
	SentimentScore         float64   `json:"sentiment_score"`
	Category               string    `json:"category"`
	Priority               string    `json:"priority"`
	Keywords               []string  `json:"keywords"`
	Urgent                 bool      `json:"urgent"`
	NeedsResponse          bool      `json:"needs_response"`
	EstimatedResolutionMin *int      `json:"estimated_resolution_min,omitempty"`
	Provider               string    `json:"provider"`
	Model                  string    `json:"model"`
	FromCache              bool      `json:"from_cache"`
	CreatedAt              time.Time `json:"created_at"`
}

type BatchRun struct {
	ID            string     `json:"id"`
	Provider      string     `json:"provider"`
	MessageCount  int        `json:"message_count"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	CacheHits     int        `json:"cache_hits"`
	ProviderCalls int        `json:"provider_calls"`
	CostUSD       float64    `json:"cost_usd"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// KPISummary aggregates persisted classifications for the dashboard layer.
type KPISummary struct {
	TotalMessages     int            `json:"total_messages"`
	AvgSentimentScore float64        `json:"avg_sentiment_score"`
	BySentiment       map[string]int `json:"by_sentiment"`
	ByCategory        map[string]int `json:"by_category"`
	ByPriority        map[string]int `json:"by_priority"`
	NeedsResponse     int            `json:"needs_response"`
	Urgent            int            `json:"urgent"`
}
