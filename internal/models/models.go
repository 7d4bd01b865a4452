package models

import (
	"fmt"
	"strings"
	"time"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentUnknown  Sentiment = "unknown"
)

type Category string

const (
	CategoryNetwork         Category = "network"
	CategoryBilling         Category = "billing"
	CategoryTechnical       Category = "technical"
	CategoryCommercial      Category = "commercial"
	CategoryCustomerService Category = "customer_service"
	CategoryOffer           Category = "offer"
	CategoryEquipment       Category = "equipment"
	CategoryOther           Category = "other"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Message is one inbound social-media post. Inputs are read-only to the
// engine; validation happens at ingestion.
type Message struct {
	ID       string    `json:"id"`
	Author   string    `json:"author"`
	Text     string    `json:"text"`
	PostedAt time.Time `json:"posted_at"`
	Likes    int       `json:"likes"`
	Reposts  int       `json:"reposts"`
	Replies  int       `json:"replies"`
}

// Judgment holds the provider-derived classification fields. These are the
// fields shared between messages with identical normalized text, so this is
// what the fingerprint cache stores.
type Judgment struct {
	Sentiment              Sentiment `json:"sentiment"`
	SentimentScore         float64   `json:"sentiment_score"`
	Category               Category  `json:"category"`
	Priority               Priority  `json:"priority"`
	Keywords               []string  `json:"keywords"`
	Urgent                 bool      `json:"urgent"`
	NeedsResponse          bool      `json:"needs_response"`
	EstimatedResolutionMin *int      `json:"estimated_resolution_min,omitempty"`
}

// Classification is the full output for one message: the judgment plus the
// identity of the message it was produced for and provenance of the call.
type Classification struct {
	MessageID  string    `json:"message_id"`
	Author     string    `json:"author"`
	PostedAt   time.Time `json:"posted_at"`
	Judgment   Judgment  `json:"judgment"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	FromCache  bool      `json:"from_cache"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Result is the positional outcome for one input message. Exactly one of
// Classification and Err is set.
type Result struct {
	Index          int             `json:"index"`
	MessageID      string          `json:"message_id"`
	Classification *Classification `json:"classification,omitempty"`
	Err            error           `json:"-"`
	ErrorMessage   string          `json:"error,omitempty"`
}

func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message id is empty")
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("message %s: text is empty", m.ID)
	}
	return nil
}

// Validate checks the closed enum sets and the score range. The engine
// accepts the provider's flags as declared and does not re-derive them.
func (j Judgment) Validate() error {
	switch j.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentUnknown:
	default:
		return fmt.Errorf("invalid sentiment %q", j.Sentiment)
	}

	switch j.Category {
	case CategoryNetwork, CategoryBilling, CategoryTechnical, CategoryCommercial,
		CategoryCustomerService, CategoryOffer, CategoryEquipment, CategoryOther:
	default:
		return fmt.Errorf("invalid category %q", j.Category)
	}

	switch j.Priority {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return fmt.Errorf("invalid priority %q", j.Priority)
	}

	if j.SentimentScore < -1.0 || j.SentimentScore > 1.0 {
		return fmt.Errorf("sentiment score %v out of [-1, 1]", j.SentimentScore)
	}

	if j.EstimatedResolutionMin != nil && *j.EstimatedResolutionMin < 0 {
		return fmt.Errorf("estimated resolution minutes %d is negative", *j.EstimatedResolutionMin)
	}

	return nil
}
