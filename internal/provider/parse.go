package provider

import (
	"encoding/json"
	"strings"

	"github.com/sentinelle/backend/internal/models"
)

type judgmentPayload struct {
	Sentiment              string   `json:"sentiment"`
	SentimentScore         float64  `json:"sentiment_score"`
	Category               string   `json:"category"`
	Priority               string   `json:"priority"`
	Keywords               []string `json:"keywords"`
	Urgent                 bool     `json:"urgent"`
	NeedsResponse          bool     `json:"needs_response"`
	EstimatedResolutionMin *int     `json:"estimated_resolution_min"`
}

// parseJudgment decodes a provider reply into a validated judgment. Models
// routinely wrap the JSON in markdown code fences, so known wrappers are
// stripped before structural parsing. Any schema violation is a
// MalformedResponse failure, never a crash.
func parseJudgment(providerName, content string) (*models.Judgment, error) {
	cleaned := stripFences(content)

	var payload judgmentPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, newError(KindMalformedResponse, providerName, "response is not valid JSON", err)
	}

	judgment := &models.Judgment{
		Sentiment:              models.Sentiment(strings.ToLower(strings.TrimSpace(payload.Sentiment))),
		SentimentScore:         payload.SentimentScore,
		Category:               models.Category(strings.ToLower(strings.TrimSpace(payload.Category))),
		Priority:               models.Priority(strings.ToLower(strings.TrimSpace(payload.Priority))),
		Keywords:               payload.Keywords,
		Urgent:                 payload.Urgent,
		NeedsResponse:          payload.NeedsResponse,
		EstimatedResolutionMin: payload.EstimatedResolutionMin,
	}

	if err := judgment.Validate(); err != nil {
		return nil, newError(KindMalformedResponse, providerName, "response violates schema", err)
	}

	return judgment, nil
}

func stripFences(content string) string {
	s := strings.TrimSpace(content)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	return s
}
