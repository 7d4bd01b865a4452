package provider

import (
	"context"

	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/pkg/config"
)

type mistralClient struct {
	api         apiClient
	apiKey      string
	model       string
	baseURL     string
	temperature float32
	maxTokens   int
}

type mistralRequest struct {
	Model          string           `json:"model"`
	Messages       []mistralMessage `json:"messages"`
	Temperature    float32          `json:"temperature"`
	MaxTokens      int              `json:"max_tokens"`
	ResponseFormat *mistralFormat   `json:"response_format,omitempty"`
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralFormat struct {
	Type string `json:"type"`
}

type mistralResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func newMistral(cfg config.ProviderConfig) *mistralClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.mistral.ai/v1"
	}

	return &mistralClient{
		api:         newAPIClient(NameMistral, cfg),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *mistralClient) Name() string  { return NameMistral }
func (c *mistralClient) Model() string { return c.model }

func (c *mistralClient) Classify(ctx context.Context, text string) (*models.Judgment, Usage, error) {
	if c.apiKey == "" {
		return nil, Usage{}, newError(KindUnauthenticated, NameMistral, "api key is not configured", nil)
	}

	reqBody := mistralRequest{
		Model: c.model,
		Messages: []mistralMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(text)},
		},
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &mistralFormat{Type: "json_object"},
	}

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var resp mistralResponse
	if err := c.api.postJSON(ctx, c.baseURL+"/chat/completions", headers, reqBody, &resp); err != nil {
		return nil, Usage{}, err
	}

	if len(resp.Choices) == 0 {
		return nil, Usage{}, newError(KindMalformedResponse, NameMistral, "response has no choices", nil)
	}

	judgment, err := parseJudgment(NameMistral, resp.Choices[0].Message.Content)
	if err != nil {
		return nil, Usage{}, err
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		CostUSD: meteredCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens,
			mistralPromptCostPer1K, mistralCompletionCostPer1K),
	}

	return judgment, usage, nil
}
