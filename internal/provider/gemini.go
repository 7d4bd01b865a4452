package provider

import (
	"context"
	"fmt"

	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/pkg/config"
)

type geminiClient struct {
	api         apiClient
	apiKey      string
	model       string
	baseURL     string
	temperature float32
	maxTokens   int
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature      float32 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func newGemini(cfg config.ProviderConfig) *geminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	return &geminiClient{
		api:         newAPIClient(NameGemini, cfg),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *geminiClient) Name() string  { return NameGemini }
func (c *geminiClient) Model() string { return c.model }

func (c *geminiClient) Classify(ctx context.Context, text string) (*models.Judgment, Usage, error) {
	if c.apiKey == "" {
		return nil, Usage{}, newError(KindUnauthenticated, NameGemini, "api key is not configured", nil)
	}

	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt(text)}}},
		},
		GenerationConfig: geminiGenConfig{
			Temperature:      c.temperature,
			MaxOutputTokens:  c.maxTokens,
			ResponseMimeType: "application/json",
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	headers := map[string]string{"x-goog-api-key": c.apiKey}

	var resp geminiResponse
	if err := c.api.postJSON(ctx, url, headers, reqBody, &resp); err != nil {
		return nil, Usage{}, err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, Usage{}, newError(KindMalformedResponse, NameGemini, "response has no candidates", nil)
	}

	judgment, err := parseJudgment(NameGemini, resp.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, Usage{}, err
	}

	usage := Usage{
		PromptTokens:     resp.UsageMetadata.PromptTokenCount,
		CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		CostUSD: meteredCost(resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount,
			geminiPromptCostPer1K, geminiCompletionCostPer1K),
	}

	return judgment, usage, nil
}
