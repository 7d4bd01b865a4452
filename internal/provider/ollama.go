package provider

import (
	"context"

	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/pkg/config"
)

// ollamaClient talks to a self-hosted Ollama instance. No credential is
// required and cost accounting uses a flat per-call constant.
type ollamaClient struct {
	api         apiClient
	model       string
	baseURL     string
	temperature float32
	maxTokens   int
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

func newOllama(cfg config.ProviderConfig) *ollamaClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &ollamaClient{
		api:         newAPIClient(NameOllama, cfg),
		model:       cfg.Model,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *ollamaClient) Name() string  { return NameOllama }
func (c *ollamaClient) Model() string { return c.model }

func (c *ollamaClient) Classify(ctx context.Context, text string) (*models.Judgment, Usage, error) {
	reqBody := ollamaRequest{
		Model: c.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(text)},
		},
		Stream: false,
		Format: "json",
		Options: ollamaOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	}

	var resp ollamaResponse
	if err := c.api.postJSON(ctx, c.baseURL+"/api/chat", nil, reqBody, &resp); err != nil {
		return nil, Usage{}, err
	}

	judgment, err := parseJudgment(NameOllama, resp.Message.Content)
	if err != nil {
		return nil, Usage{}, err
	}

	usage := Usage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		CostUSD:          ollamaFlatCostPerCall,
	}

	return judgment, usage, nil
}
