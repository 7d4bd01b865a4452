package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/pkg/circuitbreaker"
	"github.com/sentinelle/backend/pkg/config"
	"github.com/sentinelle/backend/pkg/logger"
	"github.com/sentinelle/backend/pkg/retry"
)

type openAIClient struct {
	client      *openai.Client
	apiKey      string
	model       string
	temperature float32
	maxTokens   int
	callTimeout time.Duration
	breaker     *circuitbreaker.Breaker
	retryConfig retry.Config
}

func newOpenAI(cfg config.ProviderConfig) *openAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	return &openAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		callTimeout: timeout,
		breaker: circuitbreaker.New(NameOpenAI, circuitbreaker.Config{
			OpenTimeout:      30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Logger:           logger.GetLogger(),
		}),
		retryConfig: retry.Config{
			MaxAttempts:     attempts,
			InitialDelay:    500 * time.Millisecond,
			MaxDelay:        5 * time.Second,
			Multiplier:      2.0,
			JitterFraction:  0.1,
			RetryableErrors: []error{&Error{Kind: KindUnavailable}},
			Logger:          logger.GetLogger(),
		},
	}
}

func (c *openAIClient) Name() string  { return NameOpenAI }
func (c *openAIClient) Model() string { return c.model }

func (c *openAIClient) Classify(ctx context.Context, text string) (*models.Judgment, Usage, error) {
	if c.apiKey == "" {
		return nil, Usage{}, newError(KindUnauthenticated, NameOpenAI, "api key is not configured", nil)
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(text)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var resp openai.ChatCompletionResponse

	err := c.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
			defer cancel()

			var callErr error
			resp, callErr = c.client.CreateChatCompletion(callCtx, req)
			if callErr != nil {
				return c.mapError(ctx, callErr)
			}
			return nil
		})
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		err = newError(KindUnavailable, NameOpenAI, "circuit breaker open", err)
	}
	if err != nil {
		return nil, Usage{}, err
	}

	if len(resp.Choices) == 0 {
		return nil, Usage{}, newError(KindMalformedResponse, NameOpenAI, "response has no choices", nil)
	}

	judgment, err := parseJudgment(NameOpenAI, resp.Choices[0].Message.Content)
	if err != nil {
		return nil, Usage{}, err
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		CostUSD: meteredCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens,
			openAIPromptCostPer1K, openAICompletionCostPer1K),
	}

	return judgment, usage, nil
}

// mapError translates go-openai errors onto the provider taxonomy.
func (c *openAIClient) mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, NameOpenAI, "call timed out", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return c.statusError(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return c.statusError(reqErr.HTTPStatusCode, err)
	}

	return newError(KindUnavailable, NameOpenAI, "transport error", err)
}

// Only 5xx is retryable; other 4xx are deterministic request rejections.
func (c *openAIClient) statusError(status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(KindUnauthenticated, NameOpenAI, "credential rejected", err)
	case status == http.StatusTooManyRequests:
		return newError(KindRateLimited, NameOpenAI, "upstream throttled", err)
	case status >= 500:
		return newError(KindUnavailable, NameOpenAI, "upstream error", err)
	default:
		return newError(KindMalformedResponse, NameOpenAI, "upstream rejected request", err)
	}
}
