package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sentinelle/backend/pkg/circuitbreaker"
	"github.com/sentinelle/backend/pkg/config"
	"github.com/sentinelle/backend/pkg/logger"
	"github.com/sentinelle/backend/pkg/retry"
)

// apiClient is the transport shared by the raw-HTTP adapters. Every call runs
// inside a per-provider circuit breaker; transient upstream outages
// (Unavailable) are retried, while upstream rate limiting stays terminal for
// the message so the batch caller decides about resubmission.
type apiClient struct {
	providerName string
	httpClient   *http.Client
	breaker      *circuitbreaker.Breaker
	retryConfig  retry.Config
	callTimeout  time.Duration
}

func newAPIClient(providerName string, cfg config.ProviderConfig) apiClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	return apiClient{
		providerName: providerName,
		httpClient:   &http.Client{},
		breaker: circuitbreaker.New(providerName, circuitbreaker.Config{
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
		callTimeout: timeout,
	}
}

// postJSON issues one JSON POST and decodes the reply into out, mapping
// transport and status failures onto the provider error taxonomy.
func (a *apiClient) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	err = a.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, a.retryConfig, func() error {
			return a.doOnce(ctx, url, headers, payload, out)
		})
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return newError(KindUnavailable, a.providerName, "circuit breaker open", err)
	}

	return err
}

func (a *apiClient) doOnce(ctx context.Context, url string, headers map[string]string, payload []byte, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return newError(KindUnavailable, a.providerName, "failed to build request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return newError(KindTimeout, a.providerName, "call timed out", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newError(KindUnavailable, a.providerName, "transport error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return a.statusError(resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newError(KindMalformedResponse, a.providerName, "failed to decode response body", err)
	}

	return nil
}

// statusError maps an upstream HTTP status onto the failure taxonomy. Only
// 5xx becomes Unavailable (and therefore retryable); other 4xx are
// deterministic rejections of the request we built, so retrying them would
// only burn attempts and open the breaker for nothing.
func (a *apiClient) statusError(status int, body string) *Error {
	msg := fmt.Sprintf("upstream returned %d: %s", status, body)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(KindUnauthenticated, a.providerName, msg, nil)
	case status == http.StatusTooManyRequests:
		return newError(KindRateLimited, a.providerName, msg, nil)
	case status >= 500:
		return newError(KindUnavailable, a.providerName, msg, nil)
	default:
		return newError(KindMalformedResponse, a.providerName, msg, nil)
	}
}
