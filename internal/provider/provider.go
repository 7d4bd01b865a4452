package provider

import (
	"context"
	"fmt"

	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/pkg/config"
)

const (
	NameOpenAI  = "openai"
	NameMistral = "mistral"
	NameGemini  = "gemini"
	NameOllama  = "ollama"
)

// Usage reports token consumption and the adapter's own cost estimate for a
// single call. CostUSD is a rough per-provider heuristic, not billing data.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// Classifier turns one message text into a normalized judgment. Failures are
// returned as *Error with a Kind from the recoverable taxonomy.
type Classifier interface {
	Name() string
	Model() string
	Classify(ctx context.Context, text string) (*models.Judgment, Usage, error)
}

// New builds the adapter for the named provider. An unknown name is a
// configuration error and must fail before any message is dispatched.
func New(name string, cfg config.ProviderConfig) (Classifier, error) {
	switch name {
	case NameOpenAI:
		return newOpenAI(cfg), nil
	case NameMistral:
		return newMistral(cfg), nil
	case NameGemini:
		return newGemini(cfg), nil
	case NameOllama:
		return newOllama(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// FromConfig resolves the per-provider block for name out of the full
// provider configuration.
func FromConfig(name string, providers config.ProvidersConfig) (Classifier, error) {
	switch name {
	case NameOpenAI:
		return New(name, providers.OpenAI)
	case NameMistral:
		return New(name, providers.Mistral)
	case NameGemini:
		return New(name, providers.Gemini)
	case NameOllama:
		return New(name, providers.Ollama)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
