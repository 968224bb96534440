package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type Options struct {
	// Provider is "anthropic", "gemini" or empty to pick whichever API key
	// is present in the environment (Anthropic first).
	Provider string
	Defaults Params
	MaxTries int
}

// NewFromEnv builds a traced, retrying Generator for the selected provider
// and returns the provider name that was used.
func NewFromEnv(ctx context.Context, opts Options) (Generator, string, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		switch {
		case strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")) != "":
			provider = ProviderAnthropic
		case strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) != "":
			provider = ProviderGemini
		default:
			return nil, "", ErrNoProvider
		}
	}

	var base Generator
	switch provider {
	case ProviderAnthropic:
		g, err := NewAnthropicGeneratorFromEnv(opts.Defaults)
		if err != nil {
			return nil, "", err
		}
		base = g
	case ProviderGemini:
		g, err := NewGeminiGeneratorFromEnv(ctx, opts.Defaults)
		if err != nil {
			return nil, "", err
		}
		base = g
	default:
		return nil, "", fmt.Errorf("unknown provider %q", opts.Provider)
	}
	return NewTraced(NewRetrying(base, opts.MaxTries), provider, nil), provider, nil
}
