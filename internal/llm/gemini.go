package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash-lite"

// GeminiModels is the subset of *genai.Models used for generation.
type GeminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiGenerator struct {
	models   GeminiModels
	defaults Params
}

func NewGeminiGenerator(ctx context.Context, apiKey string, defaults Params) (*GeminiGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{models: client.Models, defaults: defaults}, nil
}

func NewGeminiGeneratorFromEnv(ctx context.Context, defaults Params) (*GeminiGenerator, error) {
	return NewGeminiGenerator(ctx, os.Getenv("GEMINI_API_KEY"), defaults)
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	p := mergeParams(params, g.defaults)
	model := p.Model
	if model == "" {
		model = defaultGeminiModel
	}
	cfg := &genai.GenerateContentConfig{}
	if p.Temperature != nil {
		temperature := float32(*p.Temperature)
		cfg.Temperature = &temperature
	}
	if p.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.MaxTokens)
	}
	if p.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: p.System}}}
	}
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}
	result, err := g.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if result == nil {
		return "", errors.New("gemini returned no response")
	}
	return result.Text(), nil
}
