package llm

import (
	"context"
	"errors"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = anthropic.ModelClaudeSonnet4_20250514

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

type AnthropicGenerator struct {
	messages AnthropicMessager
	defaults Params
}

func NewAnthropicGenerator(apiKey string, defaults Params) (*AnthropicGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key not configured")
	}
	return &AnthropicGenerator{messages: newAnthropicClient(apiKey), defaults: defaults}, nil
}

func NewAnthropicGeneratorFromEnv(defaults Params) (*AnthropicGenerator, error) {
	return NewAnthropicGenerator(os.Getenv("ANTHROPIC_API_KEY"), defaults)
}

func (a *AnthropicGenerator) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	p := mergeParams(params, a.defaults)
	model := anthropic.Model(p.Model)
	if p.Model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	req := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	}
	if p.Temperature != nil {
		req.Temperature = anthropic.Float(*p.Temperature)
	}
	if p.System != "" {
		req.System = []anthropic.TextBlockParam{{Text: p.System}}
	}
	resp, err := a.messages.New(ctx, req)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// mergeParams fills zero fields of p from defaults.
func mergeParams(p, defaults Params) Params {
	if p.Model == "" {
		p.Model = defaults.Model
	}
	if p.System == "" {
		p.System = defaults.System
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = defaults.MaxTokens
	}
	if p.Temperature == nil {
		p.Temperature = defaults.Temperature
	}
	return p
}
