package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/joelkehle/triage-assistant/internal/llm"

// Traced records one span per generation call.
type Traced struct {
	next     Generator
	provider string
	tracer   trace.Tracer
}

// NewTraced wraps next. A nil tp uses the global tracer provider.
func NewTraced(next Generator, provider string, tp trace.TracerProvider) *Traced {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Traced{next: next, provider: provider, tracer: tp.Tracer(tracerName)}
}

func (t *Traced) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	ctx, span := t.tracer.Start(ctx, "llm.generate", trace.WithAttributes(
		attribute.String("llm.provider", t.provider),
		attribute.String("llm.model", params.Model),
		attribute.Int("llm.prompt_chars", len(prompt)),
	))
	defer span.End()

	out, err := t.next.Generate(ctx, prompt, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_chars", len(out)))
	return out, nil
}
