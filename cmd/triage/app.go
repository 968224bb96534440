package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joelkehle/triage-assistant/internal/assistant"
	"github.com/joelkehle/triage-assistant/internal/config"
	"github.com/joelkehle/triage-assistant/internal/docextract"
	"github.com/joelkehle/triage-assistant/internal/history"
	"github.com/joelkehle/triage-assistant/internal/llm"
	"github.com/joelkehle/triage-assistant/internal/render"
	"github.com/joelkehle/triage-assistant/internal/telemetry"
)

type app struct {
	svc      *assistant.Service
	store    history.Store
	shutdown telemetry.ShutdownFunc
}

func (a *app) Close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Printf("close history: %v", err)
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}
}

func openHistory(c config.HistoryConfig) (history.Store, error) {
	if c.Path == "" {
		return history.NewMemoryStore(), nil
	}
	return history.NewSQLiteStore(c.Path)
}

func newPDFRenderer(c config.RenderConfig) (*render.ChromiumPDFRenderer, error) {
	return render.NewChromiumPDFRenderer(render.PDFOptions{ChromePath: c.ChromePath, Timeout: c.Timeout, Paper: c.Paper})
}

// newApp wires the service from configuration. needLLM is false for
// commands that only read history.
func newApp(ctx context.Context, c config.Config, needLLM bool) (*app, error) {
	_, shutdown, err := telemetry.Setup(ctx, c.Telemetry.Endpoint, c.Telemetry.ServiceName)
	if err != nil {
		return nil, err
	}
	a := &app{shutdown: shutdown}

	store, err := openHistory(c.History)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("open history: %w", err)
	}
	a.store = store

	params := llm.Params{Model: c.LLM.Model, MaxTokens: c.LLM.MaxTokens, Temperature: llm.Float(c.LLM.Temperature)}
	var gen llm.Generator = llm.GeneratorFunc(func(context.Context, string, llm.Params) (string, error) {
		return "", llm.ErrNoProvider
	})
	if needLLM {
		g, provider, err := llm.NewFromEnv(ctx, llm.Options{Provider: c.LLM.Provider, Defaults: params, MaxTries: c.LLM.MaxTries})
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("configure generation service: %w", err)
		}
		log.Printf("generation provider=%s model=%s", provider, c.LLM.Model)
		gen = g
	}

	extractor := docextract.NewLocal()
	if c.Extract.PdfToTextPath != "" {
		extractor.PdfToTextPath = c.Extract.PdfToTextPath
	}
	a.svc = assistant.NewService(gen, extractor, store, assistant.Options{Params: params, Timeout: c.LLM.Timeout})
	return a, nil
}
