// Package assistant runs symptom predictions and report summaries: it builds
// the prompt, calls the generation service, parses the free-text answer and
// records the consultation.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joelkehle/triage-assistant/internal/docextract"
	"github.com/joelkehle/triage-assistant/internal/history"
	"github.com/joelkehle/triage-assistant/internal/llm"
	"github.com/joelkehle/triage-assistant/internal/render"
	"github.com/joelkehle/triage-assistant/internal/responseparse"
)

const (
	DefaultTimeout     = 90 * time.Second
	MaxSymptomsChars   = 4000
	PredictionTitle    = "Symptom Assessment"
	ReportTitle        = "Report Summary"
	defaultMaxTokens   = 2048
	defaultTemperature = 0.2
)

var (
	ErrEmptyInput    = errors.New("input is required")
	ErrInputTooLong  = errors.New("input is too long")
	ErrUpstream      = errors.New("generation service failed")
	ErrNoExtractor   = errors.New("document extraction is not configured")
	ErrEmptyDocument = errors.New("document is empty")
)

type SymptomInput struct {
	Symptoms string `json:"symptoms"`
	Age      int    `json:"age,omitempty"`
	Sex      string `json:"sex,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type ReportInput struct {
	Filename string
	MIMEType string
	Data     []byte
}

type Prediction struct {
	ID       string                         `json:"id,omitempty"`
	Raw      string                         `json:"raw"`
	Result   responseparse.PredictionResult `json:"prediction"`
	Markdown string                         `json:"markdown"`
}

type Report struct {
	ID         string                     `json:"id,omitempty"`
	Raw        string                     `json:"raw"`
	Result     responseparse.ReportResult `json:"report"`
	Extraction docextract.Result          `json:"extraction"`
	Markdown   string                     `json:"markdown"`
}

type Options struct {
	Params  llm.Params
	Timeout time.Duration
}

type Service struct {
	gen       llm.Generator
	extractor docextract.Extractor
	store     history.Store
	params    llm.Params
	timeout   time.Duration
}

// NewService wires the collaborators. extractor and store may be nil; report
// analysis then fails with ErrNoExtractor and nothing is recorded.
func NewService(gen llm.Generator, extractor docextract.Extractor, store history.Store, opts Options) *Service {
	params := opts.Params
	if params.System == "" {
		params.System = systemPrompt
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = defaultMaxTokens
	}
	if params.Temperature == nil {
		params.Temperature = llm.Float(defaultTemperature)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{gen: gen, extractor: extractor, store: store, params: params, timeout: timeout}
}

func (s *Service) Predict(ctx context.Context, in SymptomInput) (Prediction, error) {
	symptoms := strings.TrimSpace(in.Symptoms)
	if symptoms == "" {
		return Prediction{}, fmt.Errorf("%w: symptoms", ErrEmptyInput)
	}
	if len(symptoms) > MaxSymptomsChars {
		return Prediction{}, fmt.Errorf("%w: %d chars (max %d)", ErrInputTooLong, len(symptoms), MaxSymptomsChars)
	}

	raw, err := s.generate(ctx, buildPredictionPrompt(in))
	if err != nil {
		return Prediction{}, err
	}
	result := responseparse.ParsePrediction(raw)
	out := Prediction{Raw: raw, Result: result, Markdown: render.PredictionMarkdown(result)}
	out.ID = s.record(ctx, &history.Consultation{Kind: history.KindPrediction, Input: symptoms, Raw: raw})
	log.Printf("prediction complete id=%s conditions=%d red_flags=%d", out.ID, len(result.Conditions), len(result.RedFlags))
	return out, nil
}

func (s *Service) AnalyzeReport(ctx context.Context, in ReportInput) (Report, error) {
	if s.extractor == nil {
		return Report{}, ErrNoExtractor
	}
	if len(in.Data) == 0 {
		return Report{}, ErrEmptyDocument
	}
	extraction, err := s.extractor.ExtractText(ctx, in.Data, in.MIMEType)
	if err != nil {
		return Report{}, fmt.Errorf("extract %s: %w", in.Filename, err)
	}
	log.Printf("report extracted file=%s mime=%s method=%s chars=%d truncated=%v",
		in.Filename, extraction.MIMEType, extraction.Method, len(extraction.Text), extraction.Truncated)

	raw, err := s.generate(ctx, buildReportPrompt(in.Filename, extraction.Text))
	if err != nil {
		return Report{}, err
	}
	result := responseparse.ParseReport(raw)
	out := Report{Raw: raw, Result: result, Extraction: extraction, Markdown: render.ReportMarkdown(result)}
	out.ID = s.record(ctx, &history.Consultation{Kind: history.KindReport, Input: in.Filename, Source: extraction.Method, Raw: raw})
	log.Printf("report complete id=%s findings=%d diagnoses=%d", out.ID, len(result.Findings), len(result.Diagnoses))
	return out, nil
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.gen.Generate(ctx, prompt, s.params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return llm.StripCodeFences(raw), nil
}

// record stores the consultation and returns its ID, or "" when there is no
// store or the write failed.
func (s *Service) record(ctx context.Context, c *history.Consultation) string {
	if s.store == nil {
		return ""
	}
	if err := s.store.Save(ctx, c); err != nil {
		log.Printf("history save failed kind=%s err=%v", c.Kind, err)
		return ""
	}
	return c.ID
}

// ConsultationView is a stored consultation with its structured output
// derived again from the raw response.
type ConsultationView struct {
	history.Consultation
	Prediction *responseparse.PredictionResult `json:"prediction,omitempty"`
	Report     *responseparse.ReportResult     `json:"report,omitempty"`
	Markdown   string                          `json:"markdown"`
}

func (v ConsultationView) Title() string {
	if v.Kind == history.KindReport {
		return ReportTitle
	}
	return PredictionTitle
}

func Reparse(c history.Consultation) ConsultationView {
	v := ConsultationView{Consultation: c}
	switch c.Kind {
	case history.KindReport:
		r := responseparse.ParseReport(c.Raw)
		v.Report = &r
		v.Markdown = render.ReportMarkdown(r)
	default:
		p := responseparse.ParsePrediction(c.Raw)
		v.Prediction = &p
		v.Markdown = render.PredictionMarkdown(p)
	}
	return v
}

func (s *Service) Consultation(ctx context.Context, id string) (ConsultationView, error) {
	if s.store == nil {
		return ConsultationView{}, history.ErrNotFound
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return ConsultationView{}, err
	}
	return Reparse(c), nil
}

func (s *Service) Consultations(ctx context.Context, limit int) ([]history.Consultation, error) {
	if s.store == nil {
		return []history.Consultation{}, nil
	}
	return s.store.List(ctx, limit)
}
