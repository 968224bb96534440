package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/joelkehle/triage-assistant/internal/docextract"
	"github.com/joelkehle/triage-assistant/internal/history"
	"github.com/joelkehle/triage-assistant/internal/llm"
)

type fakeGenerator struct {
	out     string
	err     error
	prompts []string
	params  llm.Params
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, params llm.Params) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.params = params
	return f.out, f.err
}

type fakeExtractor struct {
	res docextract.Result
	err error
}

func (f fakeExtractor) ExtractText(context.Context, []byte, string) (docextract.Result, error) {
	return f.res, f.err
}

type failingStore struct{ history.MemoryStore }

func (*failingStore) Save(context.Context, *history.Consultation) error {
	return errors.New("disk full")
}

func TestPredictParsesAndRecords(t *testing.T) {
	gen := &fakeGenerator{out: "```\nI'm sorry you're unwell.\nLikely Conditions:\n- **High**: Flu - fever and cough\nDisclaimer:\nNot a diagnosis.\n```"}
	store := history.NewMemoryStore()
	svc := NewService(gen, nil, store, Options{})

	got, err := svc.Predict(context.Background(), SymptomInput{Symptoms: " fever and cough ", Age: 34, Duration: "2 days"})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(got.Result.Conditions) != 1 || got.Result.Conditions[0].Title != "Flu" {
		t.Fatalf("unexpected conditions %+v", got.Result.Conditions)
	}
	if got.Result.Disclaimer != "Not a diagnosis." {
		t.Fatalf("unexpected disclaimer %q", got.Result.Disclaimer)
	}
	if strings.Contains(got.Raw, "```") {
		t.Fatalf("expected code fences stripped, got %q", got.Raw)
	}
	if !strings.Contains(got.Markdown, "## Likely Conditions") {
		t.Fatalf("expected rendered markdown, got %q", got.Markdown)
	}
	if got.ID == "" {
		t.Fatal("expected consultation id")
	}
	stored, err := store.Get(context.Background(), got.ID)
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if stored.Input != "fever and cough" || stored.Kind != history.KindPrediction {
		t.Fatalf("unexpected stored consultation %+v", stored)
	}

	prompt := gen.prompts[0]
	for _, want := range []string{"Symptoms: fever and cough", "Age: 34", "Duration: 2 days", "Likely Conditions:", "Red Flags:"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if gen.params.System == "" || gen.params.MaxTokens != defaultMaxTokens {
		t.Fatalf("expected default params, got %+v", gen.params)
	}
}

func TestPredictPassesConfiguredZeroTemperature(t *testing.T) {
	gen := &fakeGenerator{out: "Likely Conditions:\n- **Low**: Cold"}
	svc := NewService(gen, nil, nil, Options{Params: llm.Params{Temperature: llm.Float(0)}})
	if _, err := svc.Predict(context.Background(), SymptomInput{Symptoms: "sniffles"}); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if gen.params.Temperature == nil || *gen.params.Temperature != 0 {
		t.Fatalf("expected temperature 0, got %v", gen.params.Temperature)
	}

	gen = &fakeGenerator{out: "Likely Conditions:\n- **Low**: Cold"}
	if _, err := NewService(gen, nil, nil, Options{}).Predict(context.Background(), SymptomInput{Symptoms: "sniffles"}); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if gen.params.Temperature == nil || *gen.params.Temperature != defaultTemperature {
		t.Fatalf("expected default temperature, got %v", gen.params.Temperature)
	}
}

func TestPredictValidatesInput(t *testing.T) {
	svc := NewService(&fakeGenerator{out: "x"}, nil, nil, Options{})
	if _, err := svc.Predict(context.Background(), SymptomInput{Symptoms: "   "}); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	long := strings.Repeat("a", MaxSymptomsChars+1)
	if _, err := svc.Predict(context.Background(), SymptomInput{Symptoms: long}); !errors.Is(err, ErrInputTooLong) {
		t.Fatalf("expected ErrInputTooLong, got %v", err)
	}
}

func TestPredictWrapsUpstreamFailure(t *testing.T) {
	cause := errors.New("connection reset")
	svc := NewService(&fakeGenerator{err: cause}, nil, nil, Options{})
	_, err := svc.Predict(context.Background(), SymptomInput{Symptoms: "headache"})
	if !errors.Is(err, ErrUpstream) || !errors.Is(err, cause) {
		t.Fatalf("expected upstream error wrapping cause, got %v", err)
	}
}

func TestPredictSurvivesHistoryFailure(t *testing.T) {
	svc := NewService(&fakeGenerator{out: "Rest."}, nil, &failingStore{}, Options{})
	got, err := svc.Predict(context.Background(), SymptomInput{Symptoms: "tired"})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got.ID != "" {
		t.Fatalf("expected empty id when save fails, got %q", got.ID)
	}
	if len(got.Result.IntroParagraphs) != 1 {
		t.Fatalf("expected intro fallback, got %+v", got.Result)
	}
}

func TestAnalyzeReport(t *testing.T) {
	gen := &fakeGenerator{out: "**Summary:** Mild infection\nKey Findings:\n- Elevated WBC\nDiagnoses:\n- Viral infection (med)"}
	ext := fakeExtractor{res: docextract.Result{Text: "WBC 12.1 H", MIMEType: "application/pdf", Method: "pdftotext"}}
	store := history.NewMemoryStore()
	svc := NewService(gen, ext, store, Options{})

	got, err := svc.AnalyzeReport(context.Background(), ReportInput{Filename: "cbc.pdf", Data: []byte("%PDF")})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(got.Result.SummaryTitle, "Mild infection") || len(got.Result.Findings) != 1 {
		t.Fatalf("unexpected report %+v", got.Result)
	}
	if got.Extraction.Method != "pdftotext" {
		t.Fatalf("unexpected extraction %+v", got.Extraction)
	}
	if !strings.Contains(gen.prompts[0], "WBC 12.1 H") || !strings.Contains(gen.prompts[0], "cbc.pdf") {
		t.Fatalf("prompt missing report text:\n%s", gen.prompts[0])
	}

	view, err := svc.Consultation(context.Background(), got.ID)
	if err != nil {
		t.Fatalf("consultation: %v", err)
	}
	if view.Report == nil || view.Prediction != nil || view.Title() != ReportTitle || view.Source != "pdftotext" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestAnalyzeReportErrors(t *testing.T) {
	gen := &fakeGenerator{out: "x"}
	if _, err := NewService(gen, nil, nil, Options{}).AnalyzeReport(context.Background(), ReportInput{Data: []byte("x")}); !errors.Is(err, ErrNoExtractor) {
		t.Fatalf("expected ErrNoExtractor, got %v", err)
	}
	svc := NewService(gen, fakeExtractor{err: docextract.ErrUnsupportedType}, nil, Options{})
	if _, err := svc.AnalyzeReport(context.Background(), ReportInput{}); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	if _, err := svc.AnalyzeReport(context.Background(), ReportInput{Filename: "x.png", Data: []byte{1}}); !errors.Is(err, docextract.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if len(gen.prompts) != 0 {
		t.Fatal("generator should not be called when extraction fails")
	}
}

func TestReparsePrediction(t *testing.T) {
	v := Reparse(history.Consultation{Kind: history.KindPrediction, Raw: "Red flags\n- Fainting"})
	if v.Prediction == nil || len(v.Prediction.RedFlags) != 1 || v.Title() != PredictionTitle {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestConsultationsWithoutStore(t *testing.T) {
	svc := NewService(&fakeGenerator{}, nil, nil, Options{})
	list, err := svc.Consultations(context.Background(), 10)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v %v", list, err)
	}
	if _, err := svc.Consultation(context.Background(), "x"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
