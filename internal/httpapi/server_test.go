package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/joelkehle/triage-assistant/internal/assistant"
	"github.com/joelkehle/triage-assistant/internal/docextract"
	"github.com/joelkehle/triage-assistant/internal/history"
	"github.com/joelkehle/triage-assistant/internal/llm"
)

const predictionAnswer = `Based on what you describe, a viral illness is most likely.
Likely Conditions:
- **High**: Influenza - fever, aches and cough
- **Low**: Strep throat - sore throat without cough
Red Flags:
- Difficulty breathing
Self-care:
- Rest and fluids
Specialist:
- General practitioner
Disclaimer:
This is not a diagnosis.`

const reportAnswer = `**Summary: Complete blood count**
The panel is mostly within range.
Key Findings:
- WBC slightly elevated
Diagnoses:
- Possible mild infection
Follow-up:
- Repeat CBC in two weeks`

// scriptedGenerator answers by prompt content. Prompts containing "slow"
// block until release is closed.
type scriptedGenerator struct {
	err     error
	started chan struct{}
	release chan struct{}
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string, _ llm.Params) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if strings.Contains(prompt, "slow") && g.release != nil {
		close(g.started)
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "Likely Conditions:\n- **Medium**: Stale result", nil
	}
	if strings.Contains(prompt, "Report file") || strings.Contains(prompt, "REPORT TEXT") {
		return reportAnswer, nil
	}
	return predictionAnswer, nil
}

type fakePDFRenderer struct {
	title, markdown string
	err             error
}

func (f *fakePDFRenderer) Render(_ context.Context, title, markdown string) ([]byte, error) {
	f.title, f.markdown = title, markdown
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7 fake"), nil
}

func setupServer(t *testing.T, gen llm.Generator, opts Options) (http.Handler, *history.MemoryStore) {
	t.Helper()
	store := history.NewMemoryStore()
	svc := assistant.NewService(gen, docextract.NewLocal(), store, assistant.Options{})
	return NewServer(svc, opts), store
}

func postJSON(t *testing.T, h http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	blob, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(blob))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func uploadFile(t *testing.T, h http.Handler, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload-report", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v body=%s", err, rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h, _ := setupServer(t, &scriptedGenerator{}, Options{})
	rr := get(h, "/health")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]any
	decode(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Fatalf("unexpected health %v", resp)
	}

	rr = postJSON(t, h, "/health", map[string]any{}, nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestPredict(t *testing.T) {
	h, store := setupServer(t, &scriptedGenerator{}, Options{})
	rr := postJSON(t, h, "/predict", map[string]any{"symptoms": "fever and cough", "age": 30}, nil)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		ID         string `json:"id"`
		Raw        string `json:"raw"`
		Prediction struct {
			IntroParagraphs []string `json:"intro_paragraphs"`
			Conditions      []struct {
				Title           string `json:"title"`
				ConfidenceScore int    `json:"confidence_score"`
			} `json:"conditions"`
			RedFlags   []string `json:"red_flags"`
			Disclaimer string   `json:"disclaimer"`
		} `json:"prediction"`
	}
	decode(t, rr, &resp)
	if len(resp.Prediction.Conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %+v", resp.Prediction.Conditions)
	}
	if resp.Prediction.Conditions[0].Title != "Influenza" || resp.Prediction.Conditions[0].ConfidenceScore != 75 {
		t.Fatalf("unexpected first condition %+v", resp.Prediction.Conditions[0])
	}
	if resp.Prediction.Disclaimer != "This is not a diagnosis." {
		t.Fatalf("unexpected disclaimer %q", resp.Prediction.Disclaimer)
	}
	if len(resp.Prediction.RedFlags) != 1 {
		t.Fatalf("unexpected red flags %v", resp.Prediction.RedFlags)
	}
	if _, err := store.Get(context.Background(), resp.ID); err != nil {
		t.Fatalf("expected consultation stored: %v", err)
	}
}

func TestPredictErrors(t *testing.T) {
	h, _ := setupServer(t, &scriptedGenerator{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 400 {
		t.Fatalf("expected 400 for bad json, got %d", rr.Code)
	}

	rr = postJSON(t, h, "/predict", map[string]any{"symptoms": "  "}, nil)
	if rr.Code != 400 {
		t.Fatalf("expected 400 for empty symptoms, got %d", rr.Code)
	}

	failing, _ := setupServer(t, &scriptedGenerator{err: errors.New("503 overloaded")}, Options{})
	rr = postJSON(t, failing, "/predict", map[string]any{"symptoms": "headache"}, nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("expected plain text upstream error, got %q", rr.Header().Get("Content-Type"))
	}
	if strings.Contains(rr.Body.String(), "overloaded") {
		t.Fatalf("upstream detail leaked to client: %q", rr.Body.String())
	}
}

func TestUploadReport(t *testing.T) {
	h, _ := setupServer(t, &scriptedGenerator{}, Options{})
	rr := uploadFile(t, h, "cbc.txt", []byte("WBC 11.2 x10^9/L (H)\nHb 13.9 g/dL\n"))
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		ID     string `json:"id"`
		Report struct {
			SummaryTitle string   `json:"summary_title"`
			Intro        []string `json:"intro"`
			Findings     []string `json:"findings"`
			Followups    []string `json:"followups"`
		} `json:"report"`
		Extraction struct {
			MIMEType string `json:"mime_type"`
			Method   string `json:"method"`
		} `json:"extraction"`
	}
	decode(t, rr, &resp)
	if resp.Report.SummaryTitle != "**Summary: Complete blood count**" {
		t.Fatalf("unexpected summary %q", resp.Report.SummaryTitle)
	}
	if len(resp.Report.Intro) != 1 || len(resp.Report.Findings) != 1 || len(resp.Report.Followups) != 1 {
		t.Fatalf("unexpected report %+v", resp.Report)
	}
	if resp.Extraction.Method != "passthrough" || resp.Extraction.MIMEType != "text/plain" {
		t.Fatalf("unexpected extraction %+v", resp.Extraction)
	}
}

func TestUploadReportErrors(t *testing.T) {
	h, _ := setupServer(t, &scriptedGenerator{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/upload-report", strings.NewReader("plain"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 400 {
		t.Fatalf("expected 400 for non-multipart body, got %d", rr.Code)
	}

	rr = uploadFile(t, h, "scan.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = uploadFile(t, h, "empty.txt", nil)
	if rr.Code != 400 {
		t.Fatalf("expected 400 for empty file, got %d", rr.Code)
	}
}

func TestParseEndpoint(t *testing.T) {
	h, _ := setupServer(t, &scriptedGenerator{err: errors.New("must not be called")}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/parse?mode=prediction", strings.NewReader(predictionAnswer))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var pred struct {
		Mode       string `json:"mode"`
		Prediction struct {
			Conditions []any `json:"conditions"`
		} `json:"prediction"`
	}
	decode(t, rr, &pred)
	if pred.Mode != "prediction" || len(pred.Prediction.Conditions) != 2 {
		t.Fatalf("unexpected parse result %+v", pred)
	}

	req = httptest.NewRequest(http.MethodPost, "/parse?mode=report", strings.NewReader(reportAnswer))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var rep struct {
		Report struct {
			Diagnoses []string `json:"diagnoses"`
		} `json:"report"`
	}
	decode(t, rr, &rep)
	if len(rep.Report.Diagnoses) != 1 {
		t.Fatalf("unexpected report parse %+v", rep)
	}

	req = httptest.NewRequest(http.MethodPost, "/parse?mode=poetry", strings.NewReader("x"))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 400 {
		t.Fatalf("expected 400 for unknown mode, got %d", rr.Code)
	}
}

func TestConsultationViews(t *testing.T) {
	pdf := &fakePDFRenderer{}
	h, _ := setupServer(t, &scriptedGenerator{}, Options{PDFRenderer: pdf})
	rr := postJSON(t, h, "/predict", map[string]any{"symptoms": "fever"}, nil)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rr, &created)

	rr = get(h, "/consultations?limit=5")
	var list struct {
		Consultations []history.Consultation `json:"consultations"`
	}
	decode(t, rr, &list)
	if len(list.Consultations) != 1 || list.Consultations[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	rr = get(h, "/consultations/"+created.ID)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var view struct {
		Kind       string `json:"kind"`
		Prediction *struct {
			Conditions []any `json:"conditions"`
		} `json:"prediction"`
	}
	decode(t, rr, &view)
	if view.Kind != "prediction" || view.Prediction == nil || len(view.Prediction.Conditions) != 2 {
		t.Fatalf("unexpected view %+v", view)
	}

	rr = get(h, "/consultations/"+created.ID+"/markdown")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "Influenza") {
		t.Fatalf("unexpected markdown %d %q", rr.Code, rr.Body.String())
	}

	rr = get(h, "/consultations/"+created.ID+"/pdf")
	if rr.Code != 200 || rr.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected pdf response %d %v", rr.Code, rr.Header())
	}
	if pdf.title != assistant.PredictionTitle || !strings.Contains(pdf.markdown, "Influenza") {
		t.Fatalf("renderer got title=%q markdown=%q", pdf.title, pdf.markdown)
	}

	if rr := get(h, "/consultations/missing"); rr.Code != 404 {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := get(h, "/consultations/"+created.ID+"/docx"); rr.Code != 404 {
		t.Fatalf("expected 404 for unknown view, got %d", rr.Code)
	}
}

func TestConsultationPDFWithoutRenderer(t *testing.T) {
	h, _ := setupServer(t, &scriptedGenerator{}, Options{})
	rr := postJSON(t, h, "/predict", map[string]any{"symptoms": "fever"}, nil)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rr, &created)
	if rr := get(h, "/consultations/"+created.ID+"/pdf"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestSessionIgnoresLateResponse(t *testing.T) {
	gen := &scriptedGenerator{started: make(chan struct{}), release: make(chan struct{})}
	h, _ := setupServer(t, gen, Options{})
	headers := map[string]string{SessionHeader: "tab-1"}

	slowDone := make(chan *httptest.ResponseRecorder)
	go func() {
		slowDone <- postJSON(t, h, "/predict", map[string]any{"symptoms": "slow headache"}, headers)
	}()
	<-gen.started

	rr := postJSON(t, h, "/predict", map[string]any{"symptoms": "fast fever"}, headers)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	close(gen.release)
	if slow := <-slowDone; slow.Code != 200 {
		t.Fatalf("expected slow request to finish, got %d", slow.Code)
	}

	rr = get(h, "/sessions/tab-1")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var st struct {
		Seq        uint64 `json:"seq"`
		Status     string `json:"status"`
		Input      string `json:"input"`
		Prediction struct {
			Conditions []struct {
				Title string `json:"title"`
			} `json:"conditions"`
		} `json:"prediction"`
	}
	decode(t, rr, &st)
	if st.Seq != 2 || st.Status != "ready" || st.Input != "fast fever" {
		t.Fatalf("unexpected session state %+v", st)
	}
	if len(st.Prediction.Conditions) == 0 || st.Prediction.Conditions[0].Title != "Influenza" {
		t.Fatalf("late response overwrote session: %+v", st.Prediction)
	}

	if rr := get(h, "/sessions/unknown"); rr.Code != 404 {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSessionHidesUpstreamErrorText(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("api key sk-secret-123 rejected by provider")}
	h, _ := setupServer(t, gen, Options{})
	rr := postJSON(t, h, "/predict", map[string]any{"symptoms": "headache"}, map[string]string{SessionHeader: "tab"})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}

	rr = get(h, "/sessions/tab")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "sk-secret-123") || strings.Contains(rr.Body.String(), "rejected") {
		t.Fatalf("upstream detail leaked into session: %s", rr.Body.String())
	}
	var st struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	decode(t, rr, &st)
	if st.Status != "failed" || st.Error != assistant.ErrUpstream.Error() {
		t.Fatalf("unexpected session state %+v", st)
	}
}

func TestCORS(t *testing.T) {
	h, _ := setupServer(t, &scriptedGenerator{}, Options{AllowedOrigin: "http://localhost:3000"})
	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("missing CORS origin header: %v", rr.Header())
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), SessionHeader) {
		t.Fatalf("session header not allowed: %v", rr.Header())
	}
}

func TestHandlerSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	h, _ := setupServer(t, &scriptedGenerator{}, Options{TracerProvider: tp})

	get(h, "/health")
	get(h, "/consultations/abc/markdown")

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "GET /health" || spans[1].Name() != "GET /consultations/{id}/markdown" {
		t.Fatalf("unexpected span names %q %q", spans[0].Name(), spans[1].Name())
	}
}
