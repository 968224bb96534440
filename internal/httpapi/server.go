package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/triage-assistant/internal/assistant"
	"github.com/joelkehle/triage-assistant/internal/docextract"
	"github.com/joelkehle/triage-assistant/internal/history"
	"github.com/joelkehle/triage-assistant/internal/render"
	"github.com/joelkehle/triage-assistant/internal/responseparse"
	"github.com/joelkehle/triage-assistant/internal/viewstate"
)

const (
	SessionHeader = "X-Session-ID"

	maxJSONBody   = 1 << 20
	maxParseBody  = 1 << 20
	maxUploadBody = docextract.MaxInputBytes + 1<<20
)

// Assistant is the part of assistant.Service the handlers call.
type Assistant interface {
	Predict(ctx context.Context, in assistant.SymptomInput) (assistant.Prediction, error)
	AnalyzeReport(ctx context.Context, in assistant.ReportInput) (assistant.Report, error)
	Consultation(ctx context.Context, id string) (assistant.ConsultationView, error)
	Consultations(ctx context.Context, limit int) ([]history.Consultation, error)
}

type Options struct {
	// AllowedOrigin is sent as Access-Control-Allow-Origin; empty disables CORS.
	AllowedOrigin  string
	SessionTTL     time.Duration
	PDFRenderer    render.PDFRenderer
	TracerProvider trace.TracerProvider
}

type Server struct {
	svc      Assistant
	sessions *viewstate.Sessions
	pdf      render.PDFRenderer
	tracer   trace.Tracer
	origin   string
}

func NewServer(svc Assistant, opts Options) http.Handler {
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	s := &Server{
		svc:      svc,
		sessions: viewstate.NewSessions(opts.SessionTTL),
		pdf:      opts.PDFRenderer,
		tracer:   tp.Tracer("github.com/joelkehle/triage-assistant/internal/httpapi"),
		origin:   strings.TrimSpace(opts.AllowedOrigin),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/upload-report", s.handleUploadReport)
	mux.HandleFunc("/parse", s.handleParse)
	mux.HandleFunc("/consultations", s.handleConsultations)
	mux.HandleFunc("/consultations/", s.handleConsultation)
	mux.HandleFunc("/sessions/", s.handleSession)
	return s.withCORS(s.withTracing(mux))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeServiceError maps service sentinels to status codes. Upstream
// generation failures are reported as plain text.
func writeServiceError(w http.ResponseWriter, err error) {
	status, msg := publicError(err)
	if status == http.StatusBadGateway {
		http.Error(w, msg, status)
		return
	}
	writeError(w, status, msg)
}

// publicError maps a service error to the status and message a client may
// see. Upstream causes are never included.
func publicError(err error) (int, string) {
	switch {
	case errors.Is(err, assistant.ErrUpstream):
		return http.StatusBadGateway, assistant.ErrUpstream.Error()
	case errors.Is(err, assistant.ErrEmptyInput),
		errors.Is(err, assistant.ErrInputTooLong),
		errors.Is(err, assistant.ErrEmptyDocument),
		errors.Is(err, docextract.ErrNoText):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, docextract.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, docextract.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound, "consultation not found"
	case errors.Is(err, assistant.ErrNoExtractor):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func parseInt(value string, def int) int {
	if strings.TrimSpace(value) == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return v
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+routeName(r.URL.Path), trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		if rec.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

// routeName keeps ids out of span names.
func routeName(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "/"
	}
	switch {
	case len(parts) == 1:
		return "/" + parts[0]
	case len(parts) == 2:
		return "/" + parts[0] + "/{id}"
	default:
		return "/" + parts[0] + "/{id}/" + parts[2]
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "message": "triage assistant is running"})
}

// beginSession records a submission for the request's session, if any, and
// returns the sequence number its result must carry.
func (s *Server) beginSession(r *http.Request, mode responseparse.Mode, input string) (string, uint64) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		return "", 0
	}
	st := s.sessions.Dispatch(id, viewstate.Submitted{Mode: mode, Input: input})
	return id, st.Seq
}

func (s *Server) finishSession(id string, seq uint64, raw string, err error) {
	if id == "" {
		return
	}
	if err != nil {
		_, msg := publicError(err)
		s.sessions.Dispatch(id, viewstate.Failed{Seq: seq, Err: msg})
		return
	}
	s.sessions.Dispatch(id, viewstate.Succeeded{Seq: seq, Raw: raw})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	var in assistant.SymptomInput
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	sessionID, seq := s.beginSession(r, responseparse.ModePrediction, in.Symptoms)
	out, err := s.svc.Predict(r.Context(), in)
	s.finishSession(sessionID, seq, out.Raw, err)
	if err != nil {
		log.Printf("predict failed session=%s err=%v", sessionID, err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         out.ID,
		"raw":        out.Raw,
		"prediction": out.Result,
	})
}

func (s *Server) handleUploadReport(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, docextract.MaxInputBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	sessionID, seq := s.beginSession(r, responseparse.ModeReport, header.Filename)
	out, err := s.svc.AnalyzeReport(r.Context(), assistant.ReportInput{
		Filename: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	s.finishSession(sessionID, seq, out.Raw, err)
	if err != nil {
		log.Printf("upload report failed file=%s session=%s err=%v", header.Filename, sessionID, err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         out.ID,
		"raw":        out.Raw,
		"report":     out.Result,
		"extraction": out.Extraction,
	})
}

// handleParse runs the parser over a raw response without calling the
// generation service.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	mode, ok := responseparse.ParseMode(r.URL.Query().Get("mode"))
	if !ok {
		writeError(w, http.StatusBadRequest, "mode must be prediction or report")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxParseBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if mode == responseparse.ModeReport {
		writeJSON(w, http.StatusOK, map[string]any{"mode": mode.String(), "report": responseparse.ParseReport(string(body))})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": mode.String(), "prediction": responseparse.ParsePrediction(string(body))})
}

func (s *Server) handleConsultations(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	list, err := s.svc.Consultations(r.Context(), parseInt(r.URL.Query().Get("limit"), 0))
	if err != nil {
		log.Printf("list consultations failed: %v", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consultations": list})
}

// handleConsultation serves /consultations/{id}, /consultations/{id}/markdown
// and /consultations/{id}/pdf.
func (s *Server) handleConsultation(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/consultations/"), "/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusBadRequest, "consultation id is required")
		return
	}
	format := ""
	if len(parts) == 2 {
		format = parts[1]
	}
	if format != "" && format != "markdown" && format != "pdf" {
		writeError(w, http.StatusNotFound, "unknown consultation view")
		return
	}

	view, err := s.svc.Consultation(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	switch format {
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(view.Markdown))
	case "pdf":
		s.writePDF(w, r, view)
	default:
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) writePDF(w http.ResponseWriter, r *http.Request, view assistant.ConsultationView) {
	if s.pdf == nil {
		writeError(w, http.StatusServiceUnavailable, "pdf renderer unavailable")
		return
	}
	pdf, err := s.pdf.Render(r.Context(), view.Title(), view.Markdown)
	if err != nil {
		log.Printf("render consultation pdf failed id=%s err=%v", view.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to render pdf")
		return
	}
	filename := fmt.Sprintf("%s-%s.pdf", view.Kind, sanitizeFilename(view.ID))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	st, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func sanitizeFilename(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "consultation"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, v)
}
