// Package docextract pulls plain text out of uploaded medical documents.
package docextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	MaxInputBytes = 20 * 1024 * 1024
	MaxTextRunes  = 24000

	truncatedMarker = "\n\n[TRUNCATED]"
	minPrintableRun = 24
)

var (
	ErrTooLarge        = errors.New("document too large")
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrNoText          = errors.New("no extractable text found")
)

type Result struct {
	Text      string `json:"-"`
	MIMEType  string `json:"mime_type"`
	Method    string `json:"method"`
	Truncated bool   `json:"truncated"`
}

// Extractor turns document bytes into plain text.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (Result, error)
}

// commandRunner runs an external converter on a file and returns stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Local extracts PDFs with pdftotext when available and falls back to
// scanning the raw bytes for printable runs. Text documents pass through.
type Local struct {
	PdfToTextPath string
	run           commandRunner
	tracer        trace.Tracer
}

func NewLocal() *Local {
	path := strings.TrimSpace(os.Getenv("PDFTOTEXT_PATH"))
	if path == "" {
		path = "pdftotext"
	}
	return &Local{
		PdfToTextPath: path,
		run:           execRunner,
		tracer:        otel.Tracer("github.com/joelkehle/triage-assistant/internal/docextract"),
	}
}

func (l *Local) ExtractText(ctx context.Context, data []byte, mimeType string) (Result, error) {
	mimeType = resolveMIMEType(data, mimeType)
	ctx, span := l.tracer.Start(ctx, "docextract.extract", trace.WithAttributes(
		attribute.String("doc.mime_type", mimeType),
		attribute.Int("doc.bytes", len(data)),
	))
	defer span.End()

	res, err := l.extract(ctx, data, mimeType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.String("doc.method", res.Method), attribute.Bool("doc.truncated", res.Truncated))
	return res, nil
}

func (l *Local) extract(ctx context.Context, data []byte, mimeType string) (Result, error) {
	if len(data) > MaxInputBytes {
		return Result{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	switch {
	case mimeType == "application/pdf":
		return l.extractPDF(ctx, data)
	case strings.HasPrefix(mimeType, "text/"):
		text := strings.ToValidUTF8(string(data), "")
		if strings.TrimSpace(text) == "" {
			return Result{}, ErrNoText
		}
		return truncate(text, mimeType, "passthrough"), nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
}

func (l *Local) extractPDF(ctx context.Context, data []byte) (Result, error) {
	if text, err := l.runPdfToText(ctx, data); err == nil && strings.TrimSpace(text) != "" {
		return truncate(text, "application/pdf", "pdftotext"), nil
	}
	fallback := extractPrintableText(data)
	if strings.TrimSpace(fallback) == "" {
		return Result{}, ErrNoText
	}
	return truncate(fallback, "application/pdf", "byte-fallback"), nil
}

func (l *Local) runPdfToText(ctx context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp("", "triage-upload-*.pdf")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	out, err := l.run(ctx, l.PdfToTextPath, "-layout", f.Name(), "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// resolveMIMEType strips parameters from the declared type and sniffs the
// content when the declaration is missing or generic.
func resolveMIMEType(data []byte, declared string) string {
	mt := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "" || mt == "application/octet-stream" {
		mt = http.DetectContentType(data)
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = strings.TrimSpace(mt[:i])
		}
	}
	return mt
}

func extractPrintableText(blob []byte) string {
	var runs []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		if len(s) >= minPrintableRun {
			runs = append(runs, s)
		}
		b.Reset()
	}
	for _, c := range blob {
		r := rune(c)
		if r < utf8.RuneSelf && (unicode.IsPrint(r) || r == '\n' || r == '\t' || r == '\r') {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return strings.TrimSpace(strings.Join(runs, "\n"))
}

func truncate(text, mimeType, method string) Result {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) <= MaxTextRunes {
		return Result{Text: trimmed, MIMEType: mimeType, Method: method}
	}
	runes := bytes.Runes([]byte(trimmed))
	return Result{
		Text:      string(runes[:MaxTextRunes]) + truncatedMarker,
		MIMEType:  mimeType,
		Method:    method,
		Truncated: true,
	}
}
