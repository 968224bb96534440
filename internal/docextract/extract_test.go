package docextract

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newTestLocal(run commandRunner) *Local {
	l := NewLocal()
	l.run = run
	return l
}

func failingRunner(context.Context, string, ...string) ([]byte, error) {
	return nil, errors.New("pdftotext not installed")
}

func TestExtractPDFUsesPdfToText(t *testing.T) {
	var gotArgs []string
	l := newTestLocal(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte("Hemoglobin 10.7 g/dL\nPlatelets normal\n"), nil
	})
	res, err := l.ExtractText(context.Background(), []byte("%PDF-1.4 fake"), "application/pdf")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Method != "pdftotext" || res.Text != "Hemoglobin 10.7 g/dL\nPlatelets normal" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(gotArgs) != 4 || gotArgs[1] != "-layout" || gotArgs[3] != "-" {
		t.Fatalf("unexpected pdftotext args %v", gotArgs)
	}
}

func TestExtractPDFFallsBackToPrintableRuns(t *testing.T) {
	blob := []byte("%PDF-1.4\x00\x01(Patient shows elevated white blood cell count)\x00\x02short\x00")
	res, err := newTestLocal(failingRunner).ExtractText(context.Background(), blob, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Method != "byte-fallback" || res.MIMEType != "application/pdf" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(res.Text, "elevated white blood cell count") || strings.Contains(res.Text, "short") {
		t.Fatalf("unexpected fallback text %q", res.Text)
	}
}

func TestExtractPDFWithoutText(t *testing.T) {
	_, err := newTestLocal(failingRunner).ExtractText(context.Background(), []byte("%PDF-1.4\x00\x00"), "application/pdf")
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestExtractTextPassthroughSniffsType(t *testing.T) {
	res, err := newTestLocal(failingRunner).ExtractText(context.Background(), []byte("  WBC 12.1 high  \n"), "application/octet-stream")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.MIMEType != "text/plain" || res.Method != "passthrough" || res.Text != "WBC 12.1 high" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestExtractRejectsUnsupportedAndOversized(t *testing.T) {
	l := newTestLocal(failingRunner)
	if _, err := l.ExtractText(context.Background(), []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, "image/png"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	big := make([]byte, MaxInputBytes+1)
	if _, err := l.ExtractText(context.Background(), big, "text/plain"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	long := strings.Repeat("é", MaxTextRunes+10)
	res := truncate(long, "text/plain", "passthrough")
	if !res.Truncated || !strings.HasSuffix(res.Text, "[TRUNCATED]") {
		t.Fatalf("expected truncation marker, got truncated=%v", res.Truncated)
	}
	body := strings.TrimSuffix(res.Text, truncatedMarker)
	if body != strings.Repeat("é", MaxTextRunes) {
		t.Fatal("expected exactly MaxTextRunes runes before marker")
	}
}

func TestResolveMIMETypeStripsParameters(t *testing.T) {
	if got := resolveMIMEType(nil, "Text/Plain; charset=utf-8"); got != "text/plain" {
		t.Fatalf("unexpected mime %q", got)
	}
}
