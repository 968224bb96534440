package render

import (
	"strings"
	"testing"
	"time"
)

func TestNewChromiumPDFRendererOptions(t *testing.T) {
	r, err := NewChromiumPDFRenderer(PDFOptions{ChromePath: "/opt/chrome", Paper: "Letter"})
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if r.chromePath != "/opt/chrome" || r.timeout != 30*time.Second {
		t.Fatalf("unexpected renderer %+v", r)
	}
	params := r.printParams()
	if params.PaperWidth != 8.5 || params.PaperHeight != 11 {
		t.Fatalf("expected letter paper, got %gx%g", params.PaperWidth, params.PaperHeight)
	}
	if !params.DisplayHeaderFooter || !strings.Contains(params.FooterTemplate, "pageNumber") {
		t.Fatalf("expected page-number footer, got %+v", params)
	}

	r, err = NewChromiumPDFRenderer(PDFOptions{ChromePath: "/opt/chrome", Timeout: time.Minute})
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if r.timeout != time.Minute || r.printParams().PaperWidth != 8.27 {
		t.Fatalf("expected A4 with configured timeout, got %+v", r)
	}
}

func TestNewChromiumPDFRendererRejectsUnknownPaper(t *testing.T) {
	if _, err := NewChromiumPDFRenderer(PDFOptions{Paper: "tabloid"}); err == nil {
		t.Fatal("expected error for unknown paper")
	}
}
