package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

type PDFRenderer interface {
	Render(ctx context.Context, title, markdown string) ([]byte, error)
}

// Paper is a page size in inches.
type Paper struct {
	Width, Height float64
}

var papers = map[string]Paper{
	"a4":     {Width: 8.27, Height: 11.69},
	"letter": {Width: 8.5, Height: 11},
	"legal":  {Width: 8.5, Height: 14},
}

// LookupPaper resolves a paper name; the empty name is A4.
func LookupPaper(name string) (Paper, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "a4"
	}
	p, ok := papers[name]
	if !ok {
		return Paper{}, fmt.Errorf("unknown paper size %q", name)
	}
	return p, nil
}

type PDFOptions struct {
	// ChromePath selects the browser binary. Empty probes the usual
	// locations, then falls back to chromedp's own lookup.
	ChromePath string
	Timeout    time.Duration
	Paper      string
}

// ChromiumPDFRenderer prints the HTML document with a headless Chromium.
type ChromiumPDFRenderer struct {
	chromePath string
	timeout    time.Duration
	paper      Paper
}

func NewChromiumPDFRenderer(opts PDFOptions) (*ChromiumPDFRenderer, error) {
	paper, err := LookupPaper(opts.Paper)
	if err != nil {
		return nil, err
	}
	r := &ChromiumPDFRenderer{chromePath: opts.ChromePath, timeout: opts.Timeout, paper: paper}
	if r.chromePath == "" {
		r.chromePath = detectChromePath()
	}
	if r.timeout <= 0 {
		r.timeout = 30 * time.Second
	}
	return r, nil
}

const pageFooter = `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
	`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`

// printParams lays out pages of the configured paper with a page-number footer.
func (r *ChromiumPDFRenderer) printParams() *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithDisplayHeaderFooter(true).
		WithHeaderTemplate(`<div></div>`).
		WithFooterTemplate(pageFooter).
		WithPaperWidth(r.paper.Width).
		WithPaperHeight(r.paper.Height).
		WithMarginTop(0.5).
		WithMarginBottom(0.75).
		WithMarginLeft(0.45).
		WithMarginRight(0.45)
}

func (r *ChromiumPDFRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	return opts
}

func (r *ChromiumPDFRenderer) Render(ctx context.Context, title, markdown string) ([]byte, error) {
	htmlDoc, err := Document(title, markdown)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ctx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()
	ctx, cancelTab := chromedp.NewContext(ctx)
	defer cancelTab()

	var pdf []byte
	printPage := chromedp.ActionFunc(func(ctx context.Context) error {
		out, _, err := r.printParams().Do(ctx)
		pdf = out
		return err
	})
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(ctx, chromedp.Navigate(dataURL), chromedp.WaitReady("body", chromedp.ByQuery), printPage); err != nil {
		return nil, fmt.Errorf("print %q: %w", title, err)
	}
	return pdf, nil
}

func detectChromePath() string {
	for _, p := range []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
