package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelkehle/triage-assistant/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes /health, /predict, /upload-report, /parse, /consultations
and /sessions. Clients that send an X-Session-ID header can read the
latest state of their consultation from /sessions/{id}; a slow answer to
an older request never replaces a newer one.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		a.Close(shutdownCtx)
	}()

	renderer, err := newPDFRenderer(cfg.Render)
	if err != nil {
		return err
	}
	handler := httpapi.NewServer(a.svc, httpapi.Options{
		AllowedOrigin: cfg.Server.AllowedOrigin,
		SessionTTL:    cfg.Server.SessionTTL,
		PDFRenderer:   renderer,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("triage listening on %s (history=%q origin=%q)", cfg.Server.Addr, cfg.History.Path, cfg.Server.AllowedOrigin)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("allowed-origin", "", "CORS origin allowed to call the API")
	serveCmd.Flags().String("db", "", "SQLite history path; empty in config keeps history in memory")
	serveCmd.Flags().String("provider", "", "generation provider: anthropic or gemini")
	serveCmd.Flags().String("model", "", "model name passed to the provider")
	serveCmd.Flags().Duration("timeout", 0, "per-request generation timeout")
	serveCmd.Flags().String("otlp-endpoint", "", "OTLP/HTTP trace endpoint")
	serveCmd.Flags().String("chrome-path", "", "Chromium binary used for PDF export")

	rootCmd.AddCommand(serveCmd)
}
