package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joelkehle/triage-assistant/internal/assistant"
)

var predictCmd = &cobra.Command{
	Use:   "predict [symptoms...]",
	Short: "Assess symptoms and print the structured answer",
	Long: `Predict sends the symptoms to the generation service and prints the
parsed assessment as Markdown, or as JSON with --json. Symptoms are read
from the arguments, or from stdin when none are given.`,
	RunE: runPredict,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Summarize a medical report (PDF or text)",
	Long: `Analyze extracts the report text, asks the generation service for a
plain-language summary and prints the parsed sections. Use --pdf to also
write the summary as a PDF.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runPredict(cmd *cobra.Command, args []string) error {
	symptoms := strings.Join(args, " ")
	if strings.TrimSpace(symptoms) == "" {
		blob, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), assistant.MaxSymptomsChars+1))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		symptoms = string(blob)
	}
	age, _ := cmd.Flags().GetInt("age")
	sex, _ := cmd.Flags().GetString("sex")
	duration, _ := cmd.Flags().GetString("duration")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	out, err := a.svc.Predict(ctx, assistant.SymptomInput{Symptoms: symptoms, Age: age, Sex: sex, Duration: duration})
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	fmt.Fprint(cmd.OutOrStdout(), out.Markdown)
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	pdfOut, _ := cmd.Flags().GetString("pdf")

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	out, err := a.svc.AnalyzeReport(ctx, assistant.ReportInput{Filename: filepath.Base(path), Data: data})
	if err != nil {
		return err
	}
	if pdfOut != "" {
		renderer, err := newPDFRenderer(cfg.Render)
		if err != nil {
			return err
		}
		pdf, err := renderer.Render(ctx, assistant.ReportTitle, out.Markdown)
		if err != nil {
			return fmt.Errorf("render pdf: %w", err)
		}
		if err := os.WriteFile(pdfOut, pdf, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Wrote", pdfOut)
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	fmt.Fprint(cmd.OutOrStdout(), out.Markdown)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	predictCmd.Flags().Int("age", 0, "patient age in years")
	predictCmd.Flags().String("sex", "", "patient sex")
	predictCmd.Flags().String("duration", "", "how long the symptoms have lasted")
	predictCmd.Flags().Bool("json", false, "print JSON instead of Markdown")
	predictCmd.Flags().String("provider", "", "generation provider: anthropic or gemini")
	predictCmd.Flags().String("model", "", "model name passed to the provider")

	analyzeCmd.Flags().Bool("json", false, "print JSON instead of Markdown")
	analyzeCmd.Flags().String("pdf", "", "also write the summary as PDF to this path")
	analyzeCmd.Flags().String("provider", "", "generation provider: anthropic or gemini")
	analyzeCmd.Flags().String("model", "", "model name passed to the provider")
	analyzeCmd.Flags().String("chrome-path", "", "Chromium binary used for PDF export")

	rootCmd.AddCommand(predictCmd, analyzeCmd)
}
