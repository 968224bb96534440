package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joelkehle/triage-assistant/internal/render"
	"github.com/joelkehle/triage-assistant/internal/responseparse"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a saved free-text answer without calling the generation service",
	Long: `Parse reads a raw answer from the file (or stdin when the file is
omitted or "-") and prints the structured result as JSON, or as Markdown
with --markdown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List recorded consultations or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		blob, err := io.ReadAll(cmd.InOrStdin())
		return string(blob), err
	}
	blob, err := os.ReadFile(args[0])
	return string(blob), err
}

func runParse(cmd *cobra.Command, args []string) error {
	modeName, _ := cmd.Flags().GetString("mode")
	mode, ok := responseparse.ParseMode(modeName)
	if !ok {
		return fmt.Errorf("--mode must be prediction or report, got %q", modeName)
	}
	markdown, _ := cmd.Flags().GetBool("markdown")
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if mode == responseparse.ModeReport {
		r := responseparse.ParseReport(text)
		if markdown {
			fmt.Fprint(out, render.ReportMarkdown(r))
			return nil
		}
		return writeJSON(out, r)
	}
	p := responseparse.ParsePrediction(text)
	if markdown {
		fmt.Fprint(out, render.PredictionMarkdown(p))
		return nil
	}
	return writeJSON(out, p)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if len(args) == 1 {
		view, err := a.svc.Consultation(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), view.Markdown)
		return nil
	}

	list, err := a.svc.Consultations(ctx, limit)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(w, "No consultations recorded.")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-10s  %-20s  %s\n", "ID", "Kind", "Created", "Input")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, c := range list {
		input := strings.Join(strings.Fields(c.Input), " ")
		if len(input) > 40 {
			input = input[:37] + "..."
		}
		fmt.Fprintf(w, "%-36s  %-10s  %-20s  %s\n", c.ID, c.Kind, c.CreatedAt.Format("2006-01-02 15:04:05"), input)
	}
	return nil
}

func init() {
	parseCmd.Flags().String("mode", "prediction", "answer layout: prediction or report")
	parseCmd.Flags().Bool("markdown", false, "print Markdown instead of JSON")

	historyCmd.Flags().Int("limit", 20, "maximum number of consultations to list")
	historyCmd.Flags().String("db", "", "SQLite history path")

	rootCmd.AddCommand(parseCmd, historyCmd)
}
