// Package main is the entry point for the triage CLI and HTTP service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joelkehle/triage-assistant/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	v   *viper.Viper
	cfg config.Config
)

// flagKeys maps command flags onto config keys so a set flag wins over the
// file and environment.
var flagKeys = map[string]string{
	"addr":           "server.addr",
	"allowed-origin": "server.allowed_origin",
	"db":             "history.path",
	"provider":       "llm.provider",
	"model":          "llm.model",
	"timeout":        "llm.timeout",
	"otlp-endpoint":  "telemetry.endpoint",
	"chrome-path":    "render.chrome_path",
}

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Symptom assessment and report summaries from a text-generation service",
	Long: `triage asks a text-generation service for a symptom assessment or a
medical report summary and turns the free-text answer into structured
sections: likely conditions with confidence, red flags, self-care,
specialist advice and disclaimer, or findings, diagnoses, medications and
follow-ups.

Run "triage serve" for the HTTP API, or use predict, analyze and parse
directly from the shell.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		v = config.New(cfgFile)
		for name, key := range flagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return fmt.Errorf("bind --%s: %w", name, err)
				}
			}
		}
		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded
		if used := v.ConfigFileUsed(); used != "" {
			fmt.Fprintln(os.Stderr, "Using config file:", used)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./triage.yaml or ~/.config/triage/triage.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
