// Package config loads the triage service settings from defaults, an
// optional triage.yaml and TRIAGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

const (
	EnvPrefix  = "TRIAGE"
	ConfigName = "triage"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Extract   ExtractConfig   `mapstructure:"extract" yaml:"extract"`
	Render    RenderConfig    `mapstructure:"render" yaml:"render"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

type ServerConfig struct {
	Addr          string        `mapstructure:"addr" yaml:"addr"`
	AllowedOrigin string        `mapstructure:"allowed_origin" yaml:"allowed_origin"`
	SessionTTL    time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
}

type LLMConfig struct {
	// Provider is anthropic, gemini or empty to pick by available API key.
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTries    int           `mapstructure:"max_tries" yaml:"max_tries"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type HistoryConfig struct {
	// Path of the SQLite database. Empty keeps history in memory.
	Path string `mapstructure:"path" yaml:"path"`
}

type ExtractConfig struct {
	PdfToTextPath string `mapstructure:"pdftotext_path" yaml:"pdftotext_path"`
}

type RenderConfig struct {
	ChromePath string        `mapstructure:"chrome_path" yaml:"chrome_path"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Paper is a4, letter or legal.
	Paper string `mapstructure:"paper" yaml:"paper"`
}

type TelemetryConfig struct {
	// Endpoint is an OTLP/HTTP URL. Empty disables export.
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

var defaults = map[string]any{
	"server.addr":            ":8080",
	"server.allowed_origin":  "http://localhost:3000",
	"server.session_ttl":     "30m",
	"llm.provider":           "",
	"llm.model":              "",
	"llm.max_tokens":         2048,
	"llm.temperature":        0.2,
	"llm.max_tries":          3,
	"llm.timeout":            "90s",
	"history.path":           "triage.db",
	"extract.pdftotext_path": "pdftotext",
	"render.chrome_path":     "",
	"render.timeout":         "60s",
	"render.paper":           "a4",
	"telemetry.endpoint":     "",
	"telemetry.service_name": "triage-assistant",
}

// New returns a viper instance with defaults, env binding and the config
// search path set. cfgFile overrides the search path when non-empty.
func New(cfgFile string) *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", ConfigName))
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file if one is found and decodes the merged
// settings. A missing file is not an error unless it was named explicitly.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.LLM.Provider)) {
	case "", "anthropic", "gemini":
	default:
		return fmt.Errorf("llm.provider must be anthropic or gemini, got %q", c.LLM.Provider)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr is required")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.Render.Timeout <= 0 {
		return fmt.Errorf("render.timeout must be positive, got %s", c.Render.Timeout)
	}
	switch strings.ToLower(strings.TrimSpace(c.Render.Paper)) {
	case "a4", "letter", "legal":
	default:
		return fmt.Errorf("render.paper must be a4, letter or legal, got %q", c.Render.Paper)
	}
	return nil
}

// YAML renders the effective configuration.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
