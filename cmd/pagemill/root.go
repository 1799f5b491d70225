package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/pagemill"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "pagemill",
	Short: "Convert documents into RAG-ready text, JSON, and markdown",
	Long: `Pagemill converts PDF, Office (DOCX, PPTX, XLSX), HTML, text, and
markdown documents into plain text, per-page JSON, structured markdown,
and metadata artifacts, optionally enriching pages with an Ollama
vision model.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		color.NoColor = color.NoColor || noColor

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (JSON or YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves the effective configuration from the config file
// and environment variables. Command flags are applied on top by callers.
func loadConfig() (pagemill.Config, error) {
	cfg := pagemill.DefaultConfig()
	if cfgFile != "" {
		var err error
		cfg, err = pagemill.LoadConfig(cfgFile)
		if err != nil {
			return pagemill.Config{}, err
		}
	}

	if v := os.Getenv("PAGEMILL_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("PAGEMILL_OLLAMA_URL"); v != "" {
		cfg.OllamaURL = v
	}
	if v := os.Getenv("PAGEMILL_MODEL"); v != "" {
		cfg.Model = v
	}
	// Compatibility alias used by older deployments.
	if v := os.Getenv("OLLAMA_MODEL"); v != "" && os.Getenv("PAGEMILL_MODEL") == "" {
		cfg.Model = v
	}
	if v := os.Getenv("PAGEMILL_VISION"); v != "" {
		cfg.Vision = v == "1" || v == "true"
	}
	if v := os.Getenv("PAGEMILL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("PAGEMILL_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}

	return cfg, nil
}
