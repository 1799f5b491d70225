package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/pagemill/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models installed on the Ollama server",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	models, err := llm.New(cfg.OllamaURL).Models(ctx)
	if err != nil {
		return fmt.Errorf("listing models from %s: %w", cfg.OllamaURL, err)
	}
	if len(models) == 0 {
		fmt.Println("no models installed")
		return nil
	}

	for _, model := range models {
		marker := "  "
		if model == cfg.Model {
			marker = "* "
		}
		fmt.Printf("%s%s\n", marker, model)
	}
	return nil
}
