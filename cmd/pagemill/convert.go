package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/pagemill"
	"github.com/brunobiangulo/pagemill/llm"
	"github.com/brunobiangulo/pagemill/parser"
)

var (
	convertOutput    string
	convertModel     string
	convertVision    bool
	convertWorkers   int
	convertNoCatalog bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [files or directories]",
	Short: "Convert documents into text, JSON, markdown, and metadata",
	Long: `Convert one or more documents. Directories are expanded to the
supported files they contain. Each document produces four artifacts
under the output directory, and one document failing never stops
the rest of the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output directory (default \"processed\")")
	convertCmd.Flags().StringVarP(&convertModel, "model", "m", "", "Ollama model for enrichment and structuring")
	convertCmd.Flags().BoolVar(&convertVision, "vision", false, "enrich pages with the vision model")
	convertCmd.Flags().IntVarP(&convertWorkers, "workers", "w", 0, "concurrent page workers per document")
	convertCmd.Flags().BoolVar(&convertNoCatalog, "no-catalog", false, "skip recording conversions in the catalog")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if convertOutput != "" {
		cfg.OutputDir = convertOutput
	}
	if convertModel != "" {
		cfg.Model = convertModel
	}
	if cmd.Flags().Changed("vision") {
		cfg.Vision = convertVision
	}
	if convertWorkers > 0 {
		cfg.Workers = convertWorkers
	}
	if convertNoCatalog {
		cfg.SkipCatalog = true
	}

	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no convertible files found, supported: %s", strings.Join(parser.SupportedFormats(), ", "))
	}

	// Check the configured model against what the server actually has.
	probeCtx, cancelProbe := context.WithTimeout(ctx, 10*time.Second)
	resolved, err := llm.New(cfg.OllamaURL).ResolveModel(probeCtx, cfg.Model)
	cancelProbe()
	switch {
	case err != nil:
		warning("ollama not reachable at %s, enrichment and structuring will be skipped", cfg.OllamaURL)
	case resolved != cfg.Model:
		warning("model %s not installed, using %s", cfg.Model, resolved)
		cfg.Model = resolved
	}

	engine, err := pagemill.New(cfg)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer engine.Close()

	bar := newProgressBar(int64(len(paths)), "converting")
	results, err := engine.ConvertBatch(ctx, paths,
		pagemill.WithProgress(func(*pagemill.DocumentResult) {
			bar.Add(1)
		}),
	)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("batch conversion: %w", err)
	}

	var converted, partial, failed int
	for _, path := range paths {
		res := results[filepath.Base(path)]
		if res == nil {
			continue
		}
		switch res.Status {
		case pagemill.StatusSuccess:
			converted++
			success("%s (%d pages, %s)", res.Name, res.PageCount, res.Duration.Round(time.Millisecond))
		case pagemill.StatusPartial:
			partial++
			warning("%s converted with failed pages (%d pages, %s)", res.Name, res.PageCount, res.Duration.Round(time.Millisecond))
		default:
			failed++
			failure("%s: %s", res.Name, res.Error)
		}
	}

	fmt.Printf("\n%d converted, %d partial, %d failed, output in %s\n", converted, partial, failed, cfg.OutputDir)
	if converted+partial == 0 {
		return fmt.Errorf("all %d documents failed", failed)
	}
	return nil
}

// expandPaths resolves file and directory arguments into a sorted list
// of files to convert. Directories contribute only supported formats,
// explicit files are passed through as given.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !supportedFile(entry.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(arg, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func supportedFile(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, format := range parser.SupportedFormats() {
		if format == ext {
			return true
		}
	}
	return false
}

func newProgressBar(total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
	)
}
