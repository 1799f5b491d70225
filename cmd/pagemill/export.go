package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/pagemill/export"
)

var exportFormats string

var exportCmd = &cobra.Command{
	Use:   "export [documents]",
	Short: "Package converted documents into an Open WebUI import archive",
	Long: `Package artifacts of previously converted documents into a zip
archive that Open WebUI can import as a collection. Documents are
named by their stem, the directory name under the output directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormats, "formats", "txt", "comma-separated artifact formats to include")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var formats []string
	for _, part := range strings.Split(exportFormats, ",") {
		if part = strings.TrimSpace(part); part != "" {
			formats = append(formats, part)
		}
	}
	if len(formats) == 0 {
		return fmt.Errorf("no formats given")
	}

	info, err := export.Prepare(cfg.OutputDir, args, formats)
	if err != nil {
		return fmt.Errorf("preparing export: %w", err)
	}

	success("%s (%d files, %s)", info.ExportPath, info.FileCount, formatSize(info.SizeBytes))
	fmt.Println("import the archive in Open WebUI under Collections, instructions are inside the zip")
	return nil
}

func formatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d bytes", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
