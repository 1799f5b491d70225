package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// openHTML converts an HTML file to markdown as a single-page document.
// If conversion fails or yields nothing, the sanitized text content is
// used instead.
func openHTML(path string, _ Options) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading HTML file: %w", err)
	}
	sanitized := bluemonday.UGCPolicy().Sanitize(string(data))

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	markdown, err := conv.ConvertString(sanitized)
	if err != nil || strings.TrimSpace(markdown) == "" {
		// Strip all tags and keep the raw text
		markdown = bluemonday.StrictPolicy().Sanitize(string(data))
	}
	return &textDocument{text: strings.TrimSpace(markdown)}, nil
}
