package pagemill

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brunobiangulo/pagemill/llm"
	"github.com/brunobiangulo/pagemill/parser"
)

// visionPrompt asks the vision model to describe a rendered page image.
const visionPrompt = "Please analyze this document image and extract the text content, tables, and any other visible information. Provide a comprehensive description of the layout and content."

// convertPages extracts every page of doc concurrently, bounded by the
// worker count. Exactly one PageResult is produced per page, in
// completion order.
func (e *engine) convertPages(ctx context.Context, doc parser.Document, o convertOptions) []PageResult {
	total := doc.Pages()

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.workers)
	results := make(chan PageResult, total)

	for n := 1; n <= total; n++ {
		wg.Add(1)
		go func(page parser.Page) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- PageResult{Number: page.Number(), Err: ctx.Err()}
				return
			}

			results <- e.convertPage(ctx, page, o)
		}(doc.Page(n))
	}

	wg.Wait()
	close(results)

	pages := make([]PageResult, 0, total)
	for res := range results {
		pages = append(pages, res)
	}
	return pages
}

// convertPage extracts one page's text and, when vision is on, asks the
// model to describe the rendered page. Enrichment failures degrade to
// text-only results; a panic is contained as a failed page.
func (e *engine) convertPage(ctx context.Context, page parser.Page, o convertOptions) (res PageResult) {
	res.Number = page.Number()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("convert: page worker panicked", "page", res.Number, "panic", r)
			res = PageResult{Number: res.Number, Err: fmt.Errorf("page %d panicked: %v", res.Number, r)}
		}
	}()

	text, err := page.Text()
	if err != nil {
		slog.Warn("convert: page extraction failed", "page", res.Number, "error", err)
		res.Err = fmt.Errorf("extracting page %d: %w", res.Number, err)
		return res
	}
	res.Text = text

	if !o.vision {
		return res
	}

	img, err := page.Image()
	if err != nil {
		if !errors.Is(err, parser.ErrNoRender) {
			slog.Warn("convert: page render failed", "page", res.Number, "error", err)
		}
		return res
	}

	enrichment, err := e.llm.Generate(ctx, llm.GenerateRequest{
		Model:  o.model,
		Prompt: visionPrompt,
		Images: []string{base64.StdEncoding.EncodeToString(img)},
	})
	if err != nil {
		slog.Warn("convert: enrichment failed", "page", res.Number, "error", err)
		return res
	}
	res.Enrichment = enrichment
	return res
}
