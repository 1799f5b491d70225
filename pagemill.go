package pagemill

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/pagemill/catalog"
	"github.com/brunobiangulo/pagemill/llm"
	"github.com/brunobiangulo/pagemill/parser"
)

// defaultWorkers is the default page worker count per document.
const defaultWorkers = 4

// Engine is the main entry point for the document conversion pipeline.
type Engine interface {
	// Convert processes one document into text, JSON, markdown, and
	// metadata artifacts under the output directory. The result is
	// non-nil even when conversion fails.
	Convert(ctx context.Context, path string, opts ...ConvertOption) (*DocumentResult, error)

	// ConvertBatch processes documents one at a time, pages in parallel
	// within each. Every input gets an entry keyed by its base name;
	// one document failing never stops the rest.
	ConvertBatch(ctx context.Context, paths []string, opts ...ConvertOption) (BatchResult, error)

	// Models lists the model names available on the Ollama server.
	Models(ctx context.Context) ([]string, error)

	// History returns recent conversion records, newest first.
	History(ctx context.Context, limit int) ([]catalog.Conversion, error)

	// Close cleanly shuts down the engine.
	Close() error
}

// ConvertOption configures conversion behavior.
type ConvertOption func(*convertOptions)

type convertOptions struct {
	model    string
	vision   bool
	workers  int
	progress func(*DocumentResult)
}

// WithModel overrides the configured model for this conversion.
func WithModel(model string) ConvertOption {
	return func(o *convertOptions) { o.model = model }
}

// WithVision toggles per-page vision enrichment for this conversion.
func WithVision(on bool) ConvertOption {
	return func(o *convertOptions) { o.vision = on }
}

// WithWorkers overrides the page worker count for this conversion.
func WithWorkers(n int) ConvertOption {
	return func(o *convertOptions) { o.workers = n }
}

// WithProgress registers a callback invoked after each document of a
// batch completes, successfully or not.
func WithProgress(fn func(*DocumentResult)) ConvertOption {
	return func(o *convertOptions) { o.progress = fn }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg     Config
	llm     llm.Provider
	catalog *catalog.Catalog
}

// New creates a conversion engine with the given configuration.
func New(cfg Config) (Engine, error) {
	// Apply defaults for zero values
	def := DefaultConfig()
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}

	var cat *catalog.Catalog
	if !cfg.SkipCatalog {
		var err error
		cat, err = catalog.New(cfg.resolveCatalogPath())
		if err != nil {
			return nil, fmt.Errorf("opening catalog: %w", err)
		}
	}

	return &engine{
		cfg:     cfg,
		llm:     llm.New(cfg.OllamaURL),
		catalog: cat,
	}, nil
}

func (e *engine) newConvertOptions(opts []ConvertOption) convertOptions {
	o := convertOptions{
		model:   e.cfg.Model,
		vision:  e.cfg.Vision,
		workers: e.cfg.Workers,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers <= 0 {
		o.workers = defaultWorkers
	}
	return o
}

// Convert processes one document through the full pipeline.
func (e *engine) Convert(ctx context.Context, path string, opts ...ConvertOption) (*DocumentResult, error) {
	o := e.newConvertOptions(opts)
	res, err := e.convertDocument(ctx, path, o)
	e.record(uuid.NewString(), path, res)
	return res, err
}

// convertDocument contains a panic from the conversion of one document
// as a failed result, so a malformed file cannot take down a batch.
func (e *engine) convertDocument(ctx context.Context, path string, o convertOptions) (res *DocumentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("convert: document panicked", "file", filepath.Base(path), "panic", r)
			err = fmt.Errorf("converting %s panicked: %v", filepath.Base(path), r)
			res = &DocumentResult{
				Name:   filepath.Base(path),
				Stem:   stemOf(path),
				Status: StatusFailed,
				Model:  o.model,
				Vision: o.vision,
				Error:  err.Error(),
			}
		}
	}()
	return e.convert(ctx, path, o)
}

func (e *engine) convert(ctx context.Context, path string, o convertOptions) (*DocumentResult, error) {
	start := time.Now()
	res := &DocumentResult{
		Name:   filepath.Base(path),
		Stem:   stemOf(path),
		Model:  o.model,
		Vision: o.vision,
	}
	defer func() { res.Duration = time.Since(start) }()

	doc, err := parser.Open(path, parser.Options{RenderImages: o.vision})
	if err != nil {
		if errors.Is(err, parser.ErrUnsupported) {
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
		} else {
			err = fmt.Errorf("%w: %v", ErrDocumentOpen, err)
		}
		res.Status = StatusFailed
		res.Error = err.Error()
		return res, err
	}
	defer doc.Close()

	res.PageCount = doc.Pages()
	slog.Info("convert: processing document",
		"file", res.Name, "pages", res.PageCount, "vision", o.vision, "workers", o.workers)

	pages := e.convertPages(ctx, doc, o)
	orderPages(pages)
	res.Pages = pages

	// A cancelled conversion never writes artifacts.
	if err := ctx.Err(); err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res, err
	}

	res.Status = classify(pages)
	if res.Status == StatusFailed {
		err := fmt.Errorf("all %d pages failed extraction", res.PageCount)
		res.Error = err.Error()
		return res, err
	}

	written, err := e.writeOutputs(ctx, res, combinedText(pages))
	res.OutputFiles = written
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res, err
	}

	slog.Info("convert: document ready",
		"file", res.Name, "status", res.Status, "pages", res.PageCount,
		"outputs", len(written), "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// Models lists the model names available on the Ollama server.
func (e *engine) Models(ctx context.Context) ([]string, error) {
	return e.llm.Models(ctx)
}

// History returns recent conversion records, newest first.
func (e *engine) History(ctx context.Context, limit int) ([]catalog.Conversion, error) {
	if e.catalog == nil {
		return nil, nil
	}
	return e.catalog.Recent(ctx, limit)
}

// Close shuts down the engine.
func (e *engine) Close() error {
	if e.catalog == nil {
		return nil
	}
	return e.catalog.Close()
}

// record journals a conversion outcome. Catalog failures are logged and
// never affect the conversion result.
func (e *engine) record(batchID, path string, res *DocumentResult) {
	if e.catalog == nil || res == nil {
		return
	}
	hash, _ := fileHash(path)
	conv := catalog.Conversion{
		BatchID:     batchID,
		Filename:    res.Name,
		Path:        path,
		ContentHash: hash,
		Status:      string(res.Status),
		Model:       res.Model,
		Vision:      res.Vision,
		PageCount:   res.PageCount,
		DurationMS:  res.Duration.Milliseconds(),
		Error:       res.Error,
		OutputFiles: res.OutputFiles,
	}
	if err := e.catalog.Record(context.Background(), conv); err != nil {
		slog.Warn("catalog: recording conversion failed", "file", res.Name, "error", err)
	}
}

// stemOf returns the base name of path without its extension.
func stemOf(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
