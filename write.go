package pagemill

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunobiangulo/pagemill/llm"
)

// markdownPrompt asks the model to restructure extracted text as markdown.
const markdownPrompt = "Convert the following raw text from a PDF document into a well-structured markdown document. Add appropriate headers, lists, and formatting. Preserve the content exactly but improve the structure and readability.\n\nRaw text:\n"

// maxStructureChars caps how much extracted text is sent to the model
// for markdown structuring.
const maxStructureChars = 4000

type jsonDocument struct {
	Pages []PageResult `json:"pages"`
}

type metadata struct {
	Filename         string   `json:"filename"`
	ProcessedTime    float64  `json:"processed_time"`
	Status           Status   `json:"status"`
	ModelUsed        string   `json:"model_used"`
	VisionProcessing bool     `json:"vision_processing"`
	PageCount        int      `json:"page_count"`
	OutputFiles      []string `json:"output_files"`
}

// writeOutputs emits the four artifacts for a converted document under
// <output dir>/<stem>/: plain text, per-page JSON, structured markdown,
// and a metadata sidecar. It returns the paths written so far even when
// a write fails partway.
func (e *engine) writeOutputs(ctx context.Context, res *DocumentResult, text string) ([]string, error) {
	dir := filepath.Join(e.cfg.OutputDir, res.Stem)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}

	written := make([]string, 0, 4)

	txtPath := filepath.Join(dir, res.Stem+".txt")
	if err := writeFileAtomic(txtPath, []byte(text)); err != nil {
		return written, fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	written = append(written, txtPath)

	data, err := json.MarshalIndent(jsonDocument{Pages: usablePages(res.Pages)}, "", "  ")
	if err != nil {
		return written, fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	jsonPath := filepath.Join(dir, res.Stem+".json")
	if err := writeFileAtomic(jsonPath, data); err != nil {
		return written, fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	written = append(written, jsonPath)

	mdPath := filepath.Join(dir, res.Stem+".md")
	if err := writeFileAtomic(mdPath, []byte(e.structureMarkdown(ctx, res.Model, text))); err != nil {
		return written, fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	written = append(written, mdPath)

	meta := metadata{
		Filename:         res.Stem,
		ProcessedTime:    float64(time.Now().UnixNano()) / 1e9,
		Status:           res.Status,
		ModelUsed:        res.Model,
		VisionProcessing: res.Vision,
		PageCount:        res.PageCount,
		OutputFiles:      basenames(written),
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return written, fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	metaPath := filepath.Join(dir, res.Stem+"_metadata.json")
	if err := writeFileAtomic(metaPath, metaJSON); err != nil {
		return written, fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	written = append(written, metaPath)

	return written, nil
}

// structureMarkdown asks the model to restructure text as markdown. The
// base model name is used since structuring needs no vision variant. On
// any failure the raw text is returned unchanged.
func (e *engine) structureMarkdown(ctx context.Context, model, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	out, err := e.llm.Generate(ctx, llm.GenerateRequest{
		Model:  baseModelName(model),
		Prompt: markdownPrompt + truncateText(text, maxStructureChars),
	})
	if err != nil {
		slog.Warn("convert: markdown structuring failed", "error", err)
		return text
	}
	if strings.TrimSpace(out) == "" {
		return text
	}
	return out
}

// usablePages filters out failed pages. The result is never nil so the
// JSON artifact always carries a pages array.
func usablePages(pages []PageResult) []PageResult {
	usable := make([]PageResult, 0, len(pages))
	for _, p := range pages {
		if p.Err == nil {
			usable = append(usable, p)
		}
	}
	return usable
}

func basenames(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}

// baseModelName strips the tag from a model reference, so
// "granite3.2-vision:latest" becomes "granite3.2-vision".
func baseModelName(model string) string {
	if i := strings.Index(model, ":"); i >= 0 {
		return model[:i]
	}
	return model
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so re-runs never leave a half-written artifact.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pagemill-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
