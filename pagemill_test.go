package pagemill

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// fakeOllama serves deterministic generate and tags responses.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"response": "# Structured"})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"granite3.2-vision:latest"},{"name":"llava:latest"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newE2EEngine(t *testing.T) (Engine, Config) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.OllamaURL = fakeOllama(t).URL
	cfg.SkipCatalog = true

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng, cfg
}

func TestNewAppliesDefaults(t *testing.T) {
	eng, err := New(Config{SkipCatalog: true})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer eng.Close()

	e := eng.(*engine)
	if e.cfg.OutputDir != "processed" {
		t.Errorf("OutputDir = %q, want processed", e.cfg.OutputDir)
	}
	if e.cfg.Model != "granite3.2-vision:latest" {
		t.Errorf("Model = %q, want granite3.2-vision:latest", e.cfg.Model)
	}
	if e.cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", e.cfg.Workers)
	}
}

func TestConvertTextFile(t *testing.T) {
	eng, cfg := newE2EEngine(t)
	src := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(src, []byte("Hello there\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	res, err := eng.Convert(context.Background(), src)
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Errorf("Status = %q, want success", res.Status)
	}
	if res.PageCount != 1 {
		t.Errorf("PageCount = %d, want 1", res.PageCount)
	}
	if len(res.OutputFiles) != 4 {
		t.Fatalf("OutputFiles = %v, want 4 artifacts", res.OutputFiles)
	}
	for _, path := range res.OutputFiles {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artifact %s missing: %v", path, err)
		}
	}

	txt := readOutput(t, filepath.Join(cfg.OutputDir, "note", "note.txt"))
	if txt != "--- Page 1 ---\nHello there" {
		t.Errorf("txt artifact = %q, want single page with marker", txt)
	}
	md := readOutput(t, filepath.Join(cfg.OutputDir, "note", "note.md"))
	if md != "# Structured" {
		t.Errorf("md artifact = %q, want model output", md)
	}
}

func TestConvertWorkbookPages(t *testing.T) {
	eng, cfg := newE2EEngine(t)

	src := filepath.Join(t.TempDir(), "pair.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Hello")
	if _, err := f.NewSheet("Second"); err != nil {
		t.Fatalf("NewSheet returned error: %v", err)
	}
	f.SetCellValue("Second", "A1", "World")
	if err := f.SaveAs(src); err != nil {
		t.Fatalf("SaveAs returned error: %v", err)
	}
	f.Close()

	res, err := eng.Convert(context.Background(), src)
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Errorf("Status = %q, want success", res.Status)
	}
	if res.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", res.PageCount)
	}

	txt := readOutput(t, filepath.Join(cfg.OutputDir, "pair", "pair.txt"))
	want := "--- Page 1 ---\n| Hello |\n--- Page 2 ---\n| World |"
	if txt != want {
		t.Errorf("txt artifact = %q, want %q", txt, want)
	}
}

func TestConvertVisionSkippedWithoutRender(t *testing.T) {
	eng, cfg := newE2EEngine(t)
	src := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(src, []byte("just text"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	res, err := eng.Convert(context.Background(), src, WithVision(true))
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Errorf("Status = %q, want success despite unrenderable pages", res.Status)
	}

	raw := readOutput(t, filepath.Join(cfg.OutputDir, "plain", "plain.json"))
	if strings.Contains(raw, "enrichment") {
		t.Errorf("json artifact = %q, want no enrichment for unrenderable pages", raw)
	}

	var meta metadata
	if err := json.Unmarshal([]byte(readOutput(t, filepath.Join(cfg.OutputDir, "plain", "plain_metadata.json"))), &meta); err != nil {
		t.Fatalf("parsing metadata: %v", err)
	}
	if !meta.VisionProcessing {
		t.Error("metadata vision_processing = false, want the requested setting")
	}
}

func TestConvertUnsupportedFormat(t *testing.T) {
	eng, cfg := newE2EEngine(t)

	res, err := eng.Convert(context.Background(), filepath.Join(t.TempDir(), "slides.rtf"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if !strings.Contains(err.Error(), "rtf") {
		t.Errorf("err = %v, want offending extension named", err)
	}
	if res == nil || res.Status != StatusFailed {
		t.Fatalf("res = %+v, want failed result", res)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.OutputDir, "slides")); !os.IsNotExist(statErr) {
		t.Error("artifacts were written for an unsupported document")
	}
}

func TestConvertMissingFile(t *testing.T) {
	eng, _ := newE2EEngine(t)

	res, err := eng.Convert(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	if !errors.Is(err, ErrDocumentOpen) {
		t.Fatalf("err = %v, want ErrDocumentOpen", err)
	}
	if res.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", res.Status)
	}
	if res.Error == "" {
		t.Error("Error field is empty, want failure reason")
	}
}

func TestConvertCancelled(t *testing.T) {
	eng, cfg := newE2EEngine(t)
	src := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(src, []byte("content"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := eng.Convert(ctx, src)
	if err == nil {
		t.Fatal("Convert succeeded with a cancelled context")
	}
	if res.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", res.Status)
	}
	if len(res.OutputFiles) != 0 {
		t.Errorf("OutputFiles = %v, want none after cancellation", res.OutputFiles)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.OutputDir, "note")); !os.IsNotExist(statErr) {
		t.Error("artifacts were written for a cancelled conversion")
	}
}

func TestConvertWriteFailure(t *testing.T) {
	eng, cfg := newE2EEngine(t)
	src := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(src, []byte("content"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	// Block the document directory with a regular file.
	if err := os.WriteFile(filepath.Join(cfg.OutputDir, "note"), []byte("in the way"), 0644); err != nil {
		t.Fatalf("writing blocker: %v", err)
	}

	res, err := eng.Convert(context.Background(), src)
	if !errors.Is(err, ErrWriteOutput) {
		t.Fatalf("err = %v, want ErrWriteOutput", err)
	}
	if res.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", res.Status)
	}
	if res.Error == "" {
		t.Error("Error field is empty, want failure reason")
	}
}

func TestConvertBatchFailureIsolation(t *testing.T) {
	eng, _ := newE2EEngine(t)
	dir := t.TempDir()

	good1 := filepath.Join(dir, "a.txt")
	good2 := filepath.Join(dir, "b.txt")
	missing := filepath.Join(dir, "missing.pdf")
	for _, fixture := range []struct{ path, content string }{
		{good1, "alpha"},
		{good2, "beta"},
	} {
		if err := os.WriteFile(fixture.path, []byte(fixture.content), 0644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
	}

	batch, err := eng.ConvertBatch(context.Background(), []string{good1, good2, missing})
	if err != nil {
		t.Fatalf("ConvertBatch returned error: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("batch has %d entries, want one per input", len(batch))
	}

	if batch["a.txt"].Status != StatusSuccess {
		t.Errorf("a.txt status = %q, want success", batch["a.txt"].Status)
	}
	if batch["b.txt"].Status != StatusSuccess {
		t.Errorf("b.txt status = %q, want success", batch["b.txt"].Status)
	}
	if batch["missing.pdf"].Status != StatusFailed {
		t.Errorf("missing.pdf status = %q, want failed", batch["missing.pdf"].Status)
	}

	outputs := batch.Outputs()
	if len(outputs["a.txt"]) != 4 {
		t.Errorf("a.txt outputs = %v, want 4 artifacts", outputs["a.txt"])
	}
	if got := outputs["missing.pdf"]; got == nil || len(got) != 0 {
		t.Errorf("missing.pdf outputs = %v, want empty non-nil list", got)
	}

	// The empty list must encode as [] so API clients see total failure.
	encoded, err := json.Marshal(outputs)
	if err != nil {
		t.Fatalf("marshaling outputs: %v", err)
	}
	if strings.Contains(string(encoded), "null") {
		t.Errorf("outputs JSON = %s, want [] for failed documents", encoded)
	}
}

func TestConvertBatchCancelledMidway(t *testing.T) {
	eng, _ := newE2EEngine(t)
	dir := t.TempDir()

	first := filepath.Join(dir, "first.txt")
	second := filepath.Join(dir, "second.txt")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	batch, err := eng.ConvertBatch(ctx, []string{first, second},
		WithProgress(func(*DocumentResult) { cancel() }))
	if err != nil {
		t.Fatalf("ConvertBatch returned error: %v", err)
	}

	if batch["first.txt"].Status != StatusSuccess {
		t.Errorf("first.txt status = %q, want success before cancellation", batch["first.txt"].Status)
	}
	if batch["second.txt"].Status != StatusFailed {
		t.Errorf("second.txt status = %q, want failed after cancellation", batch["second.txt"].Status)
	}
	if len(batch["second.txt"].OutputFiles) != 0 {
		t.Errorf("second.txt outputs = %v, want none", batch["second.txt"].OutputFiles)
	}
}

func TestConvertBatchProgress(t *testing.T) {
	eng, _ := newE2EEngine(t)
	dir := t.TempDir()

	paths := make([]string, 3)
	for i, name := range []string{"x.txt", "y.txt", "z.txt"} {
		paths[i] = filepath.Join(dir, name)
		if err := os.WriteFile(paths[i], []byte(name), 0644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
	}

	var seen []string
	_, err := eng.ConvertBatch(context.Background(), paths,
		WithProgress(func(r *DocumentResult) { seen = append(seen, r.Name) }))
	if err != nil {
		t.Fatalf("ConvertBatch returned error: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("progress fired %d times, want once per document", len(seen))
	}
	for i, want := range []string{"x.txt", "y.txt", "z.txt"} {
		if seen[i] != want {
			t.Errorf("progress[%d] = %q, want %q (input order)", i, seen[i], want)
		}
	}
}

func TestEngineModels(t *testing.T) {
	eng, _ := newE2EEngine(t)

	models, err := eng.Models(context.Background())
	if err != nil {
		t.Fatalf("Models returned error: %v", err)
	}
	want := []string{"granite3.2-vision:latest", "llava:latest"}
	if len(models) != len(want) {
		t.Fatalf("Models = %v, want %v", models, want)
	}
	for i := range want {
		if models[i] != want[i] {
			t.Errorf("Models[%d] = %q, want %q", i, models[i], want[i])
		}
	}
}

func TestHistoryWithoutCatalog(t *testing.T) {
	eng, _ := newE2EEngine(t)

	history, err := eng.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if history != nil {
		t.Errorf("History = %v, want nil with journaling off", history)
	}
}

func TestStemOf(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/docs/report.pdf", "report"},
		{"archive.tar.gz", "archive.tar"},
		{"noext", "noext"},
		{"/deep/dir/data.json", "data"},
	}
	for _, tt := range tests {
		if got := stemOf(tt.path); got != tt.want {
			t.Errorf("stemOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
