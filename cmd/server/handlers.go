package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brunobiangulo/pagemill"
	"github.com/brunobiangulo/pagemill/catalog"
	"github.com/brunobiangulo/pagemill/export"
	"github.com/brunobiangulo/pagemill/parser"
)

type handler struct {
	engine    pagemill.Engine
	cfg       pagemill.Config
	uploadDir string

	// mu guards model, the server-wide default that POST /model swaps.
	mu    sync.Mutex
	model string
}

func newHandler(engine pagemill.Engine, cfg pagemill.Config, uploadDir string) *handler {
	return &handler{engine: engine, cfg: cfg, uploadDir: uploadDir, model: cfg.Model}
}

func (h *handler) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", h.handleUpload)
	mux.HandleFunc("POST /batch", h.handleBatch)
	mux.HandleFunc("GET /files", h.handleListFiles)
	mux.HandleFunc("GET /download/{path...}", h.handleDownload)
	mux.HandleFunc("GET /export", h.handleExport)
	mux.HandleFunc("GET /export/instructions", h.handleInstructions)
	mux.HandleFunc("GET /download-export/{file}", h.handleDownloadExport)
	mux.HandleFunc("GET /models", h.handleModels)
	mux.HandleFunc("POST /model", h.handleSetModel)
	mux.HandleFunc("GET /history", h.handleHistory)
	mux.HandleFunc("GET /health", h.handleHealth)
	return mux
}

func (h *handler) currentModel() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.model
}

func (h *handler) swapModel(model string) {
	h.mu.Lock()
	h.model = model
	h.mu.Unlock()
}

// POST /upload
// Accepts a single multipart document, converts it, and returns the result.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal.
	safeName := filepath.Base(header.Filename)
	if !allowedFile(safeName) {
		writeError(w, http.StatusBadRequest, "unsupported file type, allowed: "+strings.Join(parser.SupportedFormats(), ", "))
		return
	}

	path, err := h.saveUpload(file, safeName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save upload")
		slog.Error("saving upload", "file", safeName, "error", err)
		return
	}

	res, err := h.engine.Convert(ctx, path, pagemill.WithModel(h.currentModel()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  "conversion failed",
			"result": res,
		})
		slog.Error("conversion error", "file", safeName, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename": safeName,
		"result":   res,
	})
}

// POST /batch
// Accepts multiple documents under files[] and converts them as one batch.
// Invalid entries are reported individually without failing the rest.
func (h *handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	headers := r.MultipartForm.File["files[]"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "files[] is required")
		return
	}

	type fileStatus struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	var (
		statuses []fileStatus
		paths    []string
	)
	for _, header := range headers {
		safeName := filepath.Base(header.Filename)
		if !allowedFile(safeName) {
			statuses = append(statuses, fileStatus{Name: safeName, Status: "invalid", Error: "unsupported file type"})
			continue
		}
		file, err := header.Open()
		if err != nil {
			statuses = append(statuses, fileStatus{Name: safeName, Status: "invalid", Error: "unreadable upload"})
			continue
		}
		path, err := h.saveUpload(file, safeName)
		file.Close()
		if err != nil {
			slog.Error("saving upload", "file", safeName, "error", err)
			statuses = append(statuses, fileStatus{Name: safeName, Status: "invalid", Error: "failed to save upload"})
			continue
		}
		statuses = append(statuses, fileStatus{Name: safeName, Status: "uploaded"})
		paths = append(paths, path)
	}

	if len(paths) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "no valid files in batch",
			"results": statuses,
		})
		return
	}

	batch, err := h.engine.ConvertBatch(ctx, paths, pagemill.WithModel(h.currentModel()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   "batch conversion failed",
			"results": statuses,
		})
		slog.Error("batch error", "documents", len(paths), "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      fmt.Sprintf("processed %d files", len(paths)),
		"results":      statuses,
		"documents":    batch,
		"output_files": batch.Outputs(),
	})
}

// GET /files
// Lists converted artifacts under the output directory as relative paths.
func (h *handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files := []string{}
	root := h.cfg.OutputDir
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".txt", ".json", ".md":
			if rel, relErr := filepath.Rel(root, path); relErr == nil {
				files = append(files, filepath.ToSlash(rel))
			}
		}
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

// GET /download/{path...}
func (h *handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	h.serveFrom(w, r, h.cfg.OutputDir, r.PathValue("path"))
}

// GET /export?docs=a,b&formats=txt,md
// Packages converted documents into an Open WebUI import archive.
func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	docs := splitParam(r.URL.Query().Get("docs"))
	if len(docs) == 0 {
		writeError(w, http.StatusBadRequest, "docs is required")
		return
	}
	formats := splitParam(r.URL.Query().Get("formats"))
	if len(formats) == 0 {
		formats = []string{"txt"}
	}

	info, err := export.Prepare(h.cfg.OutputDir, docs, formats)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		slog.Error("export error", "documents", docs, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"export_info":      info,
		"size_formatted":   formatSize(info.SizeBytes),
		"download_url":     "/download-export/" + filepath.Base(info.ExportPath),
		"instructions_url": "/export/instructions",
	})
}

// GET /export/instructions
func (h *handler) handleInstructions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"instructions": export.Instructions(),
	})
}

// GET /download-export/{file}
func (h *handler) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	h.serveFrom(w, r, h.cfg.OutputDir, r.PathValue("file"))
}

// GET /models
func (h *handler) handleModels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	models, err := h.engine.Models(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list models")
		slog.Error("listing models", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":  models,
		"current": h.currentModel(),
	})
}

// POST /model
// Swaps the server-wide default model for subsequent conversions.
func (h *handler) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Model) == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	h.swapModel(req.Model)
	slog.Info("default model changed", "model", req.Model)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"model":   req.Model,
	})
}

// GET /history?limit=N
func (h *handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := h.engine.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read history")
		slog.Error("reading history", "error", err)
		return
	}
	if records == nil {
		records = []catalog.Conversion{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"history": records})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// saveUpload copies an uploaded file into the upload directory and
// returns the stored path.
func (h *handler) saveUpload(file multipart.File, name string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(h.uploadDir, filepath.Base(name))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// serveFrom serves a file from root, rejecting traversal outside it.
func (h *handler) serveFrom(w http.ResponseWriter, r *http.Request, root, name string) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) || filepath.IsAbs(clean) {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	full := filepath.Join(root, clean)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(full)))
	http.ServeFile(w, r, full)
}

func allowedFile(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, format := range parser.SupportedFormats() {
		if format == ext {
			return true
		}
	}
	return false
}

func splitParam(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
