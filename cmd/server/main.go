package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/brunobiangulo/pagemill"
	"github.com/brunobiangulo/pagemill/llm"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON or YAML)")
	addr := flag.String("addr", ":8080", "Listen address")
	uploadDir := flag.String("upload-dir", "uploads", "Directory for uploaded documents")
	flag.Parse()

	// Optional .env for local development.
	godotenv.Load()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := pagemill.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = pagemill.LoadConfig(*configPath)
		if err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
	}

	// Override from environment variables.
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

	uploads := *uploadDir
	if v := os.Getenv("PAGEMILL_UPLOAD_DIR"); v != "" {
		uploads = v
	}
	apiKey := os.Getenv("PAGEMILL_API_KEY")
	corsOrigins := os.Getenv("PAGEMILL_CORS_ORIGINS")

	// Check the configured model against what the server actually has,
	// substituting an installed one when possible.
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	resolved, err := llm.New(cfg.OllamaURL).ResolveModel(probeCtx, cfg.Model)
	cancelProbe()
	switch {
	case err != nil:
		slog.Warn("ollama unreachable, keeping configured model", "model", cfg.Model, "error", err)
	case resolved != cfg.Model:
		slog.Warn("configured model not installed, substituting", "configured", cfg.Model, "using", resolved)
		cfg.Model = resolved
	}

	engine, err := pagemill.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine, cfg, uploads)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = h.routes()
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // conversions and large downloads can be long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "model", cfg.Model, "output_dir", cfg.OutputDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
