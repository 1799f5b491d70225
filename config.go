package pagemill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the pagemill engine.
type Config struct {
	// OutputDir is the root directory for converted artifacts. Each document
	// writes into <OutputDir>/<stem>/.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// OllamaURL is the base URL of the Ollama server.
	OllamaURL string `json:"ollama_url" yaml:"ollama_url"`

	// Model is used for per-page vision enrichment and markdown structuring.
	Model string `json:"model" yaml:"model"`

	// Vision enables per-page image analysis. Off by default: pages then
	// carry only their extracted text.
	Vision bool `json:"vision" yaml:"vision"`

	// Workers caps concurrent page tasks per document. Defaults to 4.
	Workers int `json:"workers" yaml:"workers"`

	// CatalogPath is the SQLite conversion journal. If empty, defaults to
	// <OutputDir>/catalog.db.
	CatalogPath string `json:"catalog_path" yaml:"catalog_path"`

	// SkipCatalog disables conversion journaling entirely.
	SkipCatalog bool `json:"skip_catalog" yaml:"skip_catalog"`

	// MaxUploadBytes caps uploaded file size in the HTTP server.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
func DefaultConfig() Config {
	return Config{
		OutputDir:      "processed",
		OllamaURL:      "http://localhost:11434",
		Model:          "granite3.2-vision:latest",
		Workers:        4,
		MaxUploadBytes: 500 << 20,
	}
}

// LoadConfig reads a config file, decoding JSON or YAML by extension.
// Missing fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}
	return cfg, nil
}

// resolveCatalogPath computes the final journal path from config fields.
func (c *Config) resolveCatalogPath() string {
	if c.CatalogPath != "" {
		return c.CatalogPath
	}
	return filepath.Join(c.OutputDir, "catalog.db")
}
