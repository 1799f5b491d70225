// Package catalog journals conversion outcomes to SQLite. It is
// write-only from the pipeline's point of view: conversions never read
// it, only the history surfaces do.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Conversion is one journaled document conversion.
type Conversion struct {
	ID          int64    `json:"id"`
	BatchID     string   `json:"batch_id"`
	Filename    string   `json:"filename"`
	Path        string   `json:"path"`
	ContentHash string   `json:"content_hash"`
	Status      string   `json:"status"`
	Model       string   `json:"model"`
	Vision      bool     `json:"vision"`
	PageCount   int      `json:"page_count"`
	DurationMS  int64    `json:"duration_ms"`
	Error       string   `json:"error,omitempty"`
	OutputFiles []string `json:"output_files"`
	CreatedAt   string   `json:"created_at"`
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS conversions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id TEXT NOT NULL,
    filename TEXT NOT NULL,
    path TEXT NOT NULL,
    content_hash TEXT,
    status TEXT NOT NULL,
    model TEXT,
    vision INTEGER NOT NULL DEFAULT 0,
    page_count INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    output_files TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_conversions_filename ON conversions(filename);
CREATE INDEX IF NOT EXISTS idx_conversions_batch ON conversions(batch_id);
`

// Catalog wraps the SQLite conversion journal.
type Catalog struct {
	db *sql.DB
}

// New opens (or creates) the journal database at the given path.
func New(path string) (*Catalog, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Catalog{db: db}, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Record appends one conversion to the journal.
func (c *Catalog) Record(ctx context.Context, conv Conversion) error {
	files := conv.OutputFiles
	if files == nil {
		files = []string{}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO conversions (batch_id, filename, path, content_hash, status, model, vision, page_count, duration_ms, error, output_files)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, conv.BatchID, conv.Filename, conv.Path, conv.ContentHash, conv.Status, conv.Model,
		conv.Vision, conv.PageCount, conv.DurationMS, conv.Error, string(filesJSON))
	return err
}

// Recent returns the newest conversions, most recent first. A zero or
// negative limit returns 20 rows.
func (c *Catalog) Recent(ctx context.Context, limit int) ([]Conversion, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, batch_id, filename, path, content_hash, status, model, vision, page_count, duration_ms, error, output_files, created_at
		FROM conversions
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []Conversion
	for rows.Next() {
		var conv Conversion
		var errText sql.NullString
		var filesJSON string
		if err := rows.Scan(&conv.ID, &conv.BatchID, &conv.Filename, &conv.Path, &conv.ContentHash,
			&conv.Status, &conv.Model, &conv.Vision, &conv.PageCount, &conv.DurationMS,
			&errText, &filesJSON, &conv.CreatedAt); err != nil {
			return nil, err
		}
		conv.Error = errText.String
		if err := json.Unmarshal([]byte(filesJSON), &conv.OutputFiles); err != nil {
			conv.OutputFiles = []string{}
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}
