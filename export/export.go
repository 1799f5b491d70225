// Package export packages converted artifacts into zip bundles that
// import cleanly into Open WebUI collections.
package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Manifest describes the contents of an export package.
type Manifest struct {
	ID      string         `json:"id"`
	Created string         `json:"created"`
	Files   []ManifestFile `json:"files"`
}

// ManifestFile is one entry in a package manifest.
type ManifestFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Info summarizes a prepared export package.
type Info struct {
	ExportID   string   `json:"export_id"`
	ExportPath string   `json:"export_path"`
	FileCount  int      `json:"file_count"`
	Documents  []string `json:"documents"`
	Formats    []string `json:"formats"`
	SizeBytes  int64    `json:"size_bytes"`
}

const instructions = `# Open WebUI Import Instructions

1. Go to your Open WebUI installation
2. Navigate to Collections
3. Click "Create Collection" or select an existing collection
4. Click "Import" and select this zip file
5. Configure chunking settings as needed
6. Start using your documents in RAG conversations!
`

// Instructions returns the import steps bundled with every package.
func Instructions() string { return instructions }

// Prepare collects the selected documents' artifacts from processedDir
// and packages them there. Formats may be given with or without a
// leading dot. An export with no matching files is an error.
func Prepare(processedDir string, docs, formats []string) (*Info, error) {
	var files []string
	for _, doc := range docs {
		docDir := filepath.Join(processedDir, doc)
		if fi, err := os.Stat(docDir); err != nil || !fi.IsDir() {
			slog.Warn("export: document directory not found", "dir", docDir)
			continue
		}
		for _, format := range formats {
			ext := "." + strings.TrimPrefix(format, ".")
			matches, err := filepath.Glob(filepath.Join(docDir, "*"+ext))
			if err != nil {
				return nil, err
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no matching files found for export")
	}

	exportID := "openwebui_export_" + time.Now().Format("20060102_150405")
	if len(docs) == 1 {
		exportID = "openwebui_" + docs[0]
	}

	path, err := Package(files, exportID, processedDir)
	if err != nil {
		return nil, err
	}

	info := &Info{
		ExportID:   exportID,
		ExportPath: path,
		FileCount:  len(files),
		Documents:  docs,
		Formats:    formats,
	}
	if fi, err := os.Stat(path); err == nil {
		info.SizeBytes = fi.Size()
	}
	return info, nil
}

// Package writes <exportID>.zip under outDir containing the given files
// flattened to their base names, plus manifest.json and a README with
// import instructions. Missing inputs are logged and skipped.
func Package(files []string, exportID, outDir string) (string, error) {
	if exportID == "" {
		exportID = "openwebui_export_" + time.Now().Format("20060102_150405")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}

	outPath := filepath.Join(outDir, exportID+".zip")
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	if err := writeArchive(out, files, exportID); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", err
	}
	return outPath, nil
}

func writeArchive(w io.Writer, files []string, exportID string) error {
	zw := zip.NewWriter(w)

	manifest := Manifest{
		ID:      exportID,
		Created: time.Now().Format(time.RFC3339),
		Files:   []ManifestFile{},
	}

	for _, path := range files {
		fi, err := os.Stat(path)
		if err != nil {
			slog.Warn("export: file not found", "file", path)
			continue
		}
		name := filepath.Base(path)
		if err := addFile(zw, path, name); err != nil {
			zw.Close()
			return fmt.Errorf("adding %s: %w", name, err)
		}
		fileType := strings.TrimPrefix(filepath.Ext(name), ".")
		if fileType == "" {
			fileType = "txt"
		}
		manifest.Files = append(manifest.Files, ManifestFile{
			Name: name,
			Path: name,
			Size: fi.Size(),
			Type: fileType,
		})
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		zw.Close()
		return err
	}
	if err := addBytes(zw, "manifest.json", manifestJSON); err != nil {
		zw.Close()
		return err
	}
	if err := addBytes(zw, "README.md", []byte(instructions)); err != nil {
		zw.Close()
		return err
	}

	return zw.Close()
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

func addBytes(zw *zip.Writer, name string, data []byte) error {
	dst, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = dst.Write(data)
	return err
}
