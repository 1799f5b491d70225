package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

type openFunc func(path string, opts Options) (Document, error)

var openers = map[string]openFunc{
	"pdf":  openPDF,
	"txt":  openText,
	"md":   openText,
	"html": openHTML,
	"htm":  openHTML,
	"xlsx": openXLSX,
	"docx": openDOCX,
	"pptx": openPPTX,
}

// Open opens the document at path with the opener registered for its
// file extension. It returns ErrUnsupported for unknown extensions.
func Open(path string, opts Options) (Document, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	open, ok := openers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	return open(path, opts)
}

// SupportedFormats returns the registered file extensions in sorted order.
func SupportedFormats() []string {
	formats := make([]string, 0, len(openers))
	for ext := range openers {
		formats = append(formats, ext)
	}
	sort.Strings(formats)
	return formats
}
