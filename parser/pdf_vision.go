package parser

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
)

const jpegQuality = 85

// openPDFVision opens a PDF with MuPDF so pages can be rendered to images
// for a vision model in addition to plain text extraction.
func openPDFVision(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document

	// MuPDF handles are not safe for concurrent use
	mu sync.Mutex
}

func (d *fitzDocument) Pages() int { return d.doc.NumPage() }

func (d *fitzDocument) Page(n int) Page { return &fitzPage{doc: d, number: n} }

func (d *fitzDocument) Close() error { return d.doc.Close() }

type fitzPage struct {
	doc    *fitzDocument
	number int
}

func (p *fitzPage) Number() int { return p.number }

func (p *fitzPage) Text() (string, error) {
	p.doc.mu.Lock()
	defer p.doc.mu.Unlock()

	text, err := p.doc.doc.Text(p.number - 1)
	if err != nil {
		return "", fmt.Errorf("extracting PDF page %d: %w", p.number, err)
	}
	return strings.TrimSpace(text), nil
}

func (p *fitzPage) Image() ([]byte, error) {
	p.doc.mu.Lock()
	defer p.doc.mu.Unlock()

	img, err := p.doc.doc.Image(p.number - 1)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page %d: %w", p.number, err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding PDF page %d: %w", p.number, err)
	}
	return buf.Bytes(), nil
}
