package parser

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
)

func openPDF(path string, opts Options) (Document, error) {
	if opts.RenderImages {
		return openPDFVision(path)
	}
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	return &pdfDocument{f: f, reader: reader}, nil
}

type pdfDocument struct {
	f      *os.File
	reader *pdf.Reader

	// the reader is not safe for concurrent page access
	mu sync.Mutex
}

func (d *pdfDocument) Pages() int { return d.reader.NumPage() }

func (d *pdfDocument) Page(n int) Page { return &pdfPage{doc: d, number: n} }

func (d *pdfDocument) Close() error { return d.f.Close() }

type pdfPage struct {
	doc    *pdfDocument
	number int
}

func (p *pdfPage) Number() int { return p.number }

func (p *pdfPage) Text() (string, error) {
	p.doc.mu.Lock()
	defer p.doc.mu.Unlock()

	page := p.doc.reader.Page(p.number)
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extracting PDF page %d: %w", p.number, err)
	}
	return strings.TrimSpace(text), nil
}

func (p *pdfPage) Image() ([]byte, error) { return nil, ErrNoRender }
