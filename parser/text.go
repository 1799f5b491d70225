package parser

import (
	"fmt"
	"os"
	"strings"
)

// openText handles plain text and markdown files as single-page documents.
func openText(path string, _ Options) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	return &textDocument{text: strings.TrimSpace(string(data))}, nil
}

type textDocument struct {
	text string
}

func (d *textDocument) Pages() int { return 1 }

func (d *textDocument) Page(n int) Page { return textPage{number: n, text: d.text} }

func (d *textDocument) Close() error { return nil }

type textPage struct {
	number int
	text   string
}

func (p textPage) Number() int { return p.number }

func (p textPage) Text() (string, error) { return p.text, nil }

func (p textPage) Image() ([]byte, error) { return nil, ErrNoRender }
