package parser

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// openXLSX opens a workbook with one page per sheet. Sheet contents are
// rendered as pipe-delimited rows.
func openXLSX(path string, _ Options) (Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	return &xlsxDocument{f: f, sheets: f.GetSheetList()}, nil
}

type xlsxDocument struct {
	f      *excelize.File
	sheets []string

	// excelize files are not safe for concurrent reads
	mu sync.Mutex
}

func (d *xlsxDocument) Pages() int { return len(d.sheets) }

func (d *xlsxDocument) Page(n int) Page { return &xlsxPage{doc: d, number: n} }

func (d *xlsxDocument) Close() error { return d.f.Close() }

type xlsxPage struct {
	doc    *xlsxDocument
	number int
}

func (p *xlsxPage) Number() int { return p.number }

func (p *xlsxPage) Text() (string, error) {
	p.doc.mu.Lock()
	defer p.doc.mu.Unlock()

	sheet := p.doc.sheets[p.number-1]
	rows, err := p.doc.f.GetRows(sheet)
	if err != nil {
		return "", fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	var content strings.Builder
	for _, row := range rows {
		content.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return strings.TrimSpace(content.String()), nil
}

func (p *xlsxPage) Image() ([]byte, error) { return nil, ErrNoRender }
