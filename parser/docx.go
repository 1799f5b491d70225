package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// openDOCX reads word/document.xml and splits the body into sections at
// heading-styled paragraphs. Each section becomes one page; tables are
// appended as their own pages with rows rendered like the XLSX pages.
func openDOCX(path string, _ Options) (Document, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	var data []byte
	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening document.xml: %w", err)
		}
		data, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading document.xml: %w", err)
		}
		break
	}
	if data == nil {
		return nil, fmt.Errorf("word/document.xml not found in DOCX")
	}

	sections, err := splitWordSections(data)
	if err != nil {
		return nil, fmt.Errorf("parsing DOCX XML: %w", err)
	}
	if len(sections) == 0 {
		sections = []string{""}
	}
	return &docxDocument{sections: sections}, nil
}

type docxDocument struct {
	sections []string
}

func (d *docxDocument) Pages() int { return len(d.sections) }

func (d *docxDocument) Page(n int) Page { return docxPage{number: n, text: d.sections[n-1]} }

func (d *docxDocument) Close() error { return nil }

type docxPage struct {
	number int
	text   string
}

func (p docxPage) Number() int { return p.number }

func (p docxPage) Text() (string, error) { return p.text, nil }

func (p docxPage) Image() ([]byte, error) { return nil, ErrNoRender }

// Simplified WordprocessingML structures, matched by local name.
type wordDocument struct {
	Body wordBody `xml:"body"`
}

type wordBody struct {
	Paras  []wordPara  `xml:"p"`
	Tables []wordTable `xml:"tbl"`
}

type wordPara struct {
	Props *wordParaProps `xml:"pPr"`
	Runs  []wordRun      `xml:"r"`
}

type wordParaProps struct {
	Style *wordStyle `xml:"pStyle"`
}

type wordStyle struct {
	Val string `xml:"val,attr"`
}

type wordRun struct {
	Text []string `xml:"t"`
}

type wordTable struct {
	Rows []wordRow `xml:"tr"`
}

type wordRow struct {
	Cells []wordCell `xml:"tc"`
}

type wordCell struct {
	Paras []wordPara `xml:"p"`
}

// splitWordSections groups paragraphs into heading-delimited sections. A
// heading paragraph starts a new section carrying the heading as its
// first line; body text before the first heading forms its own section.
func splitWordSections(data []byte) ([]string, error) {
	var doc wordDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var (
		sections []string
		heading  string
		current  strings.Builder
	)
	flush := func() {
		text := strings.TrimSpace(current.String())
		if heading == "" && text == "" {
			return
		}
		section := text
		if heading != "" {
			section = heading
			if text != "" {
				section += "\n" + text
			}
		}
		sections = append(sections, section)
		current.Reset()
		heading = ""
	}

	for _, para := range doc.Body.Paras {
		text := wordParaText(para)
		if text == "" {
			continue
		}
		if isWordHeading(para) {
			flush()
			heading = text
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(text)
	}
	flush()

	for _, tbl := range doc.Body.Tables {
		var rows strings.Builder
		for _, row := range tbl.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				var cellText strings.Builder
				for _, p := range cell.Paras {
					t := wordParaText(p)
					if t == "" {
						continue
					}
					if cellText.Len() > 0 {
						cellText.WriteString(" ")
					}
					cellText.WriteString(t)
				}
				cells = append(cells, cellText.String())
			}
			rows.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
		if text := strings.TrimSpace(rows.String()); text != "" {
			sections = append(sections, text)
		}
	}

	return sections, nil
}

func wordParaText(para wordPara) string {
	var b strings.Builder
	for _, run := range para.Runs {
		for _, t := range run.Text {
			b.WriteString(t)
		}
	}
	return strings.TrimSpace(b.String())
}

func isWordHeading(para wordPara) bool {
	if para.Props == nil || para.Props.Style == nil {
		return false
	}
	style := strings.ToLower(para.Props.Style.Val)
	return strings.HasPrefix(style, "heading") || strings.HasPrefix(style, "title")
}
