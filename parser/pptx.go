package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"sort"
	"strings"
)

// openPPTX maps each slide onto one page. Slide text comes from the
// shape tree's text bodies. When rendering is requested, the first
// sufficiently large picture embedded in a slide serves as the page
// image for enrichment.
func openPPTX(path string, opts Options) (Document, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening PPTX: %w", err)
	}
	defer r.Close()

	fileIndex := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileIndex[f.Name] = f
	}

	// ppt/slides/slide1.xml, slide2.xml, ...
	numbered := make(map[int][]byte)
	for name, f := range fileIndex {
		if !strings.HasPrefix(name, "ppt/slides/slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		num := slideNumber(name)
		if num <= 0 {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening slide %d: %w", num, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading slide %d: %w", num, err)
		}
		numbered[num] = data
	}
	if len(numbered) == 0 {
		return nil, fmt.Errorf("no slides found in PPTX")
	}

	nums := make([]int, 0, len(numbered))
	for n := range numbered {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	slides := make([]pptxSlideData, 0, len(nums))
	for _, num := range nums {
		data := numbered[num]
		slide := pptxSlideData{text: slideText(data)}
		if opts.RenderImages {
			slide.image = slideImage(data, num, fileIndex)
		}
		slides = append(slides, slide)
	}
	return &pptxDocument{slides: slides}, nil
}

type pptxSlideData struct {
	text  string
	image []byte
}

type pptxDocument struct {
	slides []pptxSlideData
}

func (d *pptxDocument) Pages() int { return len(d.slides) }

func (d *pptxDocument) Page(n int) Page { return pptxPage{number: n, slide: d.slides[n-1]} }

func (d *pptxDocument) Close() error { return nil }

type pptxPage struct {
	number int
	slide  pptxSlideData
}

func (p pptxPage) Number() int { return p.number }

func (p pptxPage) Text() (string, error) { return p.slide.text, nil }

func (p pptxPage) Image() ([]byte, error) {
	if p.slide.image == nil {
		return nil, ErrNoRender
	}
	return p.slide.image, nil
}

// Simplified DrawingML structures, matched by local name.
type pptxSlideXML struct {
	CSld struct {
		SpTree struct {
			Shapes []pptxShape `xml:"sp"`
		} `xml:"spTree"`
	} `xml:"cSld"`
}

type pptxShape struct {
	TxBody *pptxTextBody `xml:"txBody"`
}

type pptxTextBody struct {
	Paras []pptxPara `xml:"p"`
}

type pptxPara struct {
	Runs []pptxRun `xml:"r"`
}

type pptxRun struct {
	Text string `xml:"t"`
}

func slideText(data []byte) string {
	var slide pptxSlideXML
	if err := xml.Unmarshal(data, &slide); err != nil {
		return ""
	}

	var parts []string
	for _, shape := range slide.CSld.SpTree.Shapes {
		if shape.TxBody == nil {
			continue
		}
		for _, para := range shape.TxBody.Paras {
			var line strings.Builder
			for _, run := range para.Runs {
				line.WriteString(run.Text)
			}
			if t := strings.TrimSpace(line.String()); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// slideImage returns the first picture embedded in a slide that is at
// least 32px in both dimensions, or nil. Pictures are referenced from
// the slide XML through blip elements whose relationship ids resolve in
// the slide's .rels file.
func slideImage(slideXML []byte, num int, fileIndex map[string]*zip.File) []byte {
	rels := slideRels(fileIndex, fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", num))
	if rels == nil {
		return nil
	}

	decoder := xml.NewDecoder(bytes.NewReader(slideXML))
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "blip" {
			continue
		}

		var embedID string
		for _, attr := range se.Attr {
			if attr.Name.Local == "embed" {
				embedID = attr.Value
				break
			}
		}
		target, ok := rels[embedID]
		if embedID == "" || !ok {
			continue
		}

		// Targets are relative to ppt/slides/.
		mediaPath := filepath.ToSlash(filepath.Clean("ppt/slides/" + target))
		zf := fileIndex[mediaPath]
		if zf == nil {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil || cfg.Width < 32 || cfg.Height < 32 {
			continue
		}
		return data
	}
}

type slideRelationships struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func slideRels(fileIndex map[string]*zip.File, relsPath string) map[string]string {
	relsFile := fileIndex[relsPath]
	if relsFile == nil {
		return nil
	}
	rc, err := relsFile.Open()
	if err != nil {
		return nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil
	}

	var rels slideRelationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil
	}
	out := make(map[string]string, len(rels.Rels))
	for _, rel := range rels.Rels {
		out[rel.ID] = rel.Target
	}
	return out
}

func slideNumber(name string) int {
	name = strings.TrimPrefix(name, "ppt/slides/slide")
	name = strings.TrimSuffix(name, ".xml")
	var num int
	fmt.Sscanf(name, "%d", &num)
	return num
}
