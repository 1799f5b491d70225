package pagemill

import (
	"fmt"
	"sort"
	"strings"
)

// orderPages sorts completion-ordered page results back into page order.
func orderPages(pages []PageResult) {
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
}

// combinedText joins the extracted text of all usable pages with page
// markers. Failed pages are left out.
func combinedText(pages []PageResult) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", p.Number, p.Text))
	}
	return strings.Join(parts, "\n")
}

// classify derives a document status from its page outcomes. A document
// with no pages counts as success.
func classify(pages []PageResult) Status {
	var ok, failed int
	for _, p := range pages {
		if p.Err != nil {
			failed++
		} else {
			ok++
		}
	}
	switch {
	case ok == 0 && failed > 0:
		return StatusFailed
	case failed > 0:
		return StatusPartial
	default:
		return StatusSuccess
	}
}
