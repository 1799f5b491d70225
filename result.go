package pagemill

import "time"

// Status classifies the outcome of one document conversion.
type Status string

const (
	// StatusSuccess means every page produced text with no per-page errors.
	StatusSuccess Status = "success"

	// StatusPartial means some pages produced text and at least one failed.
	// Failed pages are omitted from the generated artifacts.
	StatusPartial Status = "partial"

	// StatusFailed means no page produced usable text, or the document could
	// not be opened or written at all.
	StatusFailed Status = "failed"
)

// PageResult is the outcome of one page task.
type PageResult struct {
	Number     int    `json:"page_number"`
	Text       string `json:"text"`
	Enrichment string `json:"enrichment,omitempty"`
	Err        error  `json:"-"`
}

// DocumentResult is the ordered, aggregated outcome of converting one document.
// Pages is sorted strictly ascending by page number regardless of completion
// order; OutputFiles holds the full paths written, in txt/json/md/metadata
// order.
type DocumentResult struct {
	Name        string        `json:"name"`
	Stem        string        `json:"stem"`
	Status      Status        `json:"status"`
	Pages       []PageResult  `json:"pages,omitempty"`
	PageCount   int           `json:"page_count"`
	OutputFiles []string      `json:"output_files"`
	Model       string        `json:"model"`
	Vision      bool          `json:"vision"`
	Duration    time.Duration `json:"-"`
	Error       string        `json:"error,omitempty"`
}

// BatchResult maps each input document's basename to its conversion outcome.
type BatchResult map[string]*DocumentResult

// Outputs returns the name to produced-file-paths map. An empty slice marks
// total failure for that document.
func (b BatchResult) Outputs() map[string][]string {
	out := make(map[string][]string, len(b))
	for name, r := range b {
		if r == nil || len(r.OutputFiles) == 0 {
			out[name] = []string{}
			continue
		}
		out[name] = r.OutputFiles
	}
	return out
}
