package parser

import "errors"

var (
	// ErrUnsupported is returned by Open for formats with no registered opener.
	ErrUnsupported = errors.New("parser: unsupported format")

	// ErrNoRender is returned by Page.Image for formats that cannot render
	// page images.
	ErrNoRender = errors.New("parser: page rendering not supported")
)

// Options selects how a document is opened.
type Options struct {
	// RenderImages requests a backend whose pages can render to images.
	RenderImages bool
}

// Document is an open source document exposing its pages in order.
type Document interface {
	// Pages returns the total page count.
	Pages() int

	// Page returns the 1-based nth page. Extraction is lazy: the returned
	// Page does no work until Text or Image is called.
	Page(n int) Page

	// Close releases the underlying file handles.
	Close() error
}

// Page is one unit of a document's content.
type Page interface {
	// Number is the page's 1-based index within its document.
	Number() int

	// Text extracts the page's raw text.
	Text() (string, error)

	// Image renders the page as a JPEG. Formats without rendering return
	// ErrNoRender.
	Image() ([]byte, error)
}
