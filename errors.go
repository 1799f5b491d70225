package pagemill

import "errors"

var (
	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("pagemill: unsupported document format")

	// ErrDocumentOpen is returned when a source document cannot be opened or parsed.
	ErrDocumentOpen = errors.New("pagemill: cannot open document")

	// ErrWriteOutput is returned when an output artifact cannot be written.
	ErrWriteOutput = errors.New("pagemill: writing output failed")
)
