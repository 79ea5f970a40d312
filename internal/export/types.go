// Package export renders a project's task breakdown as an HTML report and
// optionally converts it to PDF with headless Chrome.
package export

import "errors"

type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// ErrPDFDependencyMissing indicates chromium is not installed on the host.
var ErrPDFDependencyMissing = errors.New("pdf export dependency missing")

// Request describes one report export.
type Request struct {
	ProjectID string
	Title     string
	Format    Format
}

// Result is the rendered artifact.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}
