package pdfrenderer

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// ErrPageIndex is returned for a page index outside the document
var ErrPageIndex = errors.New("page index out of range")

// Renderer defines the interface for opening PDF documents for rasterization
type Renderer interface {
	// Open parses a PDF held in memory. The returned Document may keep a
	// reference to data, which must not be modified until the Document is closed.
	Open(data []byte) (Document, error)

	// Close cleans up any resources used by the renderer
	Close() error
}

// Document is an opened PDF
type Document interface {
	// NumPage returns the number of pages
	NumPage() int

	// Title returns the document title from its metadata, or "" if it has none
	Title() string

	// PageSize returns the natural size of a page in points
	PageSize(index int) (width, height float64, err error)

	// RenderPage rasterizes a page scaled to exactly width x height pixels.
	// Areas the page does not paint may be transparent.
	RenderPage(index, width, height int) (image.Image, error)

	// Close releases the document
	Close() error
}

// Backend names accepted by NewRenderer
const (
	BackendPDFium = "pdfium"
	BackendFitz   = "fitz"
)

// NewRenderer creates the renderer for a backend name. An empty name selects
// the PDFium renderer (pure Go, no CGo).
func NewRenderer(backend string) (Renderer, error) {
	switch backend {
	case "", BackendPDFium:
		return NewPDFiumRenderer()
	case BackendFitz:
		return NewFitzRenderer()
	default:
		return nil, fmt.Errorf("unknown renderer backend %q", backend)
	}
}

func checkIndex(index, numPages int) error {
	if index < 0 || index >= numPages {
		return fmt.Errorf("%w: page %d of %d", ErrPageIndex, index, numPages)
	}
	return nil
}
