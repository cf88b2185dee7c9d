package pdfrenderer

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// FitzRenderer implements PDF rendering using go-fitz (requires CGo and MuPDF)
type FitzRenderer struct {
}

// NewFitzRenderer creates a new Fitz-based PDF renderer
func NewFitzRenderer() (*FitzRenderer, error) {
	return &FitzRenderer{}, nil
}

// Open parses a PDF held in memory with MuPDF
func (r *FitzRenderer) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	return &fitzDocument{doc: doc, numPages: doc.NumPage(), boxes: pageBoxes(data)}, nil
}

// Close cleans up resources (no-op for Fitz renderer as each document is closed on its own)
func (r *FitzRenderer) Close() error {
	return nil
}

type fitzDocument struct {
	doc      *fitz.Document
	numPages int
	// boxes holds the fractional page sizes that Bound truncates
	boxes []pageBox
}

func (d *fitzDocument) NumPage() int {
	return d.numPages
}

func (d *fitzDocument) Title() string {
	return d.doc.Metadata()["title"]
}

func (d *fitzDocument) PageSize(index int) (float64, float64, error) {
	if err := checkIndex(index, d.numPages); err != nil {
		return 0, 0, err
	}
	bounds, err := d.doc.Bound(index)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to measure page %d: %w", index, err)
	}
	width, height := float64(bounds.Dx()), float64(bounds.Dy())

	// only trust the page tree while it agrees with MuPDF to within the truncation
	if index < len(d.boxes) {
		box := d.boxes[index]
		if math.Abs(box.width-width) < 1 && math.Abs(box.height-height) < 1 {
			return box.width, box.height, nil
		}
	}
	return width, height, nil
}

func (d *fitzDocument) RenderPage(index, width, height int) (image.Image, error) {
	w, _, err := d.PageSize(index)
	if err != nil {
		return nil, err
	}
	if w <= 0 {
		return nil, fmt.Errorf("page %d has no width", index)
	}

	// MuPDF scales by dpi/72, pick the dpi that lands on the requested width
	dpi := 72 * float64(width) / w
	img, err := d.doc.ImageDPI(index, dpi)
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", index, err)
	}

	// Rounding inside MuPDF can be off by a pixel
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		Logger.Debug("Resizing fitz render to requested size", "page", index,
			"got", b.Size(), "wantWidth", width, "wantHeight", height)
		return imaging.Resize(img, width, height, imaging.Lanczos), nil
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
