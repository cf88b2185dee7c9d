// Package transform renders PDF pages, replaces their near-white background
// with a solid colour and reassembles the result, either into a new PDF or into a
// stream of page images.
package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"github.com/drummonds/purpleify/engine/pdfrenderer"
	"github.com/go-pdf/fpdf"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// Options describe how a document is transformed. They are fixed once a
// transformation begins.
type Options struct {
	Quality         Quality   `json:"quality"`
	BackgroundColor Color     `json:"background_color"`
	PageRange       PageRange `json:"page_range"`
}

// State is a loaded document together with the options to transform it with
type State struct {
	doc     loadedDocument
	options Options
}

// loadedDocument keeps the source bytes alive for as long as the renderer
// handle that reads from them
type loadedDocument struct {
	originalTitle string
	handle        pdfrenderer.Document
	pageCount     int
	bytes         []byte
}

// NewState parses data with the renderer. A nil page range selects every page
// and a nil background colour selects DefaultBackgroundColor.
func NewState(renderer pdfrenderer.Renderer, data []byte, pageRange *PageRange, quality Quality, background *Color) (*State, error) {
	handle, err := renderer.Open(data)
	if err != nil {
		return nil, wrap(ErrRender, err)
	}

	pageCount := handle.NumPage()
	if pageCount == 0 {
		handle.Close()
		return nil, ErrZeroPagePDF
	}

	title := handle.Title()
	if title == "" {
		if info, err := pdfrenderer.Inspect(data); err == nil {
			title = info.Title
		} else {
			Logger.Debug("No title available from PDF structure", "error", err)
		}
	}

	options := Options{
		Quality:         quality,
		BackgroundColor: DefaultBackgroundColor,
		PageRange:       AllPages(pageCount),
	}
	if pageRange != nil {
		options.PageRange = *pageRange
	}
	if background != nil {
		options.BackgroundColor = *background
	}

	return &State{
		doc: loadedDocument{
			originalTitle: title,
			handle:        handle,
			pageCount:     pageCount,
			bytes:         data,
		},
		options: options,
	}, nil
}

// OriginalTitle is the title of the source document, possibly empty
func (s *State) OriginalTitle() string { return s.doc.originalTitle }

// PageCount is the number of pages in the source document, not in the range
func (s *State) PageCount() int { return s.doc.pageCount }

// Options returns the options the state was created with
func (s *State) Options() Options { return s.options }

// IncludesOffset reports whether the page range selects offset
func (s *State) IncludesOffset(offset int) bool {
	return s.options.PageRange.Includes(offset, s.doc.pageCount)
}

// PagesInRange is the number of pages the page range selects
func (s *State) PagesInRange() int {
	return s.options.PageRange.Len(s.doc.pageCount)
}

// Close releases the renderer handle and the source bytes
func (s *State) Close() error {
	if s.doc.handle == nil {
		return nil
	}
	err := s.doc.handle.Close()
	s.doc.handle = nil
	s.doc.bytes = nil
	return err
}

// TransformedPage is a normalized page image and the size it was rendered at
type TransformedPage struct {
	Image *image.RGBA
	Size  PageSize
}

// PNG encodes the page image
func (p *TransformedPage) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Image); err != nil {
		return nil, wrap(ErrImageEncoding, err)
	}
	return buf.Bytes(), nil
}

// TransformPage renders the page at offset from the start of the page range
// against white and replaces its background
func (s *State) TransformPage(offset int) (*TransformedPage, error) {
	pageNum := s.options.PageRange.StartingIndex + offset
	if offset < 0 || pageNum < 0 || pageNum >= s.doc.pageCount {
		return nil, fmt.Errorf("%w: page %d", ErrNonexistentPage, pageNum)
	}
	if s.doc.handle == nil {
		return nil, fmt.Errorf("%w: document already closed", ErrUnknown)
	}

	width, height, err := s.doc.handle.PageSize(pageNum)
	if err != nil {
		return nil, wrap(ErrUnknown, err)
	}
	size := NewPageSize(width, height, s.options.Quality)

	surface, err := pdfrenderer.RasterizeOnWhite(s.doc.handle, pageNum, size.WidthPx(), size.HeightPx())
	if err != nil {
		return nil, wrap(ErrRender, err)
	}

	if err := NormalizeBackground(surface.Data, s.options.BackgroundColor); err != nil {
		return nil, err
	}

	img, err := pageDataToImage(surface.Data, size)
	if err != nil {
		return nil, err
	}

	Logger.Debug("Transformed page", "page", pageNum, "width", size.WidthPx(), "height", size.HeightPx())
	return &TransformedPage{Image: img, Size: size}, nil
}

// pageDataToImage reinterprets a BGRA buffer as an opaque RGB image of the
// page's pixel size
func pageDataToImage(bgra []byte, size PageSize) (*image.RGBA, error) {
	w, h := size.WidthPx(), size.HeightPx()
	if w <= 0 || h <= 0 || len(bgra) != w*h*BGRAPixelSize {
		return nil, fmt.Errorf("%w: %d bytes for a %dx%d page", ErrInsufficientMemory, len(bgra), w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	pix := img.Pix
	for i := 0; i < len(bgra); i += BGRAPixelSize {
		pix[i+0] = bgra[i+2]
		pix[i+1] = bgra[i+1]
		pix[i+2] = bgra[i+0]
		pix[i+3] = 0xff
	}
	return img, nil
}

// ToPDF writes one page per transformed page, each filled by its image
func (s *State) ToPDF(pages []*TransformedPage) ([]byte, error) {
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 210, Ht: 297},
	})
	doc.SetTitle(s.doc.originalTitle, true)
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)

	imageOptions := fpdf.ImageOptions{ImageType: "PNG"}
	for i, page := range pages {
		width, height := float64(page.Size.WidthMm()), float64(page.Size.HeightMm())

		encoded, err := page.PNG()
		if err != nil {
			return nil, err
		}

		// "P" keeps fpdf from swapping width and height
		doc.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})
		name := fmt.Sprintf("page-%d", i)
		info := doc.RegisterImageOptionsReader(name, imageOptions, bytes.NewReader(encoded))
		if info != nil {
			info.SetDpi(float64(page.Size.PPI))
		}
		doc.ImageOptions(name, 0, 0, width, height, false, imageOptions, 0, "")
	}

	var out bytes.Buffer
	if err := doc.Output(&out); err != nil {
		return nil, wrap(ErrPDFWrite, err)
	}
	return out.Bytes(), nil
}
