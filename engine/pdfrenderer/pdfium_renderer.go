package pdfrenderer

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// PDFiumRenderer implements PDF rendering using go-pdfium with WebAssembly (pure Go, no CGo)
type PDFiumRenderer struct {
	// mu serializes calls into the single PDFium instance
	mu       sync.Mutex
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

// NewPDFiumRenderer creates a new PDFium-based PDF renderer using WebAssembly
func NewPDFiumRenderer() (*PDFiumRenderer, error) {
	// Rendering is single threaded, one worker is all we need
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &PDFiumRenderer{
		pool:     pool,
		instance: instance,
	}, nil
}

// Open parses a PDF held in memory with PDFium
func (r *PDFiumRenderer) Open(data []byte) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.instance == nil {
		return nil, fmt.Errorf("PDFium renderer is closed")
	}

	doc, err := r.instance.OpenDocument(&requests.OpenDocument{
		File: &data,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}

	pageCount, err := r.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		return nil, fmt.Errorf("unable to get page count: %w", err)
	}

	title := ""
	meta, err := r.instance.FPDF_GetMetaText(&requests.FPDF_GetMetaText{
		Document: doc.Document,
		Tag:      "Title",
	})
	if err != nil {
		Logger.Debug("PDF title unavailable", "error", err)
	} else {
		title = meta.Value
	}

	return &pdfiumDocument{
		renderer: r,
		doc:      doc.Document,
		data:     data,
		numPages: pageCount.PageCount,
		title:    title,
	}, nil
}

// Close cleans up resources used by the PDFium renderer
func (r *PDFiumRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.instance != nil {
		r.instance.Close()
		r.instance = nil
	}
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
	return nil
}

type pdfiumDocument struct {
	renderer *PDFiumRenderer
	doc      references.FPDF_DOCUMENT
	// PDFium reads from data lazily
	data     []byte
	numPages int
	title    string
}

func (d *pdfiumDocument) NumPage() int {
	return d.numPages
}

func (d *pdfiumDocument) Title() string {
	return d.title
}

func (d *pdfiumDocument) PageSize(index int) (float64, float64, error) {
	if err := checkIndex(index, d.numPages); err != nil {
		return 0, 0, err
	}

	d.renderer.mu.Lock()
	defer d.renderer.mu.Unlock()

	size, err := d.renderer.instance.FPDF_GetPageSizeByIndex(&requests.FPDF_GetPageSizeByIndex{
		Document: d.doc,
		Index:    index,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("unable to measure page %d: %w", index, err)
	}
	return size.Width, size.Height, nil
}

func (d *pdfiumDocument) RenderPage(index, width, height int) (image.Image, error) {
	if err := checkIndex(index, d.numPages); err != nil {
		return nil, err
	}

	d.renderer.mu.Lock()
	defer d.renderer.mu.Unlock()

	pageRender, err := d.renderer.instance.RenderPageInPixels(&requests.RenderPageInPixels{
		Width:  width,
		Height: height,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.doc,
				Index:    index,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", index, err)
	}
	// The pixels live in WebAssembly memory until Cleanup, take a copy first
	img := imaging.Clone(pageRender.Result.Image)
	pageRender.Cleanup()

	return img, nil
}

func (d *pdfiumDocument) Close() error {
	d.renderer.mu.Lock()
	defer d.renderer.mu.Unlock()

	if d.renderer.instance == nil {
		return nil
	}
	_, err := d.renderer.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.doc,
	})
	d.data = nil
	return err
}
