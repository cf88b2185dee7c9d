package engine

import (
	"bytes"
	"fmt"

	"github.com/drummonds/purpleify/engine/pdfrenderer"
	"github.com/go-pdf/fpdf"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	if err := rendererChecks(serverHandler.Renderer); err != nil {
		Logger.Error("Renderer failed its startup check", "renderer", serverHandler.ServerConfig.Renderer, "error", err)
		return err
	}
	Logger.Info("Renderer startup check passed", "renderer", serverHandler.ServerConfig.Renderer)
	return nil
}

// rendererChecks opens and rasterizes a generated one page document
func rendererChecks(renderer pdfrenderer.Renderer) error {
	if renderer == nil {
		return fmt.Errorf("no renderer configured")
	}

	sample, err := samplePDF()
	if err != nil {
		return fmt.Errorf("unable to build sample PDF: %w", err)
	}

	doc, err := renderer.Open(sample)
	if err != nil {
		return fmt.Errorf("unable to open sample PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() != 1 {
		return fmt.Errorf("sample PDF reports %d pages, want 1", doc.NumPage())
	}

	width, height, err := doc.PageSize(0)
	if err != nil {
		return fmt.Errorf("unable to size sample page: %w", err)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("sample page has invalid size %gx%g", width, height)
	}

	surface, err := pdfrenderer.RasterizeOnWhite(doc, 0, 21, 29)
	if err != nil {
		return fmt.Errorf("unable to rasterize sample page: %w", err)
	}
	if len(surface.Data) != 21*29*4 {
		return fmt.Errorf("sample surface is %d bytes, want %d", len(surface.Data), 21*29*4)
	}
	return nil
}

// samplePDF is a one page A4 document titled "Startup check"
func samplePDF() ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Startup check", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "purpleify")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
