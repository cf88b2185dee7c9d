package transform

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/drummonds/purpleify/engine/pdfrenderer"
)

// fakeRenderer renders every page as a transparent sheet with a black square in
// the top left quarter and a red mark in the right column, on the row of the
// page index, so no two pages are identical
type fakeRenderer struct {
	pages   int
	title   string
	width   float64
	height  float64
	openErr error
	// renderErrAt fails rendering of that page index when >= 0
	renderErrAt int
	opened      []*fakeDocument
}

func newFakeRenderer(pages int) *fakeRenderer {
	return &fakeRenderer{pages: pages, title: "Fake document", width: 72, height: 144, renderErrAt: -1}
}

func (r *fakeRenderer) Open(data []byte) (pdfrenderer.Document, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	doc := &fakeDocument{renderer: r}
	r.opened = append(r.opened, doc)
	return doc, nil
}

func (r *fakeRenderer) Close() error { return nil }

type fakeDocument struct {
	renderer *fakeRenderer
	rendered []int
	closed   bool
}

func (d *fakeDocument) NumPage() int  { return d.renderer.pages }
func (d *fakeDocument) Title() string { return d.renderer.title }

func (d *fakeDocument) PageSize(index int) (float64, float64, error) {
	if index < 0 || index >= d.renderer.pages {
		return 0, 0, pdfrenderer.ErrPageIndex
	}
	return d.renderer.width, d.renderer.height, nil
}

func (d *fakeDocument) RenderPage(index, width, height int) (image.Image, error) {
	if index == d.renderer.renderErrAt {
		return nil, errors.New("corrupt content stream")
	}
	d.rendered = append(d.rendered, index)
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, image.Rect(0, 0, width/2, height/2), image.NewUniform(color.Black), image.Point{}, draw.Src)
	img.Set(width-1, index%height, color.NRGBA{R: 128, A: 255})
	return img, nil
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}
