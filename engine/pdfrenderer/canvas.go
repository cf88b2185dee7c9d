package pdfrenderer

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Surface is a rendered page in little-endian ARGB32 layout, so every pixel is
// stored as blue, green, red, alpha.
type Surface struct {
	Data   []byte
	Width  int
	Height int
	Stride int
}

// RasterizeOnWhite renders a page at exactly width x height pixels and paints it
// over an opaque white page, so transparent regions come out white whatever
// colour the caller later uses for the background.
func RasterizeOnWhite(doc Document, index, width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid surface size %dx%d", width, height)
	}

	rendered, err := doc.RenderPage(index, width, height)
	if err != nil {
		return nil, err
	}

	white := imaging.New(width, height, color.White)
	page := imaging.Overlay(white, rendered, image.Pt(0, 0), 1.0)

	return surfaceFromNRGBA(page), nil
}

// surfaceFromNRGBA swaps the channel order of an opaque NRGBA image into a new
// BGRA buffer
func surfaceFromNRGBA(img *image.NRGBA) *Surface {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := data[y*w*4 : (y+1)*w*4]
		for i := 0; i < len(src); i += 4 {
			dst[i+0] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+0]
			dst[i+3] = src[i+3]
		}
	}
	return &Surface{Data: data, Width: w, Height: h, Stride: w * 4}
}
