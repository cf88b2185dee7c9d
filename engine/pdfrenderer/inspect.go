package pdfrenderer

import (
	"bytes"
	"fmt"
	"math"

	"github.com/ledongthuc/pdf"
)

// Info is the metadata of a PDF read without rendering it
type Info struct {
	Title     string `json:"title"`
	PageCount int    `json:"pageCount"`
}

// Inspect reads the title and page count straight from the PDF structure.
// It is cheap compared to opening the document with a renderer.
func Inspect(data []byte) (info Info, err error) {
	// the pdf reader panics on some malformed input
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unable to read PDF structure: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	info.PageCount = reader.NumPage()
	info.Title = reader.Trailer().Key("Info").Key("Title").Text()
	return info, nil
}

// pageBox is the visible size of a page in points
type pageBox struct {
	width  float64
	height float64
}

// pageBoxes reads every page's crop box, or media box when it has none, from
// the page tree. Rotated pages are reported upright. A page whose box cannot
// be read is left zero, and nil is returned if the structure cannot be read.
func pageBoxes(data []byte) (boxes []pageBox) {
	defer func() {
		if r := recover(); r != nil {
			boxes = nil
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil
	}

	boxes = make([]pageBox, reader.NumPage())
	for i := range boxes {
		page := reader.Page(i + 1).V
		box := inherited(page, "CropBox")
		if box.Len() != 4 {
			box = inherited(page, "MediaBox")
		}
		if box.Len() != 4 {
			continue
		}
		width := math.Abs(box.Index(2).Float64() - box.Index(0).Float64())
		height := math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
		if rotate := inherited(page, "Rotate").Int64() % 180; rotate != 0 {
			width, height = height, width
		}
		boxes[i] = pageBox{width: width, height: height}
	}
	return boxes
}

// inherited looks key up on a page, then on its ancestors in the page tree
func inherited(page pdf.Value, key string) pdf.Value {
	for node := page; !node.IsNull(); node = node.Key("Parent") {
		if v := node.Key(key); !v.IsNull() {
			return v
		}
	}
	return pdf.Value{}
}
