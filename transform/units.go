package transform

import "math"

// These constants are relied on by consumers of the generated documents and must
// not be changed.
const (
	// inchesPerPoint is slightly off the typographic 1/72 on purpose
	inchesPerPoint = 0.996264 / 72.0
	mmPerPoint     = 0.352778
)

// PPI is a pixel density in pixels per inch
type PPI float64

// Pt is a length in PDF points
type Pt float64

// Px is a length in (possibly fractional) pixels
type Px float64

// Mm is a length in millimeters
type Mm float64

// ToPx converts points to pixels at the given density
func (p Pt) ToPx(ppi PPI) Px {
	inches := float64(p) * inchesPerPoint
	return Px(inches * float64(ppi))
}

// ToMm converts points to millimeters
func (p Pt) ToMm() Mm {
	return Mm(float64(p) * mmPerPoint)
}

// Ceil rounds up to a whole number of pixels
func (p Px) Ceil() int {
	return int(math.Ceil(float64(p)))
}

// PageSize is the natural size of a page and the density it is rendered at
type PageSize struct {
	Width  Pt
	Height Pt
	PPI    PPI
}

// NewPageSize records a page's size in points at the density of q
func NewPageSize(width, height float64, q Quality) PageSize {
	return PageSize{Width: Pt(width), Height: Pt(height), PPI: q.PPI()}
}

// WidthPx is the rendered width in whole pixels
func (s PageSize) WidthPx() int { return s.Width.ToPx(s.PPI).Ceil() }

// HeightPx is the rendered height in whole pixels
func (s PageSize) HeightPx() int { return s.Height.ToPx(s.PPI).Ceil() }

// WidthMm is the page width in millimeters
func (s PageSize) WidthMm() Mm { return s.Width.ToMm() }

// HeightMm is the page height in millimeters
func (s PageSize) HeightMm() Mm { return s.Height.ToMm() }

// ScaleFactor is the number of pixels one point covers at this density
func (s PageSize) ScaleFactor() float64 {
	return float64(Pt(1).ToPx(s.PPI))
}
