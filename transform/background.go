package transform

import "fmt"

const (
	// BackgroundThreshold is the queen-wise distance from white below which a
	// pixel counts as background. It is policy, not a tuning knob.
	BackgroundThreshold = 90

	// BGRAPixelSize is the number of bytes per pixel in a rendered surface.
	// Surfaces are little-endian ARGB32, so the bytes are blue, green, red, alpha.
	BGRAPixelSize = 4
)

// IsBackground classifies a pixel using the queen-wise (Chebyshev) distance to
// white, see Mahama 2016 <https://doi.org/10.2352/ISSN.2470-1173.2016.20.COLOR-349>
func IsBackground(b, g, r uint8) bool {
	// 255-c can't underflow, so the largest distance comes from the darkest channel
	darkest := min(b, g, r)
	return 255-int(darkest) < BackgroundThreshold
}

// NormalizeBackground replaces every background pixel of a BGRA buffer with bg.
// Alpha is left untouched. Padding at the end of rows is treated like pixels.
func NormalizeBackground(buf []byte, bg Color) error {
	if len(buf)%BGRAPixelSize != 0 {
		return fmt.Errorf("%w: buffer of %d bytes is not made of whole pixels", ErrPixelRead, len(buf))
	}
	b, g, r := bg.B, bg.G, bg.R
	for i := 0; i < len(buf); i += BGRAPixelSize {
		px := buf[i : i+3 : i+3]
		if IsBackground(px[0], px[1], px[2]) {
			px[0] = b
			px[1] = g
			px[2] = r
		}
	}
	return nil
}
