package transform

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is an 8-bit RGB colour. There is no alpha channel.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// DefaultBackgroundColor is #e261ff, a purple
var DefaultBackgroundColor = Color{R: 226, G: 97, B: 255}

// NewColor creates a colour from its channels
func NewColor(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// ParseHexColor parses a CSS style "#rrggbb" colour, the leading # is optional
func ParseHexColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Hex returns the colour as "#rrggbb"
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string {
	return c.Hex()
}
