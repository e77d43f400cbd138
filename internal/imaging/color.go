package imaging

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Color represents an opaque RGB color with 8-bit components.
//
// Color is a value type: assigning or passing a Color copies it, and two
// colors are equal exactly when all three components match.
type Color struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

var (
	// Black is the zero Color and the value returned for out-of-bounds reads.
	Black = Color{}

	// White is used for tree outlines.
	White = Color{R: 255, G: 255, B: 255}
)

// NewColor builds a Color from integer components.
//
// Components below 0 clamp to 0 and components above 255 clamp to 255.
// NewColor never fails; convolution sums and decoded values that fall outside
// the 8-bit range are absorbed here.
func NewColor(r, g, b int) Color {
	return Color{R: clampChannel(r), G: clampChannel(g), B: clampChannel(b)}
}

// SquaredDistance returns the sum of squared per-channel differences.
//
// This is the error metric used throughout the quadtree. It is symmetric and
// zero only for identical colors. No square root is taken, so the result is
// always an exact integer in [0, 195075].
func (c Color) SquaredDistance(o Color) int {
	dr := int(c.R) - int(o.R)
	dg := int(c.G) - int(o.G)
	db := int(c.B) - int(o.B)
	return dr*dr + dg*dg + db*db
}

// String renders the color as "(r, g, b)".
func (c Color) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.R, c.G, c.B)
}

// RGBA implements color.Color. The alpha channel is always fully opaque.
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R)
	r |= r << 8
	g = uint32(c.G)
	g |= g << 8
	b = uint32(c.B)
	b |= b << 8
	return r, g, b, 0xffff
}

// Hex returns the color in "#rrggbb" form.
func (c Color) Hex() string {
	return c.colorful().Hex()
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// ParseHex parses a "#rrggbb" or "#rgb" string into a Color.
func ParseHex(s string) (Color, error) {
	cf, err := colorful.Hex(s)
	if err != nil {
		return Black, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	r, g, b := cf.Clamped().RGB255()
	return Color{R: r, G: g, B: b}, nil
}

// ColorFrom converts any color.Color to a Color, discarding alpha.
func ColorFrom(c color.Color) Color {
	if own, ok := c.(Color); ok {
		return own
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B}
}

// ColorModel converts arbitrary colors into Color values.
var ColorModel = color.ModelFunc(func(c color.Color) color.Color {
	return ColorFrom(c)
})

func clampChannel(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
