package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Buffer is an in-memory RGB raster addressed by (x, y) with (0,0) at the
// top-left corner.
//
// Access is total: Get returns Black outside [0,width) × [0,height) and Set
// ignores out-of-bounds writes. Convolution near the borders and quadrant
// splits of odd-sized regions rely on this instead of special-casing edges.
//
// Buffer implements image.Image, so it can be passed directly to encoders.
// A Buffer is not safe for concurrent writes; concurrent reads are fine.
type Buffer struct {
	width  int
	height int
	pix    []Color
}

// NewBuffer allocates a width × height buffer with every pixel black.
// Negative dimensions are treated as zero, as are dimensions whose pixel
// count overflows int.
func NewBuffer(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	if width > 0 && height > math.MaxInt/width {
		width, height = 0, 0
	}
	return &Buffer{
		width:  width,
		height: height,
		pix:    make([]Color, width*height),
	}
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.height }

// IsSquare reports whether width equals height.
func (b *Buffer) IsSquare() bool { return b.width == b.height }

// Pixels returns the total pixel count.
func (b *Buffer) Pixels() int { return b.width * b.height }

func (b *Buffer) inBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// Get returns the color at (x, y), or Black when (x, y) is out of bounds.
func (b *Buffer) Get(x, y int) Color {
	if !b.inBounds(x, y) {
		return Black
	}
	return b.pix[y*b.width+x]
}

// Set stores c at (x, y). Out-of-bounds writes are silently dropped.
func (b *Buffer) Set(x, y int, c Color) {
	if !b.inBounds(x, y) {
		return
	}
	b.pix[y*b.width+x] = c
}

// Fill paints every pixel of the rectangle [x, x+w) × [y, y+h) with c,
// clipped to the buffer.
func (b *Buffer) Fill(x, y, w, h int, c Color) {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, b.width), min(y+h, b.height)
	for py := y0; py < y1; py++ {
		row := b.pix[py*b.width : (py+1)*b.width]
		for px := x0; px < x1; px++ {
			row[px] = c
		}
	}
}

// Copy returns a deep clone of the buffer.
func (b *Buffer) Copy() *Buffer {
	out := &Buffer{
		width:  b.width,
		height: b.height,
		pix:    make([]Color, len(b.pix)),
	}
	copy(out.pix, b.pix)
	return out
}

// Equal reports whether two buffers have the same dimensions and pixels.
func (b *Buffer) Equal(o *Buffer) bool {
	if b.width != o.width || b.height != o.height {
		return false
	}
	for i := range b.pix {
		if b.pix[i] != o.pix[i] {
			return false
		}
	}
	return true
}

// ColorModel implements image.Image.
func (b *Buffer) ColorModel() color.Model { return ColorModel }

// Bounds implements image.Image.
func (b *Buffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

// At implements image.Image.
func (b *Buffer) At(x, y int) color.Color { return b.Get(x, y) }

// FromImage converts a decoded image into a Buffer.
//
// The source is normalized to non-premultiplied RGBA first, so images with
// transparency keep their straight color values; alpha itself is discarded.
// The result is anchored at (0,0) regardless of the source bounds.
func FromImage(img image.Image) *Buffer {
	if own, ok := img.(*Buffer); ok {
		return own.Copy()
	}

	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	buf := NewBuffer(w, h)
	for y := 0; y < h; y++ {
		offset := y * nrgba.Stride
		for x := 0; x < w; x++ {
			buf.pix[y*w+x] = Color{
				R: nrgba.Pix[offset+0],
				G: nrgba.Pix[offset+1],
				B: nrgba.Pix[offset+2],
			}
			offset += 4
		}
	}
	return buf
}
