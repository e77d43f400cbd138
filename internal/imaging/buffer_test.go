package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// createPatternImage creates an image with different colors in each quadrant
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			if x < width/2 && y < height/2 {
				c = color.RGBA{255, 0, 0, 255} // Red top-left
			} else if x >= width/2 && y < height/2 {
				c = color.RGBA{0, 255, 0, 255} // Green top-right
			} else if x < width/2 && y >= height/2 {
				c = color.RGBA{0, 0, 255, 255} // Blue bottom-left
			} else {
				c = color.RGBA{255, 255, 255, 255} // White bottom-right
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestNewBuffer_AllBlack(t *testing.T) {
	buf := NewBuffer(7, 5)

	if buf.Width() != 7 || buf.Height() != 5 {
		t.Fatalf("dimensions: got %dx%d, want 7x5", buf.Width(), buf.Height())
	}
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			if c := buf.Get(x, y); c != Black {
				t.Fatalf("pixel (%d,%d): got %v, want black", x, y, c)
			}
		}
	}
	if buf.IsSquare() {
		t.Error("7x5 buffer should not be square")
	}
}

func TestNewBuffer_NegativeDimensions(t *testing.T) {
	buf := NewBuffer(-3, 4)
	if buf.Width() != 0 || buf.Pixels() != 0 {
		t.Errorf("got %dx%d, want 0x4 with no pixels", buf.Width(), buf.Height())
	}
}

func TestNewBuffer_OverflowingDimensions(t *testing.T) {
	buf := NewBuffer(math.MaxInt/2, 3)
	if buf.Width() != 0 || buf.Height() != 0 || buf.Pixels() != 0 {
		t.Fatalf("got %dx%d with %d pixels, want an empty buffer", buf.Width(), buf.Height(), buf.Pixels())
	}

	buf.Set(0, 0, White)
	if buf.Get(0, 0) != Black {
		t.Errorf("Get on empty buffer: got %v, want black", buf.Get(0, 0))
	}
}

func TestBuffer_OutOfBounds(t *testing.T) {
	buf := NewBuffer(4, 4)
	buf.Fill(0, 0, 4, 4, White)

	tests := []struct {
		name string
		x, y int
	}{
		{"negative x", -1, 2},
		{"negative y", 2, -1},
		{"x too large", 4, 0},
		{"y too large", 0, 4},
		{"far away", 1000, -1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if c := buf.Get(tt.x, tt.y); c != Black {
				t.Errorf("Get(%d,%d): got %v, want black", tt.x, tt.y, c)
			}
			// Must not panic or wrap onto another row
			buf.Set(tt.x, tt.y, Color{1, 2, 3})
		})
	}

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if c := buf.Get(x, y); c != White {
				t.Fatalf("out-of-bounds Set leaked into (%d,%d): %v", x, y, c)
			}
		}
	}
}

func TestBuffer_SetStoresCopy(t *testing.T) {
	buf := NewBuffer(2, 2)
	c := NewColor(10, 20, 30)
	buf.Set(1, 1, c)
	c.R = 99

	if got := buf.Get(1, 1); got != NewColor(10, 20, 30) {
		t.Errorf("stored pixel changed with caller's value: %v", got)
	}
}

func TestBuffer_Copy(t *testing.T) {
	buf := NewBuffer(3, 3)
	buf.Set(0, 0, Color{1, 1, 1})
	buf.Set(2, 2, Color{9, 9, 9})

	dup := buf.Copy()
	if !dup.Equal(buf) {
		t.Fatal("copy differs from original")
	}

	dup.Set(0, 0, White)
	if buf.Get(0, 0) != (Color{1, 1, 1}) {
		t.Error("mutating the copy changed the original")
	}
	if dup.Equal(buf) {
		t.Error("Equal should detect the changed pixel")
	}
}

func TestBuffer_FillClipped(t *testing.T) {
	buf := NewBuffer(4, 4)
	buf.Fill(2, 2, 10, 10, White)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := Black
			if x >= 2 && y >= 2 {
				want = White
			}
			if got := buf.Get(x, y); got != want {
				t.Errorf("(%d,%d): got %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestFromImage(t *testing.T) {
	img := createPatternImage(10, 10)
	buf := FromImage(img)

	if buf.Width() != 10 || buf.Height() != 10 {
		t.Fatalf("dimensions: got %dx%d, want 10x10", buf.Width(), buf.Height())
	}

	tests := []struct {
		x, y int
		want Color
	}{
		{2, 2, Color{255, 0, 0}},
		{7, 2, Color{0, 255, 0}},
		{2, 7, Color{0, 0, 255}},
		{7, 7, White},
	}
	for _, tt := range tests {
		if got := buf.Get(tt.x, tt.y); got != tt.want {
			t.Errorf("(%d,%d): got %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestFromImage_OffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(5, 5, 8, 8))
	img.Set(5, 5, color.RGBA{10, 20, 30, 255})

	buf := FromImage(img)
	if got := buf.Get(0, 0); got != (Color{10, 20, 30}) {
		t.Errorf("origin pixel: got %v, want (10, 20, 30)", got)
	}
}

func TestBuffer_ImplementsImage(t *testing.T) {
	var img image.Image = NewBuffer(3, 2)

	if img.Bounds() != image.Rect(0, 0, 3, 2) {
		t.Errorf("Bounds: got %v", img.Bounds())
	}
	if _, _, _, a := img.At(1, 1).RGBA(); a != 0xffff {
		t.Errorf("At should be opaque, alpha %d", a)
	}
	if got := img.ColorModel().Convert(color.Gray{Y: 77}); got != (Color{77, 77, 77}) {
		t.Errorf("ColorModel.Convert: got %v", got)
	}
}
