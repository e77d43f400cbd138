package quadtree

import (
	"github.com/anthonynsimon/bild/convolution"

	"github.com/ironsheep/quadtree-image-tools/internal/imaging"
)

// EdgeSizeCutoff is the largest leaf size that Tree.EdgeDetect convolves.
// Leaves above it are considered flat and suppressed to black.
const EdgeSizeCutoff = 8

// edgeKernel is the 3x3 Laplacian-style edge kernel
//
//	-1 -1 -1
//	-1  8 -1
//	-1 -1 -1
//
// Its weights sum to zero, so uniform neighborhoods produce black. Only the
// weights live in the bild kernel; convolvePixel does the convolution itself
// because border pixels must see the buffer's black halo, not bild's edge
// extension.
var edgeKernel = newEdgeKernel()

func newEdgeKernel() *convolution.Kernel {
	k := convolution.NewKernel(3, 3)
	for i := range k.Matrix {
		k.Matrix[i] = -1
	}
	k.Matrix[4] = 8
	return k
}

// convolvePixel applies edgeKernel centered on (px, py). Neighbors outside
// the buffer read as black; channel sums are clamped to [0, 255].
func convolvePixel(in *imaging.Buffer, px, py int) imaging.Color {
	var r, g, b int
	for ky := -1; ky <= 1; ky++ {
		for kx := -1; kx <= 1; kx++ {
			w := int(edgeKernel.At(kx+1, ky+1))
			c := in.Get(px+kx, py+ky)
			r += int(c.R) * w
			g += int(c.G) * w
			b += int(c.B) * w
		}
	}
	return imaging.NewColor(r, g, b)
}
