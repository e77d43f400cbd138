package imaging

import (
	"fmt"
	"math"
)

// diffThreshold is the per-pixel average channel difference above which two
// pixels count as different.
const diffThreshold = 10

// Difference summarizes how far one buffer is from another of the same size.
type Difference struct {
	// MSE is the mean squared channel error per pixel, averaged over the
	// three channels.
	MSE float64 `json:"mse"`

	// PSNR is the peak signal-to-noise ratio in dB. Identical buffers report
	// +Inf, which JSON cannot carry, so PSNR is capped at MaxPSNR.
	PSNR float64 `json:"psnr_db"`

	// AverageColorDiff is the mean absolute channel difference.
	AverageColorDiff float64 `json:"average_color_diff"`

	// PixelsDifferent counts pixels whose average channel difference
	// exceeds 10.
	PixelsDifferent int `json:"pixels_different"`

	// Similarity is 1 - PixelsDifferent/TotalPixels, rounded to 3 decimals.
	Similarity float64 `json:"similarity"`

	TotalPixels int `json:"total_pixels"`
}

// MaxPSNR is reported for identical buffers.
const MaxPSNR = 99.0

// Compare measures the difference between a and b pixel by pixel.
func Compare(a, b *Buffer) (*Difference, error) {
	if a.width != b.width || a.height != b.height {
		return nil, fmt.Errorf("cannot compare %dx%d with %dx%d", a.width, a.height, b.width, b.height)
	}

	d := &Difference{TotalPixels: len(a.pix), PSNR: MaxPSNR, Similarity: 1}
	if d.TotalPixels == 0 {
		return d, nil
	}

	var sq, abs float64
	for i, p := range a.pix {
		q := b.pix[i]
		sq += float64(p.SquaredDistance(q))

		diff := absDiff(p.R, q.R) + absDiff(p.G, q.G) + absDiff(p.B, q.B)
		abs += float64(diff)
		if float64(diff)/3 > diffThreshold {
			d.PixelsDifferent++
		}
	}

	n := float64(d.TotalPixels)
	d.MSE = sq / (3 * n)
	d.AverageColorDiff = math.Round(abs/(3*n)*100) / 100
	d.Similarity = math.Round((1-float64(d.PixelsDifferent)/n)*1000) / 1000
	if d.MSE > 0 {
		d.PSNR = math.Min(MaxPSNR, 10*math.Log10(255*255/d.MSE))
	}
	return d, nil
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
