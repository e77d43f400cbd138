package quadtree

import (
	"errors"
	"math"

	"github.com/ironsheep/quadtree-image-tools/internal/imaging"
)

// ErrNotCalibrated is returned when the search ran no iterations and so has
// no threshold to offer.
var ErrNotCalibrated = errors.New("no threshold found for target leaf count")

// Search defaults. The upper bound covers every reachable mean error: the
// squared distance between two colors never exceeds 3*255*255 = 195075.
const (
	DefaultMinThreshold  = 0.0
	DefaultMaxThreshold  = 200000.0
	DefaultMaxIterations = 30
	DefaultTolerance     = 0.1
)

// TargetLeaves converts a compression ratio into a leaf count:
// floor(pixels × ratio).
func TargetLeaves(pixels int, ratio float64) int {
	return int(math.Floor(float64(pixels) * ratio))
}

// Trial records one iteration of the threshold search.
type Trial struct {
	Iteration int
	Threshold float64
	Leaves    int
	Target    int
}

// Calibration is the outcome of a threshold search.
type Calibration struct {
	// Threshold is the best threshold seen, the one whose leaf count was
	// closest to Target.
	Threshold float64 `json:"threshold"`

	// Leaves is the leaf count produced by Threshold.
	Leaves int `json:"leaves"`

	// Target is the requested leaf count.
	Target int `json:"target"`

	// Iterations is the number of trees built during the search.
	Iterations int `json:"iterations"`
}

// Calibrator binary-searches the split threshold for a target leaf count.
//
// Leaf count is a step function of the threshold that only tends to decrease
// as the threshold grows, so the search keeps the best threshold seen rather
// than relying on convergence. An exact match is not guaranteed.
type Calibrator struct {
	// Min and Max bound the searched threshold interval.
	Min, Max float64

	// MaxIterations caps the number of trees built.
	MaxIterations int

	// Tolerance stops the search once the best leaf count is within
	// Tolerance × target of the target.
	Tolerance float64

	// Observe, if set, receives every trial. It must not retain buf.
	Observe func(Trial)
}

// DefaultCalibrator returns a Calibrator searching [0, 200000] for at most
// 30 iterations with a 10% tolerance.
func DefaultCalibrator() *Calibrator {
	return &Calibrator{
		Min:           DefaultMinThreshold,
		Max:           DefaultMaxThreshold,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

// Calibrate searches for the threshold whose tree over buf has a leaf count
// closest to target.
//
// Each iteration builds a tree at the midpoint of the current interval. Too
// many leaves means the tree is too fine, so the lower bound rises; too few
// lowers the upper bound; an exact match returns immediately. The search also
// stops once the difference drops below Tolerance × target.
//
// # Errors
//
// Returns ErrNotCalibrated if MaxIterations is not positive.
func (c *Calibrator) Calibrate(buf *imaging.Buffer, target int) (Calibration, error) {
	lo, hi := c.Min, c.Max
	best := Calibration{Target: target}
	bestDiff := math.MaxInt

	for iter := 0; iter < c.MaxIterations; iter++ {
		mid := (lo + hi) / 2
		leaves := New(buf, mid).CountLeaves()
		best.Iterations = iter + 1

		if c.Observe != nil {
			c.Observe(Trial{Iteration: iter + 1, Threshold: mid, Leaves: leaves, Target: target})
		}

		diff := leaves - target
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			best.Threshold = mid
			best.Leaves = leaves
		}

		switch {
		case leaves > target:
			lo = mid
		case leaves < target:
			hi = mid
		default:
			best.Threshold = mid
			best.Leaves = leaves
			return best, nil
		}

		if float64(diff) < float64(target)*c.Tolerance {
			break
		}
	}

	if best.Iterations == 0 {
		return best, ErrNotCalibrated
	}
	return best, nil
}
