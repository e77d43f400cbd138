package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ironsheep/quadtree-image-tools/internal/imaging"
	"github.com/ironsheep/quadtree-image-tools/internal/quadtree"
)

// Levels are the target compression ratios of a sweep, finest last.
var Levels = []float64{0.002, 0.004, 0.01, 0.033, 0.077, 0.2, 0.5, 0.65}

// EdgeThreshold is the split threshold used for edge detection.
const EdgeThreshold = 5000.0

// DefaultExt is the output extension used when Options.Ext is empty.
const DefaultExt = ".ppm"

// Options configures the compression and edge workflows.
type Options struct {
	// ShowTree overlays leaf outlines on every produced image.
	ShowTree bool

	// OutlineColor is the outline color used with ShowTree. The zero value
	// is black; DefaultOptions sets white.
	OutlineColor imaging.Color

	// Ext selects the output format by extension, e.g. ".ppm" or ".png".
	Ext string

	// Workers bounds how many levels are calibrated concurrently.
	// Values below 1 mean 1.
	Workers int

	// Calibrator searches thresholds. Nil means quadtree.DefaultCalibrator().
	// Its Observe callback may be invoked from several goroutines.
	Calibrator *quadtree.Calibrator
}

// DefaultOptions returns options for a sequential sweep writing PPM files
// with white outlines.
func DefaultOptions() Options {
	return Options{
		OutlineColor: imaging.White,
		Ext:          DefaultExt,
		Workers:      1,
	}
}

func (o Options) calibrator() *quadtree.Calibrator {
	if o.Calibrator != nil {
		return o.Calibrator
	}
	return quadtree.DefaultCalibrator()
}

func (o Options) ext() string {
	if o.Ext == "" {
		return DefaultExt
	}
	if !strings.HasPrefix(o.Ext, ".") {
		return "." + o.Ext
	}
	return o.Ext
}

// LevelResult describes one compression level of a sweep.
type LevelResult struct {
	Index      int     `json:"index"`      // 1-based position in the sweep
	Ratio      float64 `json:"ratio"`      // Requested leaves/pixels ratio
	Target     int     `json:"target"`     // Requested leaf count
	Output     string  `json:"output"`     // Written file, empty for in-memory runs
	Leaves     int     `json:"leaves"`     // Actual leaf count
	Pixels     int     `json:"pixels"`     // Pixels in the source image
	Achieved   float64 `json:"achieved"`   // Actual leaves/pixels ratio
	Threshold  float64 `json:"threshold"`  // Split threshold used
	Iterations int     `json:"iterations"` // Trees built while calibrating
	Err        error   `json:"-"`          // Non-nil if the level was skipped

	// Quality compares the plain rendering (without outlines) to the source.
	Quality *imaging.Difference `json:"quality,omitempty"`
}

// EdgeResult describes one edge detection run.
type EdgeResult struct {
	Output    string  `json:"output"`
	Threshold float64 `json:"threshold"`
	Leaves    int     `json:"leaves"`
	Pixels    int     `json:"pixels"`
}

// Reporter receives workflow progress. Calls arrive in level order from a
// single goroutine.
type Reporter interface {
	SweepStarted(width, height int)
	LevelDone(LevelResult)
	EdgeDone(EdgeResult)
}

// CompressLevel calibrates a threshold for ratio and renders the compressed
// image in memory.
//
// The returned buffer is nil when calibration fails; the error then wraps
// quadtree.ErrNotCalibrated.
func CompressLevel(buf *imaging.Buffer, ratio float64, opts Options) (LevelResult, *imaging.Buffer, error) {
	pixels := buf.Pixels()
	res := LevelResult{
		Ratio:  ratio,
		Target: quadtree.TargetLeaves(pixels, ratio),
		Pixels: pixels,
	}

	cal, err := opts.calibrator().Calibrate(buf, res.Target)
	if err != nil {
		res.Err = fmt.Errorf("compression level %g not good for this image: %w", ratio, err)
		return res, nil, res.Err
	}

	tree := quadtree.New(buf, cal.Threshold)
	out := tree.Render()
	if q, err := imaging.Compare(buf, out); err == nil {
		res.Quality = q
	}
	if opts.ShowTree {
		tree.DrawOutlineColor(out, opts.OutlineColor)
	}

	res.Threshold = cal.Threshold
	res.Iterations = cal.Iterations
	res.Leaves = tree.CountLeaves()
	if pixels > 0 {
		res.Achieved = float64(res.Leaves) / float64(pixels)
	}
	return res, out, nil
}

// Compress runs every level in Levels against buf and writes each result to
// "<base>-<index><ext>".
//
// A level that cannot be calibrated or written is recorded with a non-nil
// Err and the sweep moves on. Levels are processed on up to opts.Workers
// goroutines; results and reports keep level order.
func Compress(buf *imaging.Buffer, base string, opts Options, rep Reporter) []LevelResult {
	if rep != nil {
		rep.SweepStarted(buf.Width(), buf.Height())
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]LevelResult, len(Levels))
	done := make([]chan struct{}, len(Levels))
	for i := range done {
		done[i] = make(chan struct{})
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, ratio := range Levels {
		wg.Add(1)
		go func(i int, ratio float64) {
			defer wg.Done()
			defer close(done[i])
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = compressAndSave(buf, i, ratio, base, opts)
		}(i, ratio)
	}

	for i := range Levels {
		<-done[i]
		if rep != nil {
			rep.LevelDone(results[i])
		}
	}
	wg.Wait()

	return results
}

func compressAndSave(buf *imaging.Buffer, i int, ratio float64, base string, opts Options) LevelResult {
	res, out, err := CompressLevel(buf, ratio, opts)
	res.Index = i + 1
	if err != nil {
		return res
	}

	res.Output = fmt.Sprintf("%s-%d%s", base, res.Index, opts.ext())
	if err := imaging.Save(res.Output, out); err != nil {
		res.Err = fmt.Errorf("failed to write %s: %w", res.Output, err)
	}
	return res
}

// EdgeImage builds a tree at threshold and returns its edge response,
// outlined if requested.
func EdgeImage(buf *imaging.Buffer, threshold float64, opts Options) (EdgeResult, *imaging.Buffer) {
	tree := quadtree.New(buf, threshold)
	out := tree.EdgeDetect(buf)
	if opts.ShowTree {
		tree.DrawOutlineColor(out, opts.OutlineColor)
	}
	return EdgeResult{
		Threshold: threshold,
		Leaves:    tree.CountLeaves(),
		Pixels:    buf.Pixels(),
	}, out
}

// EdgeDetect runs edge detection at EdgeThreshold and writes the result.
//
// output gets opts.Ext appended unless it already ends in that extension, so
// the written format always follows opts.Ext.
func EdgeDetect(buf *imaging.Buffer, output string, opts Options, rep Reporter) (EdgeResult, error) {
	res, out := EdgeImage(buf, EdgeThreshold, opts)
	res.Output = OutputName(output, opts.ext())

	if err := imaging.Save(res.Output, out); err != nil {
		return res, fmt.Errorf("failed to write %s: %w", res.Output, err)
	}
	if rep != nil {
		rep.EdgeDone(res)
	}
	return res, nil
}

// OutputName appends ext to name unless name already ends in ext, compared
// case-insensitively. A trailing ".zst" after ext also counts as a match.
func OutputName(name, ext string) string {
	if hasSuffixFold(name, ext) || hasSuffixFold(name, ext+".zst") {
		return name
	}
	return name + ext
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
