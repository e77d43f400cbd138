package pipeline

import (
	"fmt"
	"io"
	"log"
)

// TextReporter prints a human-readable summary of each workflow step to W.
// Skipped levels are logged through the standard logger.
type TextReporter struct {
	W io.Writer
}

// SweepStarted prints the source dimensions.
func (r *TextReporter) SweepStarted(width, height int) {
	fmt.Fprintf(r.W, "Original image size: %dx%d\n", width, height)
	fmt.Fprintf(r.W, "Total pixels: %d\n\n", width*height)
}

// LevelDone prints one level's statistics, or logs why it was skipped.
func (r *TextReporter) LevelDone(res LevelResult) {
	if res.Err != nil {
		log.Printf("Image %d skipped: %v", res.Index, res.Err)
		return
	}
	fmt.Fprintf(r.W, "    Image %d:\n", res.Index)
	fmt.Fprintf(r.W, "    Output file: %s\n", res.Output)
	fmt.Fprintf(r.W, "    Quadtree leaves: %d\n", res.Leaves)
	fmt.Fprintf(r.W, "    Pixel count: %d\n", res.Pixels)
	fmt.Fprintf(r.W, "    Compression level: %.6f\n", res.Achieved)
	fmt.Fprintf(r.W, "    Threshold used: %.1f\n\n", res.Threshold)
}

// EdgeDone prints the edge detection output path.
func (r *TextReporter) EdgeDone(res EdgeResult) {
	fmt.Fprintln(r.W, "Edge detection complete.")
	fmt.Fprintf(r.W, "Output file: %s\n", res.Output)
}
