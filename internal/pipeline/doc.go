// Package pipeline wires the quadtree engine to files: a compression sweep
// over fixed target ratios and a single edge detection pass.
//
// The engine itself performs no I/O. Progress flows through a Reporter
// supplied by the caller, and calibration traces through the Calibrator's
// Observe callback.
//
// A failed level (no threshold, unwritable output) is recorded in its
// LevelResult and never aborts the rest of the sweep.
package pipeline
