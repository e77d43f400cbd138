// Package quadtree decomposes square images into regions of near-uniform
// color and uses the decomposition for compression and edge detection.
//
// # Decomposition
//
// Each Node covers a square region and caches its mean color (per-channel
// integer average, truncated) and mean error (average squared color distance
// to the mean). A node splits into four quadrants when its size exceeds one
// pixel and its mean error exceeds the tree's threshold. Quadrants have size
// size/2, so when an odd-sized region splits its last row and column belong
// to no child and are left black by Render and EdgeDetect.
//
// # Operations
//
//   - Tree.Render paints every leaf with its mean color (lossy compression)
//   - Tree.DrawOutline overlays leaf borders for inspection
//   - Tree.EdgeDetect convolves small leaves with an edge kernel and blacks
//     out large, flat leaves
//   - Calibrator searches the threshold that yields a target leaf count
//
// # Concurrency
//
// Trees are immutable once built and safe for concurrent readers. Large
// regions build their four subtrees in parallel; the result is identical to
// a sequential build.
package quadtree
