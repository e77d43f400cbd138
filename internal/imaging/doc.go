// Package imaging provides the pixel model and image I/O used by the quadtree
// tools.
//
// The package defines Color, an opaque 8-bit RGB triplet with clamping
// construction and a squared-distance metric, and Buffer, a bounds-safe 2D
// raster of Colors. It also reads and writes buffers in several formats.
// All coordinates use (0,0) at the top-left corner, X increasing rightward
// and Y increasing downward.
//
// # Total Access
//
// Buffer.Get never fails: reads outside the raster return Black. Buffer.Set
// silently ignores writes outside the raster. Callers doing convolution near
// the borders see an implicit black halo without special-casing.
//
// # File Formats
//
// Load and Save pick a codec by file extension:
//   - ".ppm": plain "P3" PPM text, the native format of the command line tool.
//     Samples are always read as 8-bit values; the maxval header field is
//     validated but never used to rescale.
//   - ".qoi": Quite OK Image format
//   - ".png", ".jpg", ".gif", ".bmp", ".tiff": through disintegration/imaging
//   - "<name>.<ext>.zst": any of the above wrapped in a zstd stream
//
// # Quality
//
// Compare reports MSE, PSNR and a similarity score between two equally sized
// buffers, e.g. a source image and its compressed rendering.
//
// # Thread Safety
//
// BufferCache is safe for concurrent use. A Buffer may be read from many
// goroutines at once but must have a single writer.
//
// # Error Handling
//
// Decoding errors wrap ErrUnsupportedFormat or ErrMalformed; LoadSquare wraps
// ErrNotSquare. Use errors.Is to classify them.
package imaging
