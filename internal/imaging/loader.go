package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zstd"
	"github.com/xfmoulet/qoi"
)

// ErrNotSquare is returned by LoadSquare for images whose width and height
// differ.
var ErrNotSquare = errors.New("image must be square")

// zstdSuffix marks a file whose inner format is wrapped in a zstd stream,
// e.g. "photo.ppm.zst".
const zstdSuffix = ".zst"

// Load reads an image file into a Buffer, choosing the decoder by extension.
//
// Supported formats:
//   - ".ppm", ".pnm": plain P3 text (see DecodePPM)
//   - ".qoi": Quite OK Image format
//   - ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff": raster formats
//   - any of the above followed by ".zst": the inner format compressed with zstd
func Load(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	name := path
	if strings.EqualFold(filepath.Ext(name), zstdSuffix) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	buf, err := decode(r, strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return buf, nil
}

// LoadSquare is Load followed by a square-shape check.
func LoadSquare(path string) (*Buffer, error) {
	buf, err := Load(path)
	if err != nil {
		return nil, err
	}
	if !buf.IsSquare() {
		return nil, fmt.Errorf("%s is %dx%d: %w", path, buf.Width(), buf.Height(), ErrNotSquare)
	}
	return buf, nil
}

func decode(r io.Reader, ext string) (*Buffer, error) {
	switch ext {
	case ".ppm", ".pnm":
		return DecodePPM(r)
	case ".qoi":
		img, err := qoi.Decode(r)
		if err != nil {
			return nil, err
		}
		return FromImage(img), nil
	default:
		img, err := imaging.Decode(r)
		if err != nil {
			return nil, err
		}
		return FromImage(img), nil
	}
}

// Save writes buf to path, choosing the encoder by extension as in Load.
//
// The file is created (or truncated) before encoding; on error the partial
// file is left in place for the caller to inspect or remove.
func Save(path string, buf *Buffer) (err error) {
	name := path
	compressed := strings.EqualFold(filepath.Ext(name), zstdSuffix)
	if compressed {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !SupportedExtension(ext) {
		return fmt.Errorf("cannot save %s: %w", path, ErrUnsupportedFormat)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	if !compressed {
		return encode(f, buf, ext)
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("failed to open zstd stream: %w", err)
	}
	if err := encode(enc, buf, ext); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return nil
}

func encode(w io.Writer, buf *Buffer, ext string) error {
	switch ext {
	case ".ppm", ".pnm":
		return EncodePPM(w, buf)
	case ".qoi":
		if err := qoi.Encode(w, buf); err != nil {
			return fmt.Errorf("failed to encode QOI: %w", err)
		}
		return nil
	default:
		format, err := imaging.FormatFromExtension(ext)
		if err != nil {
			return fmt.Errorf("%s: %w", ext, ErrUnsupportedFormat)
		}
		if err := imaging.Encode(w, buf, format); err != nil {
			return fmt.Errorf("failed to encode image: %w", err)
		}
		return nil
	}
}

// SupportedExtension reports whether ext (with leading dot, any case) names a
// format Save can write.
func SupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".ppm", ".pnm", ".qoi":
		return true
	}
	_, err := imaging.FormatFromExtension(ext)
	return err == nil
}

// EncodePNGBase64 renders buf as a base64-encoded PNG.
func EncodePNGBase64(buf *Buffer) (string, error) {
	var out bytes.Buffer
	if err := imaging.Encode(&out, buf, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}
	return base64.StdEncoding.EncodeToString(out.Bytes()), nil
}

// BufferCache provides thread-safe caching of loaded buffers to avoid
// redundant disk reads and decoding.
//
// Buffers are keyed by the exact path string. Callers must treat cached
// buffers as read-only; use Copy before mutating one.
type BufferCache struct {
	mu      sync.RWMutex
	buffers map[string]*Buffer
}

// NewBufferCache creates an empty cache.
func NewBufferCache() *BufferCache {
	return &BufferCache{
		buffers: make(map[string]*Buffer),
	}
}

// Load returns the cached buffer for path, loading it on first use.
func (c *BufferCache) Load(path string) (*Buffer, error) {
	c.mu.RLock()
	if buf, ok := c.buffers[path]; ok {
		c.mu.RUnlock()
		return buf, nil
	}
	c.mu.RUnlock()

	buf, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.buffers[path] = buf
	c.mu.Unlock()

	return buf, nil
}

// LoadSquare is Load followed by the square-shape check.
func (c *BufferCache) LoadSquare(path string) (*Buffer, error) {
	buf, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	if !buf.IsSquare() {
		return nil, fmt.Errorf("%s is %dx%d: %w", path, buf.Width(), buf.Height(), ErrNotSquare)
	}
	return buf, nil
}

// Clear removes all buffers from the cache.
func (c *BufferCache) Clear() {
	c.mu.Lock()
	c.buffers = make(map[string]*Buffer)
	c.mu.Unlock()
}

// Evict removes the buffer cached under path, if any.
func (c *BufferCache) Evict(path string) {
	c.mu.Lock()
	delete(c.buffers, path)
	c.mu.Unlock()
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Square reports whether the image can be decomposed by the quadtree.
	Square bool `json:"square"`

	// Format is the lower-case extension without the dot, e.g. "ppm" or "png".
	// Compressed files report the inner format with a "+zst" suffix.
	Format string `json:"format"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through cache and describes it.
func LoadImageInfo(cache *BufferCache, path string) (*ImageInfo, error) {
	buf, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	name := path
	suffix := ""
	if strings.EqualFold(filepath.Ext(name), zstdSuffix) {
		name = strings.TrimSuffix(name, filepath.Ext(name))
		suffix = "+zst"
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if format == "" {
		format = "unknown"
	}

	return &ImageInfo{
		Width:         buf.Width(),
		Height:        buf.Height(),
		Square:        buf.IsSquare(),
		Format:        format + suffix,
		FileSizeBytes: stat.Size(),
	}, nil
}
