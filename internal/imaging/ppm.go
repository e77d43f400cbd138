package imaging

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	// ErrUnsupportedFormat is returned when the input is not a plain "P3" PPM
	// or the file extension maps to no known encoder.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrMalformed is returned for truncated or non-numeric PPM data.
	ErrMalformed = errors.New("malformed image data")
)

const (
	// maxPPMValue bounds the maxval header field, as in the netpbm definition.
	maxPPMValue = 65535

	// maxPPMPixels caps width*height so a hostile header cannot force a huge
	// allocation before any pixel data is read.
	maxPPMPixels = 1 << 28
)

// DecodePPM reads a plain (ASCII, "P3") PPM image.
//
// The header is the magic token, width, height and maxval, separated by
// whitespace. Comments start with '#' and run to the end of the line; they
// may appear anywhere a token separator is allowed. Maxval is validated but
// not used for scaling: channel values are taken as 8-bit samples and
// clamped to 0-255.
//
// # Errors
//
//   - ErrUnsupportedFormat if the magic token is not "P3"
//   - ErrMalformed for missing or non-numeric tokens, non-positive or
//     oversized dimensions, or an out-of-range maxval
func DecodePPM(r io.Reader) (*Buffer, error) {
	tr := newTokenReader(r)

	magic, err := tr.next()
	if err != nil {
		return nil, fmt.Errorf("failed to read PPM header: %w", ErrMalformed)
	}
	if magic != "P3" {
		return nil, fmt.Errorf("only P3 PPM format is supported, got %q: %w", magic, ErrUnsupportedFormat)
	}

	width, err := tr.nextInt("width")
	if err != nil {
		return nil, err
	}
	height, err := tr.nextInt("height")
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d: %w", width, height, ErrMalformed)
	}
	if width > maxPPMPixels/height {
		return nil, fmt.Errorf("image %dx%d too large: %w", width, height, ErrMalformed)
	}
	maxVal, err := tr.nextInt("maxval")
	if err != nil {
		return nil, err
	}
	if maxVal <= 0 || maxVal > maxPPMValue {
		return nil, fmt.Errorf("maxval %d out of range: %w", maxVal, ErrMalformed)
	}

	buf := NewBuffer(width, height)
	var rgb [3]int
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for i := range rgb {
				v, err := tr.nextInt("pixel")
				if err != nil {
					return nil, fmt.Errorf("pixel (%d,%d): %w", x, y, err)
				}
				rgb[i] = v
			}
			buf.Set(x, y, NewColor(rgb[0], rgb[1], rgb[2]))
		}
	}
	return buf, nil
}

// EncodePPM writes buf as a plain "P3" PPM with maxval 255.
//
// The header occupies three lines ("P3", "width height", "255"); each image
// row follows on its own line with values separated by single spaces.
func EncodePPM(w io.Writer, buf *Buffer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P3\n%d %d\n255\n", buf.Width(), buf.Height())

	line := make([]byte, 0, buf.Width()*12)
	for y := 0; y < buf.Height(); y++ {
		line = line[:0]
		for x := 0; x < buf.Width(); x++ {
			c := buf.Get(x, y)
			if x > 0 {
				line = append(line, ' ')
			}
			line = strconv.AppendUint(line, uint64(c.R), 10)
			line = append(line, ' ')
			line = strconv.AppendUint(line, uint64(c.G), 10)
			line = append(line, ' ')
			line = strconv.AppendUint(line, uint64(c.B), 10)
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("failed to write PPM row %d: %w", y, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write PPM: %w", err)
	}
	return nil
}

// tokenReader splits PPM text into whitespace-separated tokens, skipping
// '#' comments.
type tokenReader struct {
	r   *bufio.Reader
	tok []byte
}

func newTokenReader(r io.Reader) *tokenReader {
	return &tokenReader{r: bufio.NewReaderSize(r, 64*1024)}
}

func (t *tokenReader) next() (string, error) {
	t.tok = t.tok[:0]
	for {
		b, err := t.r.ReadByte()
		if err != nil {
			if err == io.EOF && len(t.tok) > 0 {
				return string(t.tok), nil
			}
			return "", err
		}
		switch {
		case b == '#':
			if len(t.tok) > 0 {
				// A comment terminates the current token.
				_ = t.r.UnreadByte()
				return string(t.tok), nil
			}
			if _, err := t.r.ReadBytes('\n'); err != nil && err != io.EOF {
				return "", err
			}
		case isSpace(b):
			if len(t.tok) > 0 {
				return string(t.tok), nil
			}
		default:
			t.tok = append(t.tok, b)
		}
	}
}

func (t *tokenReader) nextInt(field string) (int, error) {
	s, err := t.next()
	if err != nil {
		if err == io.EOF {
			return 0, fmt.Errorf("unexpected end of data reading %s: %w", field, ErrMalformed)
		}
		return 0, fmt.Errorf("failed to read %s: %w", field, err)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, ErrMalformed)
	}
	return v, nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}
