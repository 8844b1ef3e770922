package frame

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/llehouerou/vidflut/internal/color"
)

// ErrMalformedPPM is returned when a file is not a valid binary (P6) PPM.
var ErrMalformedPPM = errors.New("malformed PPM")

// MaxPPMSide is the largest width or height ReadPPM accepts.
const MaxPPMSide = 1 << 16

// LoadPPM reads a binary PPM file from disk.
func LoadPPM(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	frame, err := ReadPPM(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frame, nil
}

// ReadPPM decodes a binary PPM (P6, maxval 255) image.
func ReadPPM(r *bufio.Reader) (*Frame, error) {
	magic, err := readToken(r)
	if err != nil {
		return nil, err
	}
	if magic != "P6" {
		return nil, fmt.Errorf("%w: magic %q", ErrMalformedPPM, magic)
	}

	var header [3]int
	for i, name := range []string{"width", "height", "maxval"} {
		tok, err := readToken(r)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: invalid %s %q", ErrMalformedPPM, name, tok)
		}
		header[i] = n
	}
	width, height, maxval := header[0], header[1], header[2]
	if maxval != 255 {
		return nil, fmt.Errorf("%w: unsupported maxval %d", ErrMalformedPPM, maxval)
	}
	if width == 0 || height == 0 || width > MaxPPMSide || height > MaxPPMSide {
		return nil, fmt.Errorf("%w: unsupported size %dx%d", ErrMalformedPPM, width, height)
	}

	raw := make([]byte, width*height*3)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: pixel data: %w", ErrMalformedPPM, err)
	}

	data := make([]color.Color, width*height)
	for i := range data {
		data[i] = color.Color{R: raw[i*3], G: raw[i*3+1], B: raw[i*3+2]}
	}
	return &Frame{width: width, height: height, data: data}, nil
}

// WritePPM encodes f as a binary PPM.
func WritePPM(w io.Writer, f *Frame) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P6\n%d %d\n255\n", f.width, f.height); err != nil {
		return err
	}
	for _, c := range f.data {
		if _, err := bw.Write([]byte{c.R, c.G, c.B}); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// readToken returns the next whitespace-delimited header token, skipping
// comments. It consumes exactly one whitespace byte after the token, which
// is where the raster starts after maxval.
func readToken(r *bufio.Reader) (string, error) {
	var tok []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if len(tok) > 0 && errors.Is(err, io.EOF) {
				return string(tok), nil
			}
			return "", fmt.Errorf("%w: header: %w", ErrMalformedPPM, err)
		}
		switch {
		case b == '#' && len(tok) == 0:
			if _, err := r.ReadString('\n'); err != nil {
				return "", fmt.Errorf("%w: header: %w", ErrMalformedPPM, err)
			}
		case isSpace(b):
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, b)
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}
