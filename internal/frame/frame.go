// Package frame provides the raster model of a decoded video frame and the
// updates that describe how one frame differs from its predecessor.
package frame

import (
	"errors"
	"fmt"

	"github.com/llehouerou/vidflut/internal/color"
)

var (
	// ErrDimensionMismatch is returned when pixel data does not match the
	// declared width and height.
	ErrDimensionMismatch = errors.New("pixel data does not match dimensions")

	// ErrOutOfBounds is returned when an update addresses a pixel outside
	// the frame.
	ErrOutOfBounds = errors.New("pixel out of bounds")
)

// Pixel is a single position with its color.
type Pixel struct {
	X, Y  int
	Color color.Color
}

// Frame is an immutable width×height grid of colors stored row-major.
type Frame struct {
	width  int
	height int
	data   []color.Color
}

// New wraps data as a frame. The slice is owned by the frame afterwards.
func New(width, height int, data []color.Color) (*Frame, error) {
	if width < 0 || height < 0 || len(data) != width*height {
		return nil, fmt.Errorf("%w: %dx%d with %d pixels", ErrDimensionMismatch, width, height, len(data))
	}
	return &Frame{width: width, height: height, data: data}, nil
}

// Filled returns a frame where every pixel has color c.
func Filled(width, height int, c color.Color) *Frame {
	data := make([]color.Color, width*height)
	for i := range data {
		data[i] = c
	}
	return &Frame{width: width, height: height, data: data}
}

// Debug returns a neutral gray canvas of the given size.
func Debug(width, height int) *Frame {
	return Filled(width, height, color.Gray)
}

func (f *Frame) Width() int  { return f.width }
func (f *Frame) Height() int { return f.height }

// Len returns the number of pixels.
func (f *Frame) Len() int { return len(f.data) }

// Data returns the row-major color data. Callers must not modify it.
func (f *Frame) Data() []color.Color { return f.data }

// At returns the color at (x, y).
func (f *Frame) At(x, y int) color.Color {
	return f.data[y*f.width+x]
}

// SameSize reports whether both frames have identical dimensions.
func (f *Frame) SameSize(o *Frame) bool {
	return f.width == o.width && f.height == o.height
}

// Equal reports whether both frames have the same dimensions and colors.
func (f *Frame) Equal(o *Frame) bool {
	if !f.SameSize(o) {
		return false
	}
	for i := range f.data {
		if f.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// Snapshot returns a Full update holding a copy of the whole frame.
func (f *Frame) Snapshot() Update {
	data := make([]color.Color, len(f.data))
	copy(data, f.data)
	return Full(f.width, f.height, data)
}

// Pixels returns every pixel of the frame in scan order.
func (f *Frame) Pixels() []Pixel {
	return pixelsOf(f.width, f.data)
}

// Apply returns a new frame with u applied. Empty yields a copy, Full
// replaces everything, Delta overwrites only the listed positions.
// A Delta addressing a pixel outside the frame is rejected.
func (f *Frame) Apply(u Update) (*Frame, error) {
	switch u.kind {
	case KindFull:
		if len(u.data) != u.width*u.height {
			return nil, fmt.Errorf("%w: %dx%d with %d pixels", ErrDimensionMismatch, u.width, u.height, len(u.data))
		}
		data := make([]color.Color, len(u.data))
		copy(data, u.data)
		return &Frame{width: u.width, height: u.height, data: data}, nil

	case KindDelta:
		data := make([]color.Color, len(f.data))
		copy(data, f.data)
		for _, p := range u.pixels {
			if p.X < 0 || p.Y < 0 || p.X >= f.width || p.Y >= f.height {
				return nil, fmt.Errorf("%w: (%d, %d) in %dx%d", ErrOutOfBounds, p.X, p.Y, f.width, f.height)
			}
			data[p.Y*f.width+p.X] = p.Color
		}
		return &Frame{width: f.width, height: f.height, data: data}, nil

	default:
		data := make([]color.Color, len(f.data))
		copy(data, f.data)
		return &Frame{width: f.width, height: f.height, data: data}, nil
	}
}

// MustApply is like Apply but panics on an invalid update. It is meant for
// updates the caller produced itself against this frame.
func (f *Frame) MustApply(u Update) *Frame {
	next, err := f.Apply(u)
	if err != nil {
		panic(fmt.Sprintf("frame: apply %s: %v", u, err))
	}
	return next
}

func pixelsOf(width int, data []color.Color) []Pixel {
	if width == 0 {
		return nil
	}
	pixels := make([]Pixel, len(data))
	for i, c := range data {
		pixels[i] = Pixel{X: i % width, Y: i / width, Color: c}
	}
	return pixels
}
