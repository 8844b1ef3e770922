package frame

import (
	"fmt"

	"github.com/llehouerou/vidflut/internal/color"
)

// Kind tags the variant held by an Update.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindDelta
	KindFull
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindDelta:
		return "delta"
	case KindFull:
		return "full"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Update describes a frame relative to its predecessor: nothing changed,
// a sparse set of changed pixels, or a complete raster.
// The zero value is Empty.
type Update struct {
	kind   Kind
	pixels []Pixel

	width  int
	height int
	data   []color.Color
}

// Empty returns the no-change update.
func Empty() Update {
	return Update{}
}

// Delta returns an update overwriting the given pixels. An empty list
// collapses to Empty so a Delta always carries at least one pixel.
func Delta(pixels []Pixel) Update {
	if len(pixels) == 0 {
		return Empty()
	}
	return Update{kind: KindDelta, pixels: pixels}
}

// Full returns an update replacing the whole raster. The data slice is owned
// by the update afterwards.
func Full(width, height int, data []color.Color) Update {
	return Update{kind: KindFull, width: width, height: height, data: data}
}

func (u Update) Kind() Kind    { return u.kind }
func (u Update) IsEmpty() bool { return u.kind == KindEmpty }
func (u Update) IsDelta() bool { return u.kind == KindDelta }
func (u Update) IsFull() bool  { return u.kind == KindFull }

// Width and Height are only meaningful for Full updates.
func (u Update) Width() int  { return u.width }
func (u Update) Height() int { return u.height }

// Data returns the raster of a Full update, nil otherwise.
func (u Update) Data() []color.Color { return u.data }

// Len returns how many pixel writes the update carries.
func (u Update) Len() int {
	switch u.kind {
	case KindDelta:
		return len(u.pixels)
	case KindFull:
		return len(u.data)
	default:
		return 0
	}
}

// Pixels flattens the update into the pixel writes needed to transmit it:
// none for Empty, the listed set for Delta, every pixel for Full.
func (u Update) Pixels() []Pixel {
	switch u.kind {
	case KindDelta:
		return u.pixels
	case KindFull:
		return pixelsOf(u.width, u.data)
	default:
		return nil
	}
}

func (u Update) String() string {
	switch u.kind {
	case KindDelta:
		return fmt.Sprintf("delta(%d px)", len(u.pixels))
	case KindFull:
		return fmt.Sprintf("full(%dx%d)", u.width, u.height)
	default:
		return "empty"
	}
}
