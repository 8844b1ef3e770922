package codec

import (
	"cmp"
	"slices"

	"github.com/llehouerou/vidflut/internal/color"
	"github.com/llehouerou/vidflut/internal/frame"
)

// NoiseFloor is the squared CIELAB distance at or below which a change is
// treated as dithering and never spends budget.
const NoiseFloor = 2

// Budget ranks changed pixels by perceptual distance and resends only the
// most visible ones, up to a fixed number of pixels per frame.
type Budget struct {
	stream
	perFrame int
}

// NewBudget returns a budget-ranked codec emitting at most perFrame pixels
// per frame. Zero means unlimited.
func NewBudget(perFrame int) *Budget {
	return &Budget{perFrame: perFrame}
}

func (b *Budget) Compress(next *frame.Frame) frame.Update {
	return b.compress(next, b.diff)
}

type candidate struct {
	dist  int
	index int
}

func (b *Budget) diff(prev, next *frame.Frame) frame.Update {
	prevData := prev.Data()
	nextData := next.Data()

	var candidates []candidate
	for i, oldC := range prevData {
		if d := Distance(oldC, nextData[i]); d > NoiseFloor {
			candidates = append(candidates, candidate{dist: d, index: i})
		}
	}

	if len(candidates) == 0 {
		return frame.Empty()
	}

	// Largest distance first; equal distances keep scan order.
	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(b.dist, a.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})

	if b.perFrame > 0 && len(candidates) > b.perFrame {
		candidates = candidates[:b.perFrame]
	}

	width := prev.Width()
	pixels := make([]frame.Pixel, len(candidates))
	for i, c := range candidates {
		pixels[i] = frame.Pixel{X: c.index % width, Y: c.index / width, Color: nextData[c.index]}
	}
	return frame.Delta(pixels)
}

// Distance returns the squared perceptual distance the budget codec ranks by.
func Distance(a, b color.Color) int {
	if a == b {
		return 0
	}
	return a.Lab().DistanceSq(b.Lab())
}

var _ Codec = (*Budget)(nil)
