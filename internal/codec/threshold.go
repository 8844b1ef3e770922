package codec

import (
	"github.com/llehouerou/vidflut/internal/frame"
)

// Threshold resends a pixel when its luma or chroma moved more than the
// preset tolerates. Chroma tolerance tightens as the previous pixel gets
// brighter, since chroma error is better masked in dark regions.
type Threshold struct {
	stream
	preset Preset
}

// NewThreshold returns a threshold-gated codec.
func NewThreshold(p Preset) *Threshold {
	return &Threshold{preset: p}
}

func (t *Threshold) Compress(next *frame.Frame) frame.Update {
	return t.compress(next, t.diff)
}

func (t *Threshold) diff(prev, next *frame.Frame) frame.Update {
	width := prev.Width()
	lumaMax := lumaThreshold(t.preset)

	var pixels []frame.Pixel
	for i, oldC := range prev.Data() {
		newC := next.Data()[i]
		if oldC == newC {
			continue
		}

		oy, ou, ov := oldC.YUV()
		ny, nu, nv := newC.YUV()

		lumaDiff := absDiff(oy, ny)
		chromaDiff := absDiff(ou, nu) + absDiff(ov, nv)

		if lumaDiff > lumaMax || chromaDiff > chromaThreshold(t.preset, oy) {
			pixels = append(pixels, frame.Pixel{X: i % width, Y: i / width, Color: newC})
		}
	}

	return frame.Delta(pixels)
}

// lumaThreshold is the largest luma change that is still skipped.
func lumaThreshold(p Preset) uint16 {
	switch p {
	case PresetLow:
		return 3
	case PresetMedium:
		return 7
	case PresetHigh:
		return 15
	case PresetExtreme:
		return 32
	default:
		return 0
	}
}

// chromaThreshold is the largest |ΔU|+|ΔV| that is still skipped for a
// pixel whose previous luma was y. It never increases with y.
func chromaThreshold(p Preset, y uint8) uint16 {
	l := float64(y) / 255.0

	var t float64
	switch p {
	case PresetLow:
		t = (1 - l) * 8
	case PresetMedium:
		t = (1 - l*l*0.85) * 16
	case PresetHigh:
		t = (1 - l*l*0.75) * 32
	case PresetExtreme:
		t = 64
	default:
		t = 0
	}
	return uint16(t)
}

func absDiff(a, b uint8) uint16 {
	if a > b {
		return uint16(a - b)
	}
	return uint16(b - a)
}

var _ Codec = (*Threshold)(nil)
