// Package color holds the RGB pixel color and the perceptual spaces the
// codecs measure distances in.
package color

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

// Gray is the neutral background used by the debug canvas.
var Gray = Color{R: 128, G: 128, B: 128}

// New returns the color (r, g, b).
func New(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// YUV converts the color to Y'UV (BT.601 weights), with U and V biased by 128
// so every channel fits in a byte.
func (c Color) YUV() (y, u, v uint8) {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)

	l := r*0.299 + g*0.587 + b*0.114
	cu := r*-0.14713 - g*0.28886 + b*0.436 + 128
	cv := r*0.615 - g*0.51499 - b*0.10001 + 128

	return clampByte(l), clampByte(cu), clampByte(cv)
}

// Lab is a CIELAB coordinate scaled to integers: L in 0..100, a and b roughly
// in -128..127.
type Lab struct {
	L, A, B int
}

// Lab converts the color to CIELAB (D65 white point).
func (c Color) Lab() Lab {
	cf := colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
	l, a, b := cf.Lab()
	return Lab{
		L: int(math.Round(l * 100)),
		A: int(math.Round(a * 100)),
		B: int(math.Round(b * 100)),
	}
}

// DistanceSq returns the squared euclidean distance between two Lab points.
func (l Lab) DistanceSq(o Lab) int {
	dl := l.L - o.L
	da := l.A - o.A
	db := l.B - o.B
	return dl*dl + da*da + db*db
}

// Hex returns the lowercase RRGGBB representation.
func (c Color) Hex() string {
	return string(AppendHex(make([]byte, 0, 6), c))
}

const hexDigits = "0123456789abcdef"

// AppendHex appends the lowercase RRGGBB representation of c to buf.
func AppendHex(buf []byte, c Color) []byte {
	return append(buf,
		hexDigits[c.R>>4], hexDigits[c.R&0x0f],
		hexDigits[c.G>>4], hexDigits[c.G&0x0f],
		hexDigits[c.B>>4], hexDigits[c.B&0x0f],
	)
}

func clampByte(f float64) uint8 {
	f = math.Round(f)
	switch {
	case f <= 0:
		return 0
	case f >= 255:
		return 255
	default:
		return uint8(f)
	}
}
