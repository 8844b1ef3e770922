// Package protocol encodes pixel writes for Pixelflut-style canvas servers.
//
// Three wire formats are supported:
//
//	plaintext    "PX <x> <y> <rrggbb>\n"
//	binflutties  0xB0|canvas, x u16 BE, y u16 BE, r, g, b   (8 bytes)
//	binflurry    0x80, canvas, x u16 LE, y u16 LE, r, g, b   (9 bytes)
//
// Coordinates are offset before encoding and never checked against the
// canvas size; out-of-range writes are the server's concern.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/llehouerou/vidflut/internal/color"
	"github.com/llehouerou/vidflut/internal/frame"
)

// Protocol is a wire format.
type Protocol uint8

const (
	Plaintext Protocol = iota
	BinFlutties
	BinFlurry
)

// ErrUnknownProtocol is returned by Parse.
var ErrUnknownProtocol = errors.New("unknown protocol")

// Parse accepts the kebab-case protocol names.
func Parse(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plaintext", "":
		return Plaintext, nil
	case "bin-flutties", "binflutties":
		return BinFlutties, nil
	case "bin-flurry", "binflurry":
		return BinFlurry, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProtocol, s)
	}
}

func (p Protocol) String() string {
	switch p {
	case Plaintext:
		return "plaintext"
	case BinFlutties:
		return "bin-flutties"
	case BinFlurry:
		return "bin-flurry"
	default:
		return fmt.Sprintf("protocol(%d)", uint8(p))
	}
}

// BytesPerPixel returns the fixed size of one encoded write, or 0 for the
// variable-length plaintext format.
func (p Protocol) BytesPerPixel() int {
	switch p {
	case BinFlutties:
		return 8
	case BinFlurry:
		return 9
	default:
		return 0
	}
}

// Append encodes one pixel write at the already-offset position (x, y).
func (p Protocol) Append(buf []byte, canvas uint8, x, y int, c color.Color) []byte {
	switch p {
	case BinFlutties:
		buf = append(buf, 0xB0|(canvas&0x0F))
		buf = binary.BigEndian.AppendUint16(buf, uint16(x)) //nolint:gosec // truncation is the wire format
		buf = binary.BigEndian.AppendUint16(buf, uint16(y)) //nolint:gosec // truncation is the wire format
		return append(buf, c.R, c.G, c.B)

	case BinFlurry:
		buf = append(buf, 0x80, canvas)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(x)) //nolint:gosec // truncation is the wire format
		buf = binary.LittleEndian.AppendUint16(buf, uint16(y)) //nolint:gosec // truncation is the wire format
		return append(buf, c.R, c.G, c.B)

	default:
		buf = append(buf, "PX "...)
		buf = strconv.AppendInt(buf, int64(x), 10)
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, int64(y), 10)
		buf = append(buf, ' ')
		buf = color.AppendHex(buf, c)
		return append(buf, '\n')
	}
}

// Encoder turns pixels into wire bytes for one stream.
type Encoder struct {
	Protocol Protocol
	Canvas   uint8
	OffsetX  int
	OffsetY  int
}

// Encode returns the bytes for a single pixel.
func (e Encoder) Encode(px frame.Pixel) []byte {
	return e.Append(nil, px)
}

// Append encodes a single pixel onto buf.
func (e Encoder) Append(buf []byte, px frame.Pixel) []byte {
	return e.Protocol.Append(buf, e.Canvas, px.X+e.OffsetX, px.Y+e.OffsetY, px.Color)
}

// AppendPixels encodes a batch of pixels onto buf.
func (e Encoder) AppendPixels(buf []byte, pixels []frame.Pixel) []byte {
	if n := e.sizeHint(len(pixels)); cap(buf)-len(buf) < n {
		grown := make([]byte, len(buf), len(buf)+n)
		copy(grown, buf)
		buf = grown
	}
	for _, px := range pixels {
		buf = e.Append(buf, px)
	}
	return buf
}

func (e Encoder) sizeHint(n int) int {
	if per := e.Protocol.BytesPerPixel(); per > 0 {
		return n * per
	}
	// "PX xxxx yyyy rrggbb\n"
	return n * 20
}
