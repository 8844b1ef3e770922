// Package codec implements the temporal delta compression that decides, for
// each frame, which pixels must be retransmitted.
//
// Every codec diffs against its own reconstruction, i.e. the result of
// applying all updates it has emitted so far, never against the true
// previous source frame. This keeps the sender's view aligned with what the
// receiver holds and prevents error from accumulating.
package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/llehouerou/vidflut/internal/frame"
)

// Codec compresses a stream of frames into updates. Implementations are
// stateful and must be used by a single goroutine, in frame order.
type Codec interface {
	Compress(next *frame.Frame) frame.Update
}

// Factory builds a fresh, independent codec.
type Factory func() Codec

// Algorithm selects a compression strategy.
type Algorithm string

const (
	AlgorithmThreshold Algorithm = "threshold"
	AlgorithmBudget    Algorithm = "budget"
)

// ErrUnknownAlgorithm is returned by ParseAlgorithm.
var ErrUnknownAlgorithm = errors.New("unknown compression algorithm")

// ParseAlgorithm accepts "threshold" and "budget", plus the historical
// aliases "v1" and "v2".
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "threshold", "v1", "":
		return AlgorithmThreshold, nil
	case "budget", "v2":
		return AlgorithmBudget, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// Options configures NewFactory.
type Options struct {
	Algorithm Algorithm
	Level     Level
	// FPS is the stream frame rate, used to turn a per-second budget into a
	// per-frame one.
	FPS   float64
	Debug bool
}

// NewFactory validates opts and returns a factory of codecs built from them.
func NewFactory(opts Options) (Factory, error) {
	var build Factory

	switch opts.Algorithm {
	case AlgorithmThreshold:
		if opts.Level.IsNumeric() {
			return nil, fmt.Errorf("%w: the threshold algorithm needs a preset, got %s", ErrInvalidLevel, opts.Level)
		}
		preset := opts.Level.Preset()
		build = func() Codec { return NewThreshold(preset) }

	case AlgorithmBudget:
		k, err := opts.Level.PixelsPerFrame(opts.FPS)
		if err != nil {
			return nil, err
		}
		build = func() Codec { return NewBudget(k) }

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, opts.Algorithm)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "NewFactory",
		"algorithm": opts.Algorithm,
		"level":     opts.Level.String(),
		"fps":       opts.FPS,
		"debug":     opts.Debug,
	}).Debug("Codec factory configured")

	if opts.Debug {
		inner := build
		return func() Codec { return WithDebug(inner()) }, nil
	}
	return build, nil
}

// differ computes the update taking prev to (an approximation of) next.
// Both frames have the same dimensions.
type differ func(prev, next *frame.Frame) frame.Update

// stream holds the reconstruction shared by all strategies.
type stream struct {
	last *frame.Frame
}

func (s *stream) compress(next *frame.Frame, diff differ) frame.Update {
	// A fresh stream, or a change of resolution, starts with a keyframe.
	if s.last == nil || !s.last.SameSize(next) {
		s.last = next
		return next.Snapshot()
	}

	u := diff(s.last, next)
	s.last = s.last.MustApply(u)
	return u
}

// Reconstruction returns what the receiver is assumed to hold, or nil
// before the first frame.
func (s *stream) Reconstruction() *frame.Frame {
	return s.last
}

type debugCodec struct {
	inner Codec
}

// WithDebug wraps c so that every Delta is sent as a full neutral-gray
// canvas with only the selected pixels drawn on top. The wrapped codec still
// sees and tracks the real updates.
func WithDebug(c Codec) Codec {
	return &debugCodec{inner: c}
}

func (d *debugCodec) Compress(next *frame.Frame) frame.Update {
	u := d.inner.Compress(next)
	if u.IsFull() {
		return u
	}
	return frame.Debug(next.Width(), next.Height()).MustApply(u).Snapshot()
}
