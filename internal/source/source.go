// Package source provides lazily-loaded frame sequences.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/llehouerou/vidflut/internal/frame"
)

// ErrFrameIndex is returned when a frame outside the sequence is requested.
var ErrFrameIndex = errors.New("frame index out of range")

// Metadata describes a decoded video.
type Metadata struct {
	FPS        float64
	FrameCount int
}

// Source is an ordered sequence of frames that can be loaded on demand.
// Indices run from 0 to FrameCount-1. Load must be safe for concurrent use.
type Source interface {
	Metadata() Metadata
	Load(index int) (*frame.Frame, error)
}

// Dir reads frames extracted to frame1.ppm … frameN.ppm.
type Dir struct {
	dir  string
	meta Metadata
}

// NewDir returns a source over the PPM files in dir.
func NewDir(dir string, meta Metadata) *Dir {
	return &Dir{dir: dir, meta: meta}
}

func (d *Dir) Metadata() Metadata { return d.meta }

// Path returns the file holding frame index.
func (d *Dir) Path(index int) string {
	return FramePath(d.dir, index)
}

func (d *Dir) Load(index int) (*frame.Frame, error) {
	if index < 0 || index >= d.meta.FrameCount {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameIndex, index, d.meta.FrameCount)
	}
	return frame.LoadPPM(d.Path(index))
}

// FramePath returns the path of the PPM for frame index (0-based) in dir.
// Files are numbered from 1, as written by ffmpeg's %d pattern.
func FramePath(dir string, index int) string {
	return filepath.Join(dir, "frame"+strconv.Itoa(index+1)+".ppm")
}

// FramePattern is the ffmpeg output pattern matching FramePath.
func FramePattern(dir string) string {
	return filepath.Join(dir, "frame%d.ppm")
}

var frameFileRe = regexp.MustCompile(`^frame([0-9]+)\.ppm$`)

// CountFrames returns the length of the contiguous run frame1.ppm,
// frame2.ppm, … in dir.
func CountFrames(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	present := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := frameFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		present[n] = true
	}

	count := 0
	for present[count+1] {
		count++
	}
	return count, nil
}

// Memory is an in-memory source.
type Memory struct {
	fps    float64
	frames []*frame.Frame
}

// NewMemory returns a source over the given frames.
func NewMemory(fps float64, frames ...*frame.Frame) *Memory {
	return &Memory{fps: fps, frames: frames}
}

func (m *Memory) Metadata() Metadata {
	return Metadata{FPS: m.fps, FrameCount: len(m.frames)}
}

func (m *Memory) Load(index int) (*frame.Frame, error) {
	if index < 0 || index >= len(m.frames) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameIndex, index, len(m.frames))
	}
	return m.frames[index], nil
}

var (
	_ Source = (*Dir)(nil)
	_ Source = (*Memory)(nil)
	_ Source = (*Images)(nil)
)
