package source

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder for image sequences
	_ "image/jpeg" // JPEG decoder for image sequences
	_ "image/png"  // PNG decoder for image sequences
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nfnt/resize"

	"github.com/llehouerou/vidflut/internal/color"
	"github.com/llehouerou/vidflut/internal/frame"
)

// ErrNoImages is returned when an image sequence directory has no frames.
var ErrNoImages = errors.New("no images found")

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// Images plays a directory of still images as a video, one image per frame
// in lexical file name order. Images are scaled to the configured size.
type Images struct {
	paths  []string
	fps    float64
	width  int
	height int
}

// NewImages scans dir for PNG, JPEG and GIF files. A zero width or height
// keeps the aspect ratio; both zero keeps the original size.
func NewImages(dir string, fps float64, width, height int) (*Images, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}
	slices.Sort(paths)

	return &Images{paths: paths, fps: fps, width: width, height: height}, nil
}

func (s *Images) Metadata() Metadata {
	return Metadata{FPS: s.fps, FrameCount: len(s.paths)}
}

func (s *Images) Load(index int) (*frame.Frame, error) {
	if index < 0 || index >= len(s.paths) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameIndex, index, len(s.paths))
	}

	f, err := os.Open(s.paths[index])
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.paths[index], err)
	}

	if s.width > 0 || s.height > 0 {
		img = resize.Resize(uint(s.width), uint(s.height), img, resize.Lanczos3) //nolint:gosec // non-negative, validated by config
	}
	return FromImage(img), nil
}

// FromImage converts any image to a frame, dropping alpha.
func FromImage(img image.Image) *frame.Frame {
	b := img.Bounds()
	data := make([]color.Color, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			data = append(data, color.New(uint8(r>>8), uint8(g>>8), uint8(bl>>8))) //nolint:gosec // 16-bit to 8-bit channel
		}
	}
	f, _ := frame.New(b.Dx(), b.Dy(), data)
	return f
}
