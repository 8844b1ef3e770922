// Package ffmpeg probes videos and rasterizes them to numbered PPM files
// using the ffmpeg command-line tools.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/llehouerou/vidflut/internal/source"
)

// ErrInvalidFrameRate is returned when ffprobe reports an unusable rate.
var ErrInvalidFrameRate = errors.New("invalid frame rate")

// Tools locates the ffmpeg binaries.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

// Default uses ffmpeg and ffprobe from PATH.
func Default() Tools {
	return Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
}

// ParseFrameRate parses ffprobe's "num/den" rate, or a plain number.
func ParseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	num, den, isFraction := strings.Cut(s, "/")

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
	}
	d := 1.0
	if isFraction {
		d, err = strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
		}
	}
	if d == 0 || n <= 0 || d < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
	}
	return n / d, nil
}

// ProbeArgs returns the ffprobe arguments printing the first video stream's
// frame rate.
func ProbeArgs(input string) []string {
	return []string{
		"-v", "0",
		"-of", "csv=p=0",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		input,
	}
}

// ProbeFrameRate returns the native frame rate of input.
func (t Tools) ProbeFrameRate(ctx context.Context, input string) (float64, error) {
	out, err := t.run(ctx, t.FFprobe, ProbeArgs(input))
	if err != nil {
		return 0, err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if line == "" {
		return 0, fmt.Errorf("ffprobe: no output for %s", input)
	}
	return ParseFrameRate(line)
}

// ExtractArgs returns the ffmpeg arguments writing input to dir as
// frame1.ppm, frame2.ppm, ... at fps, scaled to width x height. A zero
// dimension keeps the aspect ratio.
func ExtractArgs(input, dir string, fps float64, width, height int) []string {
	return []string{
		"-v", "error",
		"-y",
		"-i", input,
		"-vf", fmt.Sprintf("fps=%s,scale=%d:%d",
			strconv.FormatFloat(fps, 'f', -1, 64), scaleDim(width), scaleDim(height)),
		source.FramePattern(dir),
	}
}

func scaleDim(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

// Extract rasterizes input into dir and returns the resulting metadata.
func (t Tools) Extract(
	ctx context.Context,
	input, dir string,
	fps float64,
	width, height int,
) (source.Metadata, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return source.Metadata{}, fmt.Errorf("create frames dir: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Tools.Extract",
		"input":    input,
		"fps":      fps,
		"width":    width,
		"height":   height,
	}).Info("Extracting frames")
	started := time.Now()

	if _, err := t.run(ctx, t.FFmpeg, ExtractArgs(input, dir, fps, width, height)); err != nil {
		return source.Metadata{}, err
	}

	count, err := source.CountFrames(dir)
	if err != nil {
		return source.Metadata{}, err
	}
	if count == 0 {
		return source.Metadata{}, fmt.Errorf("ffmpeg: no frames extracted from %s", input)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Tools.Extract",
		"frames":   count,
		"elapsed":  time.Since(started).Round(time.Millisecond),
	}).Info("Frames extracted")

	return source.Metadata{FPS: fps, FrameCount: count}, nil
}

func (t Tools) run(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logrus.WithFields(logrus.Fields{
		"function": "Tools.run",
		"command":  name,
		"args":     strings.Join(args, " "),
	}).Debug("Running")

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
