// Package pipeline compresses a whole frame sequence ahead of time.
//
// The sequence is cut into contiguous chunks, each compressed by its own
// fresh codec on a fixed pool of workers. The first frame of every chunk is
// therefore always a Full update; in exchange chunks are fully independent.
// Each worker writes only into the sub-slice of the result it was handed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/llehouerou/vidflut/internal/codec"
	"github.com/llehouerou/vidflut/internal/frame"
	"github.com/llehouerou/vidflut/internal/metrics"
)

// ErrInvalidConfig is returned by New for unusable settings.
var ErrInvalidConfig = errors.New("invalid pipeline config")

// Loader loads frame i of a sequence. It must be safe for concurrent use.
type Loader interface {
	Load(index int) (*frame.Frame, error)
}

// FrameError reports the frame whose load aborted the pipeline.
type FrameError struct {
	Index int
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("failed to load frame %d: %v", e.Index+1, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// Config configures a Pipeline.
type Config struct {
	// ChunkSize is the number of consecutive frames per independent chunk.
	ChunkSize int
	// Workers is the number of chunks compressed concurrently.
	Workers int
	// NewCodec builds the codec for each chunk.
	NewCodec codec.Factory
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Chunk is the half-open frame range [Start, End).
type Chunk struct {
	Start, End int
}

func (c Chunk) Len() int { return c.End - c.Start }

// Partition splits n frames into chunks of size (the last may be shorter).
func Partition(n, size int) []Chunk {
	if n <= 0 || size <= 0 {
		return nil
	}
	chunks := make([]Chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		chunks = append(chunks, Chunk{Start: start, End: min(start+size, n)})
	}
	return chunks
}

// Pipeline runs chunked compression and exposes its progress.
type Pipeline struct {
	cfg       Config
	total     atomic.Int64
	completed atomic.Int64
}

// New validates cfg.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.ChunkSize <= 0:
		return nil, fmt.Errorf("%w: chunk size must be greater than 0", ErrInvalidConfig)
	case cfg.Workers <= 0:
		return nil, fmt.Errorf("%w: worker count must be greater than 0", ErrInvalidConfig)
	case cfg.NewCodec == nil:
		return nil, fmt.Errorf("%w: no codec factory", ErrInvalidConfig)
	}
	return &Pipeline{cfg: cfg}, nil
}

// Completed returns how many frames have been compressed so far. It is safe
// to call from any goroutine while Run is in progress.
func (p *Pipeline) Completed() int64 { return p.completed.Load() }

// Total returns the number of frames of the current or last run.
func (p *Pipeline) Total() int64 { return p.total.Load() }

// work is a chunk together with the only part of the result it may write.
type work struct {
	chunk Chunk
	out   []frame.Update
}

// Run compresses frames [0, n) of src. On success it returns exactly n
// updates in frame order. If any frame fails to load, all workers stop at
// their next frame and Run returns that first error and no updates.
func (p *Pipeline) Run(ctx context.Context, src Loader, n int) ([]frame.Update, error) {
	p.total.Store(int64(n))
	p.completed.Store(0)

	chunks := Partition(n, p.cfg.ChunkSize)
	result := make([]frame.Update, n)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	logrus.WithFields(logrus.Fields{
		"function": "Pipeline.Run",
		"frames":   n,
		"chunks":   len(chunks),
		"workers":  p.cfg.Workers,
	}).Info("Compressing frames")
	started := time.Now()

	workCh := make(chan work, len(chunks))
	for _, c := range chunks {
		// Three-index slice: a worker cannot reach past its own range.
		workCh <- work{chunk: c, out: result[c.Start:c.End:c.End]}
	}
	close(workCh)

	var wg sync.WaitGroup
	for range min(p.cfg.Workers, max(len(chunks), 1)) {
		wg.Go(func() {
			for w := range workCh {
				if err := p.compressChunk(ctx, src, w); err != nil {
					cancel(err)
					return
				}
			}
		})
	}
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Pipeline.Run",
			"completed": p.completed.Load(),
			"error":     err,
		}).Error("Compression aborted")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Pipeline.Run",
		"frames":   n,
		"elapsed":  time.Since(started).Round(time.Millisecond),
	}).Info("Compression finished")

	return result, nil
}

func (p *Pipeline) compressChunk(ctx context.Context, src Loader, w work) error {
	c := p.cfg.NewCodec()

	for i := range w.chunk.Len() {
		if ctx.Err() != nil {
			return nil
		}

		index := w.chunk.Start + i
		f, err := src.Load(index)
		if err != nil {
			return &FrameError{Index: index, Err: err}
		}

		w.out[i] = c.Compress(f)
		p.completed.Add(1)
		p.cfg.Metrics.FrameCompressed(w.out[i])
	}

	logrus.WithFields(logrus.Fields{
		"function": "Pipeline.compressChunk",
		"start":    w.chunk.Start,
		"end":      w.chunk.End,
	}).Debug("Chunk compressed")
	return nil
}
