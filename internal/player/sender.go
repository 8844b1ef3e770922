package player

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/llehouerou/vidflut/internal/frame"
	"github.com/llehouerou/vidflut/internal/protocol"
)

// DefaultBatchSize is the number of pixels encoded and written per batch.
const DefaultBatchSize = 400

var (
	// ErrConnectionClosed is returned when the canvas server hung up.
	ErrConnectionClosed = errors.New("connection closed by server")

	ErrInvalidSender = errors.New("invalid sender config")
)

// SenderConfig configures a Sender.
type SenderConfig struct {
	Encoder protocol.Encoder
	// BatchSize is the number of pixels per write (default: 400).
	BatchSize int
	// Workers is the number of batches encoded concurrently.
	Workers int
}

// Sender writes frame updates to a single shared connection.
//
// A frame's pixels are split into batches that are encoded in parallel.
// Each batch is one write followed by a flush under the connection lock, so
// commands from different batches never interleave, but batches may reach
// the server in any order.
type Sender struct {
	cfg SenderConfig

	mu sync.Mutex
	w  *bufio.Writer

	written atomic.Int64
}

// NewSender returns a sender writing to w.
func NewSender(w io.Writer, cfg SenderConfig) (*Sender, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("%w: batch size must be greater than 0", ErrInvalidSender)
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("%w: send threads must be greater than 0", ErrInvalidSender)
	}
	return &Sender{
		cfg: cfg,
		w:   bufio.NewWriterSize(w, 64*1024),
	}, nil
}

// Written returns the total number of bytes written so far.
func (s *Sender) Written() int64 { return s.written.Load() }

// Send transmits every pixel of u and returns the number of bytes written.
// An Empty update writes nothing. The first write error aborts the
// remaining batches of the frame.
func (s *Sender) Send(ctx context.Context, u frame.Update) (int, error) {
	pixels := u.Pixels()
	if len(pixels) == 0 {
		return 0, nil
	}

	batches := make(chan []frame.Pixel, (len(pixels)+s.cfg.BatchSize-1)/s.cfg.BatchSize)
	for start := 0; start < len(pixels); start += s.cfg.BatchSize {
		batches <- pixels[start:min(start+s.cfg.BatchSize, len(pixels))]
	}
	close(batches)

	var (
		wg       sync.WaitGroup
		sent     atomic.Int64
		failed   atomic.Bool
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			failed.Store(true)
		})
	}

	for range min(s.cfg.Workers, len(batches)) {
		wg.Go(func() {
			var buf []byte
			for batch := range batches {
				if failed.Load() {
					continue
				}
				if err := ctx.Err(); err != nil {
					fail(err)
					continue
				}
				buf = s.cfg.Encoder.AppendPixels(buf[:0], batch)
				if err := s.write(buf); err != nil {
					fail(err)
					continue
				}
				sent.Add(int64(len(buf)))
			}
		})
	}
	wg.Wait()

	return int(sent.Load()), firstErr
}

func (s *Sender) write(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(buf); err != nil {
		return sendError(err)
	}
	if err := s.w.Flush(); err != nil {
		return sendError(err)
	}
	s.written.Add(int64(len(buf)))
	return nil
}

func sendError(err error) error {
	if isConnectionClosed(err) {
		return fmt.Errorf("unable to send frame: %w: %w", ErrConnectionClosed, err)
	}
	return fmt.Errorf("unable to send frame: %w", err)
}

func isConnectionClosed(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
