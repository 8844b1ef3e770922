// Package player streams frame updates to a Pixelflut canvas at the
// stream's frame rate.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/llehouerou/vidflut/internal/codec"
	"github.com/llehouerou/vidflut/internal/frame"
	"github.com/llehouerou/vidflut/internal/metrics"
	"github.com/llehouerou/vidflut/internal/pipeline"
)

// ErrInvalidFPS is returned by New for a non-positive frame rate.
var ErrInvalidFPS = errors.New("fps must be greater than 0")

// Config configures a Player.
type Config struct {
	FPS float64
	// Loop restarts from the first frame after the last one.
	Loop bool
	// Clock defaults to the wall clock.
	Clock   Clock
	Metrics *metrics.Metrics
}

// Player paces frames and hands them to a Sender.
type Player struct {
	cfg    Config
	sender *Sender
	pacer  *Pacer

	played atomic.Int64
}

// New returns a player sending through sender.
func New(sender *Sender, cfg Config) (*Player, error) {
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("%w, got %g", ErrInvalidFPS, cfg.FPS)
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	return &Player{
		cfg:    cfg,
		sender: sender,
		pacer:  NewPacerWithClock(cfg.FPS, cfg.Clock),
	}, nil
}

// Played returns the number of frames sent so far.
func (p *Player) Played() int64 { return p.played.Load() }

// Lag returns the pacer's accumulated lag.
func (p *Player) Lag() time.Duration { return p.pacer.Lag() }

// PlayUpdates streams precomputed updates in order.
func (p *Player) PlayUpdates(ctx context.Context, updates []frame.Update) error {
	if len(updates) == 0 {
		return nil
	}

	p.logStart("ahead-of-time", len(updates))

	for {
		for _, u := range updates {
			p.pacer.Start()
			if err := p.send(ctx, u); err != nil {
				return err
			}
			if err := p.wait(ctx); err != nil {
				return err
			}
		}
		if !p.cfg.Loop {
			return nil
		}
	}
}

// PlayLive loads, compresses and sends frames [0, n) of src one at a time.
// The codec keeps its state across loops.
func (p *Player) PlayLive(ctx context.Context, src pipeline.Loader, n int, c codec.Codec) error {
	if n <= 0 {
		return nil
	}

	p.logStart("just-in-time", n)

	for {
		for i := range n {
			p.pacer.Start()

			f, err := src.Load(i)
			if err != nil {
				return &pipeline.FrameError{Index: i, Err: err}
			}
			u := c.Compress(f)
			p.cfg.Metrics.FrameCompressed(u)

			if err := p.send(ctx, u); err != nil {
				return err
			}
			if err := p.wait(ctx); err != nil {
				return err
			}
		}
		if !p.cfg.Loop {
			return nil
		}
	}
}

func (p *Player) send(ctx context.Context, u frame.Update) error {
	started := p.cfg.Clock.Now()
	n, err := p.sender.Send(ctx, u)
	if err != nil {
		return err
	}
	p.played.Add(1)
	p.cfg.Metrics.FrameSent(u.Len(), n, p.cfg.Clock.Now().Sub(started))
	return nil
}

func (p *Player) wait(ctx context.Context) error {
	if err := p.pacer.Wait(ctx); err != nil {
		return err
	}
	p.cfg.Metrics.SetLag(p.pacer.Lag())
	return nil
}

func (p *Player) logStart(mode string, frames int) {
	logrus.WithFields(logrus.Fields{
		"function": "Player.play",
		"mode":     mode,
		"frames":   frames,
		"fps":      p.cfg.FPS,
		"loop":     p.cfg.Loop,
	}).Info("Playing")
}
