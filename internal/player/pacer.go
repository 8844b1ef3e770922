package player

import (
	"context"
	"time"
)

// Clock is the time source of a Pacer.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pacer holds a stream to a target frame rate.
//
// Each frame is bracketed by Start and Wait. Start arms a deadline one frame
// interval away, shortened by the lag accumulated so far; Wait blocks until
// that deadline and adds any overrun to the lag. A slow frame therefore
// borrows from the sleep of the following frames. Frames are never dropped,
// so a stream that is persistently slower than its rate falls behind.
type Pacer struct {
	clock    Clock
	interval time.Duration

	start   time.Time
	planned time.Duration
	lag     time.Duration
	armed   bool
}

// NewPacer returns a pacer for fps frames per second.
func NewPacer(fps float64) *Pacer {
	return NewPacerWithClock(fps, realClock{})
}

// NewPacerWithClock is NewPacer with an explicit time source.
func NewPacerWithClock(fps float64, clock Clock) *Pacer {
	var interval time.Duration
	if fps > 0 {
		interval = time.Duration(float64(time.Second) / fps)
	}
	return &Pacer{clock: clock, interval: interval}
}

// Interval returns the target frame interval.
func (p *Pacer) Interval() time.Duration { return p.interval }

// Lag returns the accumulated scheduling debt.
func (p *Pacer) Lag() time.Duration { return p.lag }

// Start begins a frame.
func (p *Pacer) Start() {
	p.start = p.clock.Now()
	p.planned = max(p.interval-p.lag, 0)
	// The lag paid back by this frame's shorter sleep is settled now.
	p.lag = max(p.lag-p.interval, 0)
	p.armed = true
}

// Wait blocks until the frame's deadline, then records any overrun.
func (p *Pacer) Wait(ctx context.Context) error {
	if !p.armed {
		panic("player: Pacer.Wait called before Start")
	}
	p.armed = false

	remaining := p.planned - p.clock.Now().Sub(p.start)
	if err := p.clock.Sleep(ctx, remaining); err != nil {
		return err
	}

	elapsed := p.clock.Now().Sub(p.start)
	p.lag += max(elapsed-p.planned, 0)
	return nil
}
