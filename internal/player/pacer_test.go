package player

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock advances only when told to, or by sleeping. Every non-zero
// sleep overshoots by oversleep, like a real timer would.
type fakeClock struct {
	now       time.Time
	oversleep time.Duration
	sleeps    int
	onSleep   func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps++
	if c.onSleep != nil {
		c.onSleep(c.sleeps)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		c.now = c.now.Add(d + c.oversleep)
	}
	return nil
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestPacer_Interval(t *testing.T) {
	tests := []struct {
		fps  float64
		want time.Duration
	}{
		{10, 100 * time.Millisecond},
		{25, 40 * time.Millisecond},
		{0.5, 2 * time.Second},
		{0, 0},
	}
	for _, tt := range tests {
		if got := NewPacer(tt.fps).Interval(); got != tt.want {
			t.Errorf("NewPacer(%g).Interval() = %v, want %v", tt.fps, got, tt.want)
		}
	}
}

func TestPacer_OnTime(t *testing.T) {
	clock := newFakeClock()
	p := NewPacerWithClock(10, clock)
	begin := clock.Now()

	for range 20 {
		p.Start()
		clock.Advance(30 * time.Millisecond)
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
		if p.Lag() != 0 {
			t.Fatalf("Lag() = %v, want 0", p.Lag())
		}
	}

	if got := clock.Now().Sub(begin); got != 2*time.Second {
		t.Errorf("20 frames took %v, want 2s", got)
	}
}

func TestPacer_LagStaysBounded(t *testing.T) {
	clock := newFakeClock()
	clock.oversleep = 2 * time.Millisecond
	p := NewPacerWithClock(10, clock)
	begin := clock.Now()

	const frames = 10000
	for i := range frames {
		p.Start()
		clock.Advance(time.Duration(10+i%60) * time.Millisecond)
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
		if p.Lag() > clock.oversleep {
			t.Fatalf("frame %d: Lag() = %v, want <= %v", i, p.Lag(), clock.oversleep)
		}
	}

	want := frames*100*time.Millisecond + clock.oversleep
	if got := clock.Now().Sub(begin); got != want {
		t.Errorf("%d frames took %v, want %v", frames, got, want)
	}
}

func TestPacer_SlowFrameIsRecovered(t *testing.T) {
	clock := newFakeClock()
	p := NewPacerWithClock(10, clock)
	begin := clock.Now()

	work := []time.Duration{150, 30, 30, 30}
	wantLag := []time.Duration{50, 0, 0, 0}
	for i, w := range work {
		p.Start()
		clock.Advance(w * time.Millisecond)
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
		if got := p.Lag(); got != wantLag[i]*time.Millisecond {
			t.Errorf("frame %d: Lag() = %v, want %v", i, got, wantLag[i]*time.Millisecond)
		}
	}

	if got := clock.Now().Sub(begin); got != 400*time.Millisecond {
		t.Errorf("4 frames took %v, want 400ms", got)
	}
}

func TestPacer_PersistentlySlowFallsBehind(t *testing.T) {
	clock := newFakeClock()
	p := NewPacerWithClock(10, clock)

	var prev time.Duration
	for i := range 10 {
		p.Start()
		clock.Advance(150 * time.Millisecond)
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
		if p.Lag() <= prev {
			t.Fatalf("frame %d: Lag() = %v, want more than %v", i, p.Lag(), prev)
		}
		prev = p.Lag()
	}
}

func TestPacer_WaitCancelled(t *testing.T) {
	p := NewPacerWithClock(10, newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p.Start()
	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestPacer_WaitWithoutStartPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Wait() without Start() did not panic")
		}
	}()
	_ = NewPacerWithClock(10, newFakeClock()).Wait(context.Background())
}

func TestRealClock_Sleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (realClock{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
	if err := (realClock{}).Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep() error = %v", err)
	}
}
