// Package progress prints a one-line progress bar with an ETA for long jobs.
package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const (
	defaultBarWidth = 30
	defaultInterval = 200 * time.Millisecond
)

// Counter is a job whose progress can be polled from another goroutine.
type Counter interface {
	Completed() int64
	Total() int64
}

var (
	markerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Reporter renders the progress of one job.
type Reporter struct {
	out      io.Writer
	label    string
	bar      progress.Model
	interval time.Duration
	now      func() time.Time
}

// New returns a reporter writing to out.
func New(out io.Writer, label string) *Reporter {
	return &Reporter{
		out:   out,
		label: label,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(defaultBarWidth),
			progress.WithoutPercentage(),
		),
		interval: defaultInterval,
		now:      time.Now,
	}
}

// Line renders: ":: Compressing frames  ━━━━━────  420/1,000 (42%)  ETA 12s"
func (r *Reporter) Line(done, total int64, elapsed time.Duration) string {
	var ratio float64
	if total > 0 {
		ratio = min(float64(done)/float64(total), 1)
	}

	var b strings.Builder
	b.WriteString(markerStyle.Render("::"))
	b.WriteString(" ")
	b.WriteString(labelStyle.Render(r.label))
	b.WriteString("  ")
	b.WriteString(r.bar.ViewAs(ratio))
	b.WriteString("  ")
	b.WriteString(fmt.Sprintf("%s/%s (%d%%)",
		humanize.Comma(done), humanize.Comma(total), int(ratio*100)))
	if eta, ok := ETA(done, total, elapsed); ok {
		b.WriteString("  ")
		b.WriteString(mutedStyle.Render("ETA " + FormatDuration(eta)))
	}
	return b.String()
}

// ETA extrapolates the remaining time from the average rate so far.
func ETA(done, total int64, elapsed time.Duration) (time.Duration, bool) {
	if done <= 0 || total <= 0 || done >= total {
		return 0, false
	}
	perItem := float64(elapsed) / float64(done)
	return time.Duration(perItem * float64(total-done)), true
}

// FormatDuration renders d as "1h02m", "3m05s" or "12s".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Track redraws the line until ctx is done or the returned stop function is
// called. stop prints the final state and waits for the redraw loop to exit.
func (r *Reporter) Track(ctx context.Context, c Counter) (stop func()) {
	started := r.now()
	ctx, cancel := context.WithCancel(ctx)

	draw := func() {
		line := r.Line(c.Completed(), c.Total(), r.now().Sub(started))
		fmt.Fprint(r.out, "\r\x1b[2K"+line)
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				draw()
			case <-ctx.Done():
				return
			}
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
			draw()
			fmt.Fprintln(r.out)
		})
	}
}
