// Package progress renders a single-line transfer progress bar on stderr.
// Rendering is suppressed when stderr is not attached to a terminal so that
// redirected output stays clean.
package progress

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	"github.com/thiswillbeyourgithub/iroh-send/internal/utils"
)

const (
	barWidth      = 28
	redrawEvery   = 150 * time.Millisecond
	maxLabelWidth = 24
)

type Bar struct {
	label   string
	total   int64
	done    atomic.Int64
	started time.Time
	last    time.Time
	tty     bool
}

// New creates a bar for total uncompressed bytes. Totals of zero are clamped
// so empty entries still render a complete bar.
func New(label string, total int64) *Bar {
	if len(label) > maxLabelWidth {
		label = "…" + label[len(label)-maxLabelWidth+1:]
	}
	if total < 1 {
		total = 1
	}
	return &Bar{
		label:   label,
		total:   total,
		started: time.Now(),
		tty:     term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Add advances the bar by n uncompressed bytes.
func (b *Bar) Add(n int64) {
	b.done.Add(n)
	if !b.tty {
		return
	}
	if time.Since(b.last) >= redrawEvery || b.done.Load() >= b.total {
		b.last = time.Now()
		b.draw()
	}
}

// Finish completes the bar and moves to the next line.
func (b *Bar) Finish() {
	b.done.Store(b.total)
	if !b.tty {
		return
	}
	b.draw()
	fmt.Fprintln(os.Stderr)
}

func (b *Bar) draw() {
	done := b.done.Load()
	pct := float64(done) / float64(b.total)
	filled := int(pct * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)

	elapsed := time.Since(b.started).Seconds()
	var rate, eta float64
	if elapsed > 0 {
		rate = float64(done) / elapsed
	}
	if rate > 0 {
		eta = float64(b.total-done) / rate
	}

	fmt.Fprintf(os.Stderr, "\r  %-*s [%s] %5.1f%%  %s/s  ETA %s",
		maxLabelWidth, b.label, bar, pct*100, utils.FormatBytes(rate), fmtETA(eta))
}

func fmtETA(s float64) string {
	if s < 60 {
		return fmt.Sprintf("%.0fs", s)
	}
	return fmt.Sprintf("%.0fm%02ds", s/60, int(s)%60)
}
