// Package progress renders a single-line terminal progress bar.
package progress

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

const cells = 25

// Bar draws "  12.5% ├███──...─┤        12 / 96       word" on one line,
// redrawing it in place with '\r'. It is safe for concurrent use.
type Bar struct {
	w      io.Writer
	detail func(int64) string

	mu       sync.Mutex
	total    int64
	progress int64
	extra    string
	shown    bool
}

// New creates a Bar writing to w. detail formats the progress and total
// counts; nil prints them as plain integers.
func New(w io.Writer, total int64, detail func(int64) string) *Bar {
	if detail == nil {
		detail = func(n int64) string { return strconv.FormatInt(n, 10) }
	}
	return &Bar{w: w, total: total, detail: detail}
}

// Update redraws the bar.
func (b *Bar) Update() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draw()
}

// Increment advances the bar by n and redraws it.
func (b *Bar) Increment(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress += n
	b.draw()
}

// Set moves the bar to progress out of total and redraws it.
func (b *Bar) Set(progress, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress, b.total = progress, total
	b.draw()
}

// Advance increments the bar by one and sets the trailing text in one redraw.
func (b *Bar) Advance(extra string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress++
	b.extra = extra
	b.draw()
}

// Done ends the line if the bar was drawn.
func (b *Bar) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shown {
		fmt.Fprintln(b.w)
		b.shown = false
	}
}

func (b *Bar) draw() {
	b.shown = true
	var pct float64
	if b.total > 0 {
		pct = math.Round(float64(b.progress)*1000/float64(b.total)) / 10
	}
	pct = min(pct, 100)
	filled := int(pct) / 4
	bar := strings.Repeat("█", filled) + strings.Repeat("─", cells-filled)
	fmt.Fprintf(b.w, "\r%5.1f%% ├%s┤ %9s / %-9s%23s", pct, bar, b.detail(b.progress), b.detail(b.total), b.extra)
}

// Bytes formats a byte count for a download bar, for example "1.5 KiB".
// Unknown sizes (negative) print as "?".
func Bytes(n int64) string {
	if n < 0 {
		return "?"
	}
	return humanize.IBytes(uint64(n))
}
