package render

import (
	"fmt"
	"io"
	"strings"
)

const barWidth = 30

// Progress draws a single-line upload bar. On non-terminal destinations it
// stays silent so piped output is not littered with carriage returns.
type Progress struct {
	w       io.Writer
	enabled bool
	last    int
}

// NewProgress creates a Progress writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w, enabled: isTerminal(w), last: -1}
}

// Update redraws the bar for a 0..1 fraction. Repeated calls at the same
// whole percent are dropped to keep the redraw rate sane.
func (p *Progress) Update(fraction float64) {
	if !p.enabled {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	percent := int(fraction * 100)
	if percent == p.last {
		return
	}
	p.last = percent

	filled := barWidth * percent / 100
	fmt.Fprintf(p.w, "\r[%s%s] %3d%%",
		strings.Repeat("=", filled),
		strings.Repeat(" ", barWidth-filled),
		percent)
}

// Done terminates the bar line once the transfer ends.
func (p *Progress) Done() {
	if !p.enabled || p.last < 0 {
		return
	}
	fmt.Fprintln(p.w)
}
