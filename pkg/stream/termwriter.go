package stream

import (
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
)

// termWriter is the single point of terminal output while progress is shown.
// Nothing else writes to the terminal until the footer has been erased.
type termWriter struct {
	out         io.Writer
	width       int
	height      int
	footerLines int
}

func newTermWriter(out io.Writer, width, height int) *termWriter {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	return &termWriter{out: out, width: width, height: height}
}

// PrintLine writes a line to the scrolling history region.
func (w *termWriter) PrintLine(s string) {
	fmt.Fprintln(w.out, s)
}

// EraseFooter removes the current footer from the terminal.
func (w *termWriter) EraseFooter() {
	if w.footerLines == 0 {
		return
	}
	for i := 0; i < w.footerLines; i++ {
		fmt.Fprint(w.out, "\r\033[2K")
		if i < w.footerLines-1 {
			fmt.Fprint(w.out, "\033[1A")
		}
	}
	fmt.Fprint(w.out, "\r")
	w.footerLines = 0
}

// DrawFooter prints footer lines truncated to the terminal width. At most
// max(3, height/3) lines are shown; the last visible line then reports how
// many were hidden.
func (w *termWriter) DrawFooter(lines []string) {
	limit := w.maxFooterLines(len(lines))
	shown := lines
	if len(lines) > limit && limit > 0 {
		shown = lines[:limit-1]
	}

	for _, line := range shown {
		fmt.Fprintln(w.out, truncateToWidth(line, w.width))
	}
	w.footerLines = len(shown)
	if hidden := len(lines) - len(shown); hidden > 0 {
		fmt.Fprintln(w.out, truncateToWidth(fmt.Sprintf("  ... and %d more", hidden), w.width))
		w.footerLines++
	}
}

func (w *termWriter) maxFooterLines(count int) int {
	limit := max(w.height/3, 3)
	return min(count, limit)
}

// truncateToWidth cuts s to at most width terminal cells. Wide runes count
// as two cells.
func truncateToWidth(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}
