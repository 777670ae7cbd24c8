// Package render formats a finished report for the console.
package render

import (
	"errors"
	"fmt"

	"github.com/dkoosis/verdict/pkg/report"
)

// Renderer converts a report to formatted output.
type Renderer interface {
	Render(r *report.Report) string
}

// Console formats.
const (
	FormatTerminal = "terminal"
	FormatPlain    = "plain"
	FormatJSON     = "json"
)

// New returns the renderer for format. Unknown formats fall back to plain
// output.
func New(format string, theme Theme, width int) Renderer {
	switch format {
	case FormatTerminal:
		return NewTerminal(theme, width)
	case FormatJSON:
		return NewJSON()
	default:
		return NewPlain()
	}
}

// WriteFailure formats a report-write error as the single console line shown
// in place of the usual summary trailer.
func WriteFailure(err error) string {
	var we *report.WriteError
	if errors.As(err, &we) {
		return fmt.Sprintf("REPORT WRITE FAILED: %s %s: %v", we.Artifact, we.Path, we.Err)
	}
	return fmt.Sprintf("REPORT WRITE FAILED: %v", err)
}
