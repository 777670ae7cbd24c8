package viewer

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dkoosis/verdict/pkg/render"
)

// styles holds the compiled lipgloss styles for the viewer panes.
type styles struct {
	theme      render.Theme
	title      lipgloss.Style
	group      lipgloss.Style
	selected   lipgloss.Style
	unselected lipgloss.Style
	listBox    lipgloss.Style
	detailBox  lipgloss.Style
	header     lipgloss.Style
	label      lipgloss.Style
	statusBar  lipgloss.Style
}

func newStyles(theme render.Theme) styles {
	border := lipgloss.RoundedBorder()
	return styles{
		theme:      theme,
		title:      theme.Bold.Padding(0, 1),
		group:      theme.Primary.Bold(true),
		selected:   lipgloss.NewStyle().Reverse(true),
		unselected: lipgloss.NewStyle(),
		listBox:    lipgloss.NewStyle().Border(border).Padding(0, 1),
		detailBox:  lipgloss.NewStyle().Border(border).Padding(0, 1),
		header:     theme.Bold.Underline(true),
		label:      theme.Muted,
		statusBar:  theme.Muted.Padding(0, 1),
	}
}
