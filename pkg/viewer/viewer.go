// Package viewer is an interactive browser for a written report: features and
// their scenarios on the left, the selected scenario's steps, error and retry
// history on the right.
package viewer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dkoosis/verdict/pkg/render"
	"github.com/dkoosis/verdict/pkg/report"
)

// Kinds of listed scenarios.
const (
	kindFailure   = "failed"
	kindRecovered = "recovered"
	kindSkipped   = "skipped"
	kindUndefined = "undefined"
)

// item is one selectable scenario in the list.
type item struct {
	feature string
	kind    string
	sc      report.Scenario
}

// Run shows r until the user quits.
func Run(ctx context.Context, r *report.Report, theme render.Theme, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	program := tea.NewProgram(newModel(r, theme), opts...)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running viewer: %w", err)
	}
	return nil
}

type model struct {
	report      *report.Report
	items       []item
	st          styles
	selected    int
	viewport    viewport.Model
	ready       bool
	width       int
	height      int
	listWidth   int
	detailWidth int
}

func newModel(r *report.Report, theme render.Theme) model {
	vp := viewport.New(0, 0)
	m := model{report: r, items: listItems(r), st: newStyles(theme), viewport: vp}
	m.refreshViewport()
	return m
}

// listItems flattens the report in display order: per feature, failures
// first, then recovered, skipped and undefined scenarios.
func listItems(r *report.Report) []item {
	var items []item
	for _, f := range r.Features {
		add := func(kind string, list []report.Scenario) {
			for _, sc := range list {
				items = append(items, item{feature: f.FeatureName, kind: kind, sc: sc})
			}
		}
		add(kindFailure, f.Failures)
		add(kindRecovered, f.Recovered)
		add(kindSkipped, f.Skipped)
		add(kindUndefined, f.Undefined)
	}
	return items
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.refreshViewport()
			}
		case "down", "j":
			if m.selected < len(m.items)-1 {
				m.selected++
				m.refreshViewport()
			}
		case "pgdown", " ":
			m.viewport.HalfPageDown()
		case "pgup":
			m.viewport.HalfPageUp()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.listWidth = min(max(m.calculateListWidth(), 24), m.width/2)
		m.detailWidth = m.width - m.listWidth - 1
		m.viewport.Width = max(m.detailWidth-4, 10)
		m.viewport.Height = max(msg.Height-8, 3)
		m.ready = true
		m.refreshViewport()
	}
	return m, nil
}

func (m *model) calculateListWidth() int {
	widest := 0
	for _, it := range m.items {
		widest = max(widest, lipgloss.Width(it.feature)+2, lipgloss.Width(it.sc.ScenarioName)+6)
	}
	return widest + 4
}

func (m *model) refreshViewport() {
	if len(m.items) == 0 {
		m.viewport.SetContent(m.summary())
		return
	}
	m.viewport.SetContent(m.detail(m.items[m.selected]))
	m.viewport.GotoTop()
}

func (m model) summary() string {
	s := m.report.Summary
	return fmt.Sprintf("%d features, %d scenarios, all passed (%.2f%%)", s.TotalFeatures, s.TotalScenarios, s.PassRate)
}

func (m model) detail(it item) string {
	sc := it.sc
	var sb strings.Builder
	sb.WriteString(m.st.header.Render(sc.ScenarioName))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s %s\n", m.st.label.Render("identity"), sc.Identity)
	fmt.Fprintf(&sb, "%s %s (%s)\n", m.st.label.Render("status  "), sc.Status, it.kind)
	fmt.Fprintf(&sb, "%s %s\n", m.st.label.Render("duration"), formatDuration(time.Duration(sc.DurationMs)*time.Millisecond))
	if len(sc.Tags) > 0 {
		fmt.Fprintf(&sb, "%s %s\n", m.st.label.Render("tags    "), strings.Join(sc.Tags, " "))
	}

	if ri := sc.RetryInfo; ri != nil {
		sb.WriteString("\n")
		sb.WriteString(m.st.header.Render("Retries"))
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%d attempts, %d failed", ri.TotalAttempts, ri.FailedAttempts)
		if ri.PassedAfterRetry {
			fmt.Fprintf(&sb, ", passed on attempt %d", ri.PassedOnAttempt)
		}
		sb.WriteString("\n")
	}

	if len(sc.Steps) > 0 {
		sb.WriteString("\n")
		sb.WriteString(m.st.header.Render("Steps"))
		sb.WriteString("\n")
		for _, st := range sc.Steps {
			fmt.Fprintf(&sb, "%s %s\n", m.stepIcon(st.Status), strings.TrimSpace(st.Keyword+st.Text))
		}
	}

	if fs := sc.FailingStep; fs != nil {
		sb.WriteString("\n")
		sb.WriteString(m.st.header.Render("Failing step"))
		sb.WriteString("\n")
		sb.WriteString(m.st.theme.Error.Render(strings.TrimSpace(fs.Keyword + fs.Text)))
		if fs.Line > 0 {
			sb.WriteString(m.st.label.Render(fmt.Sprintf("  line %d", fs.Line)))
		}
		sb.WriteString("\n")
	}

	if e := sc.Error; e != nil || (sc.FailingStep != nil && sc.FailingStep.Error != nil) {
		if e == nil {
			e = sc.FailingStep.Error
		}
		sb.WriteString("\n")
		sb.WriteString(m.st.header.Render("Error"))
		sb.WriteString("\n")
		if e.Type != "" {
			sb.WriteString(m.st.label.Render(e.Type))
			sb.WriteString("\n")
		}
		sb.WriteString(e.Message)
		sb.WriteString("\n")
		if e.Stack != "" {
			sb.WriteString("\n")
			sb.WriteString(m.st.label.Render(e.Stack))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m model) stepIcon(status string) string {
	icons := m.st.theme.Icons
	switch status {
	case "passed":
		return m.st.theme.Success.Render(icons.Pass)
	case "failed", "ambiguous":
		return m.st.theme.Error.Render(icons.Fail)
	case "skipped", "unused":
		return m.st.theme.Muted.Render(icons.Skip)
	default:
		return m.st.theme.Warning.Render(icons.Undefined)
	}
}

func (m model) itemIcon(kind string) string {
	icons := m.st.theme.Icons
	switch kind {
	case kindFailure:
		return icons.Fail
	case kindRecovered:
		return icons.Retry
	case kindSkipped:
		return icons.Skip
	default:
		return icons.Undefined
	}
}

func (m model) View() string {
	if !m.ready {
		return "Loading report..."
	}
	contentHeight := max(m.height-6, 5)

	title := m.st.title.Render(fmt.Sprintf("verdict %s  %d/%d passed  %.2f%%",
		m.report.Metadata.RunID, m.report.Summary.PassedScenarios, m.report.Summary.TotalScenarios, m.report.Summary.PassRate))

	listPanel := m.st.listBox.Width(m.listWidth).Render(fit(m.renderList(), contentHeight))
	detailPanel := m.st.detailBox.Width(m.detailWidth).Render(fit(m.viewport.View(), contentHeight))
	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, detailPanel)

	help := m.st.statusBar.Render("↑/↓ navigate • pgup/pgdn scroll • q quit")
	return lipgloss.JoinVertical(lipgloss.Left, title, panels, help)
}

func (m model) renderList() string {
	if len(m.items) == 0 {
		return m.st.theme.Success.Render(m.st.theme.Icons.Pass + " nothing to review")
	}
	var lines []string
	feature := ""
	for i, it := range m.items {
		if it.feature != feature || i == 0 {
			feature = it.feature
			if i > 0 {
				lines = append(lines, "")
			}
			lines = append(lines, m.st.group.Render(feature))
		}
		text := fmt.Sprintf("%s %s", m.itemIcon(it.kind), it.sc.ScenarioName)
		if i == m.selected {
			lines = append(lines, m.st.selected.Render("> "+text))
		} else {
			lines = append(lines, m.st.unselected.Render("  "+text))
		}
	}
	return strings.Join(lines, "\n")
}

// fit pads or truncates s to exactly n lines.
func fit(s string, n int) string {
	lines := strings.Split(s, "\n")
	for len(lines) < n {
		lines = append(lines, "")
	}
	return strings.Join(lines[:n], "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Round(100*time.Millisecond).Seconds())
}
