package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dkoosis/verdict/pkg/report"
	"github.com/dkoosis/verdict/pkg/result"
)

// Terminal renders a report as styled terminal output via lipgloss.
type Terminal struct {
	theme Theme
	width int
}

// NewTerminal creates a terminal renderer with the given theme.
func NewTerminal(theme Theme, width int) *Terminal {
	if width <= 0 {
		width = 80
	}
	return &Terminal{theme: theme, width: width}
}

// Render formats the report for terminal display: the summary block, then
// each feature with remaining failures, recovered scenarios and a final
// PASS/FAIL line.
func (t *Terminal) Render(r *report.Report) string {
	sections := []string{t.renderSummary(r)}
	if s := t.renderCategories(r.FailureCategories); s != "" {
		sections = append(sections, s)
	}
	for _, f := range r.Features {
		if s := t.renderFeature(f); s != "" {
			sections = append(sections, s)
		}
	}
	sections = append(sections, t.renderVerdict(r))
	return strings.Join(sections, "\n")
}

func (t *Terminal) renderSummary(r *report.Report) string {
	var sb strings.Builder
	header := "verdict"
	if r.Metadata.RunID != "" {
		header += " " + r.Metadata.RunID
	}
	if r.Metadata.Environment != "" {
		header += " (" + r.Metadata.Environment + ")"
	}
	sb.WriteString(t.theme.Bold.Render(header))
	sb.WriteString("\n")

	s := r.Summary
	fmt.Fprintf(&sb, "  %s features  %s scenarios  %s  %s  %s  %s  %s\n",
		t.theme.Primary.Render(fmt.Sprint(s.TotalFeatures)),
		t.theme.Primary.Render(fmt.Sprint(s.TotalScenarios)),
		t.theme.Success.Render(fmt.Sprintf("%d %s", s.PassedScenarios, statusLabel(result.StatusPassed))),
		t.countStyle(s.FailedScenarios, t.theme.Error).Render(fmt.Sprintf("%d %s", s.FailedScenarios, statusLabel(result.StatusFailed))),
		t.countStyle(s.SkippedScenarios, t.theme.Warning).Render(fmt.Sprintf("%d %s", s.SkippedScenarios, statusLabel(result.StatusSkipped))),
		t.countStyle(s.UndefinedScenarios, t.theme.Warning).Render(fmt.Sprintf("%d %s", s.UndefinedScenarios, statusLabel(result.StatusUndefined))),
		t.theme.Bold.Render(fmt.Sprintf("%.2f%%", s.PassRate)),
	)

	if rm := r.RetryMetadata; rm.RetryEnabled {
		fmt.Fprintf(&sb, "  %s %d passed after retry, %d failed all retries",
			t.theme.Icons.Retry, rm.PassedAfterRetryCount, rm.FailedAllRetriesCount)
		if !rm.FilterRetryFailures {
			sb.WriteString(t.theme.Muted.Render(" (not reconciled)"))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (t *Terminal) countStyle(n int, style lipgloss.Style) lipgloss.Style {
	if n == 0 {
		return t.theme.Muted
	}
	return style
}

func (t *Terminal) renderCategories(cats map[string]int) string {
	if len(cats) == 0 {
		return ""
	}
	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if cats[names[i]] != cats[names[j]] {
			return cats[names[i]] > cats[names[j]]
		}
		return names[i] < names[j]
	})
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %d", name, cats[name]))
	}
	return "  " + t.theme.Muted.Render("failure categories: "+strings.Join(parts, ", ")) + "\n"
}

func (t *Terminal) renderFeature(f report.Feature) string {
	if len(f.Failures) == 0 && len(f.Recovered) == 0 {
		return ""
	}
	var sb strings.Builder
	icon, style := t.theme.Icons.Pass, t.theme.Success
	if len(f.Failures) > 0 {
		icon, style = t.theme.Icons.Fail, t.theme.Error
	}
	sb.WriteString(style.Render(icon+" "+f.FeatureName) + t.theme.Muted.Render(" "+f.Source))
	sb.WriteString("\n")

	nameWidth := t.width - 16
	for _, sc := range f.Failures {
		sb.WriteString("    ")
		sb.WriteString(t.theme.Error.Render(t.theme.Icons.Fail + " " + truncate(sc.ScenarioName, nameWidth)))
		sb.WriteString(t.theme.Muted.Render(fmt.Sprintf("  :%d", sc.Line)))
		if sc.RetryInfo != nil && sc.RetryInfo.TotalAttempts > 1 {
			sb.WriteString(t.theme.Muted.Render(fmt.Sprintf("  %d/%d attempts failed",
				sc.RetryInfo.FailedAttempts, sc.RetryInfo.TotalAttempts)))
		}
		sb.WriteString("\n")
		if st := sc.FailingStep; st != nil {
			sb.WriteString("        ")
			sb.WriteString(t.theme.Warning.Render(strings.TrimSpace(st.Keyword + st.Text)))
			sb.WriteString("\n")
		}
		if msg := errorText(sc); msg != "" {
			for _, line := range strings.Split(msg, "\n") {
				sb.WriteString("        ")
				sb.WriteString(t.theme.Muted.Render(truncate(line, t.width-8)))
				sb.WriteString("\n")
			}
		}
	}
	for _, sc := range f.Recovered {
		sb.WriteString("    ")
		sb.WriteString(t.theme.Success.Render(t.theme.Icons.Retry + " " + truncate(sc.ScenarioName, nameWidth)))
		if sc.RetryInfo != nil && sc.RetryInfo.PassedOnAttempt > 0 {
			sb.WriteString(t.theme.Muted.Render(fmt.Sprintf("  passed on attempt %d", sc.RetryInfo.PassedOnAttempt)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (t *Terminal) renderVerdict(r *report.Report) string {
	if r.Failed() {
		return t.theme.Error.Render(fmt.Sprintf("%s FAIL %d of %d scenarios failing",
			t.theme.Icons.Fail, r.Summary.FailedScenarios, r.Summary.TotalScenarios)) + "\n"
	}
	return t.theme.Success.Render(fmt.Sprintf("%s PASS %d scenarios",
		t.theme.Icons.Pass, r.Summary.TotalScenarios)) + "\n"
}

// errorText returns the scenario error message, or the failing step's when
// the scenario carries none.
func errorText(sc report.Scenario) string {
	if sc.Error != nil && sc.Error.Message != "" {
		return sc.Error.Message
	}
	if sc.FailingStep != nil && sc.FailingStep.Error != nil {
		return sc.FailingStep.Error.Message
	}
	return ""
}

// statusLabel returns the title-cased display form of a status. A Caser is
// not safe for concurrent use, so each call builds its own.
func statusLabel(s result.Status) string {
	return cases.Title(language.English).String(string(s))
}

func truncate(s string, width int) string {
	if width <= 3 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
