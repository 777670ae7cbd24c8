package render

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/dkoosis/verdict/pkg/report"
	"github.com/dkoosis/verdict/pkg/result"
)

// Plain renders ASCII tables with no escape sequences, for CI logs and pipes.
type Plain struct{}

// NewPlain creates a plain renderer.
func NewPlain() *Plain {
	return &Plain{}
}

// Render formats a per-feature table followed by a table of remaining
// failures and recovered scenarios.
func (p *Plain) Render(r *report.Report) string {
	var sb strings.Builder
	sb.WriteString(p.features(r))
	if s := p.scenarios(r); s != "" {
		sb.WriteString("\n")
		sb.WriteString(s)
	}
	if rm := r.RetryMetadata; rm.RetryEnabled {
		fmt.Fprintf(&sb, "\nretry: %d passed after retry, %d failed all retries\n",
			rm.PassedAfterRetryCount, rm.FailedAllRetriesCount)
	}
	if r.Failed() {
		fmt.Fprintf(&sb, "FAIL %d of %d scenarios failing\n", r.Summary.FailedScenarios, r.Summary.TotalScenarios)
	} else {
		fmt.Fprintf(&sb, "PASS %d scenarios\n", r.Summary.TotalScenarios)
	}
	return sb.String()
}

func (p *Plain) features(r *report.Report) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleDefault)
	t.AppendHeader(table.Row{
		"Feature", "Scenarios",
		statusLabel(result.StatusPassed), statusLabel(result.StatusFailed),
		statusLabel(result.StatusSkipped), statusLabel(result.StatusUndefined),
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Feature", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	for _, f := range r.Features {
		t.AppendRow(table.Row{
			f.FeatureName, f.TotalScenarios, f.PassedScenarios,
			f.FailedScenarios, f.SkippedScenarios, f.UndefinedScenarios,
		})
	}
	s := r.Summary
	t.AppendFooter(table.Row{
		fmt.Sprintf("Total (%.2f%%)", s.PassRate), s.TotalScenarios, s.PassedScenarios,
		s.FailedScenarios, s.SkippedScenarios, s.UndefinedScenarios,
	})
	return t.Render() + "\n"
}

func (p *Plain) scenarios(r *report.Report) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleDefault)
	t.AppendHeader(table.Row{"Status", "Scenario", "Identity", "Attempts", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Scenario", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})
	rows := 0
	for _, f := range r.Features {
		for _, sc := range f.Failures {
			t.AppendRow(table.Row{"FAILED", sc.ScenarioName, sc.Identity, attempts(sc), firstLine(errorText(sc))})
			rows++
		}
		for _, sc := range f.Recovered {
			t.AppendRow(table.Row{"RECOVERED", sc.ScenarioName, sc.Identity, attempts(sc), ""})
			rows++
		}
	}
	if rows == 0 {
		return ""
	}
	return t.Render() + "\n"
}

func attempts(sc report.Scenario) string {
	if sc.RetryInfo == nil || sc.RetryInfo.TotalAttempts == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", sc.RetryInfo.FailedAttempts, sc.RetryInfo.TotalAttempts)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
