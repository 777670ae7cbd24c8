package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
)

var htmlTemplate = template.Must(template.New("summary").Funcs(template.FuncMap{
	"rate": func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Test results{{with .Metadata.Build.Number}} - build {{.}}{{end}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; background: #f5f5f5; color: #333; margin: 0; }
.container { max-width: 1200px; margin: 0 auto; padding: 20px; }
header { background: #4b3f8f; color: #fff; padding: 24px; border-radius: 8px; }
.cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 16px; margin: 24px 0; }
.card { background: #fff; border-radius: 8px; padding: 16px; }
.card .value { font-size: 28px; font-weight: 600; }
.passed { color: #1a7f37; } .failed { color: #cf222e; } .skipped { color: #9a6700; }
.failure { background: #fff; border-left: 4px solid #cf222e; border-radius: 4px; padding: 12px 16px; margin: 12px 0; }
.recovered { border-left-color: #1a7f37; }
pre { white-space: pre-wrap; background: #f6f8fa; padding: 8px; border-radius: 4px; }
.meta { font-size: 13px; opacity: 0.85; }
</style>
</head>
<body>
<div class="container">
<header>
<h1>Test results</h1>
<div class="meta">
{{with .Metadata.Environment}}Environment: {{.}} &middot; {{end}}
{{with .Metadata.Build.Branch}}Branch: {{.}} &middot; {{end}}
{{with .Metadata.Build.Commit}}Commit: {{.}} &middot; {{end}}
Duration: {{.Metadata.DurationMs}} ms
</div>
</header>

<div class="cards">
<div class="card"><div>Scenarios</div><div class="value">{{.Summary.TotalScenarios}}</div></div>
<div class="card"><div>Passed</div><div class="value passed">{{.Summary.PassedScenarios}}</div></div>
<div class="card"><div>Failed</div><div class="value failed">{{.Summary.FailedScenarios}}</div></div>
<div class="card"><div>Skipped</div><div class="value skipped">{{.Summary.SkippedScenarios}}</div></div>
<div class="card"><div>Pass rate</div><div class="value">{{rate .Summary.PassRate}}</div></div>
{{if .RetryMetadata.RetryEnabled}}<div class="card"><div>Passed after retry</div><div class="value passed">{{.RetryMetadata.PassedAfterRetryCount}}</div></div>{{end}}
</div>

{{if .Categories}}
<h2>Failure categories</h2>
<ul>{{range .Categories}}<li>{{.Name}}: {{.Count}}</li>{{end}}</ul>
{{end}}

{{range .Features}}{{if or .Failures .Recovered}}
<h2>{{.FeatureName}} <span class="meta">{{.Source}}</span></h2>
{{range .Failures}}
<div class="failure">
<strong>{{.ScenarioName}}</strong> <span class="meta">{{.Identity}}</span>
{{with .FailingStep}}<div>Failing step: {{.Keyword}}{{.Text}}</div>{{end}}
{{with .Error}}<pre>{{.Message}}</pre>{{end}}
{{with .RetryInfo}}<div class="meta">Failed {{.FailedAttempts}} of {{.TotalAttempts}} attempts</div>{{end}}
</div>
{{end}}
{{range .Recovered}}
<div class="failure recovered">
<strong>{{.ScenarioName}}</strong> <span class="meta">{{.Identity}}</span>
{{with .RetryInfo}}<div class="meta">Passed on attempt {{.PassedOnAttempt}} of {{.TotalAttempts}}</div>{{end}}
</div>
{{end}}
{{end}}{{end}}
</div>
</body>
</html>
`))

type categoryCount struct {
	Name  string
	Count int
}

// RenderHTML produces a standalone HTML summary of r.
func RenderHTML(r *Report) ([]byte, error) {
	cats := make([]categoryCount, 0, len(r.FailureCategories))
	for name, n := range r.FailureCategories {
		cats = append(cats, categoryCount{Name: name, Count: n})
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Count != cats[j].Count {
			return cats[i].Count > cats[j].Count
		}
		return cats[i].Name < cats[j].Name
	})

	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, struct {
		*Report
		Categories []categoryCount
	}{r, cats})
	if err != nil {
		return nil, fmt.Errorf("rendering html summary: %w", err)
	}
	return buf.Bytes(), nil
}
