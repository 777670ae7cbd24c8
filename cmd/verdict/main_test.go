package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/verdict/internal/config"
	"github.com/dkoosis/verdict/pkg/ledger"
	"github.com/dkoosis/verdict/pkg/report"
)

const primaryRun = `{"kind":"run-started","timestamp":"2024-01-01T00:00:00Z"}
{"kind":"scenario-started","identity":"features/cart.feature:3","handle":"tc-1","name":"Add item","featureSource":"features/cart.feature","line":3,"timestamp":"2024-01-01T00:00:01Z"}
{"kind":"step-started","ownerHint":"tc-1","keyword":"Given ","text":"an empty cart","line":4,"timestamp":"2024-01-01T00:00:01Z"}
{"kind":"step-finished","ownerHint":"tc-1","status":"passed","durationMs":5}
{"kind":"scenario-finished","identity":"features/cart.feature:3","status":"passed","durationMs":10}
{"kind":"scenario-started","identity":"features/cart.feature:9","handle":"tc-2","name":"Remove item","featureSource":"features/cart.feature","line":9,"timestamp":"2024-01-01T00:00:02Z"}
{"kind":"step-started","ownerHint":"tc-2","keyword":"Then ","text":"the cart is empty","line":11}
{"kind":"step-finished","ownerHint":"tc-2","status":"failed","durationMs":7,"error":{"message":"expected 0 items, got 1","type":"AssertionError"}}
{"kind":"scenario-finished","identity":"features/cart.feature:9","status":"failed","durationMs":12}
{"kind":"run-finished","timestamp":"2024-01-01T00:00:03Z","totalDurationMs":3000}
`

const retryRound = `{"kind":"run-started","timestamp":"2024-01-01T00:01:00Z"}
{"kind":"scenario-started","identity":"features/cart.feature:9","name":"Remove item","featureSource":"features/cart.feature","line":9}
{"kind":"scenario-finished","identity":"features/cart.feature:9","status":"passed","durationMs":11}
{"kind":"run-finished","timestamp":"2024-01-01T00:01:01Z"}
`

// isolate keeps tests away from real config files and CI variables.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", filepath.Join(dir, "home"))
	t.Setenv("NO_COLOR", "")
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func runCLI(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func readReport(t *testing.T, path string) *report.Report {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	r, err := report.Decode(data)
	require.NoError(t, err)
	return r
}

func TestVersion(t *testing.T) {
	isolate(t)
	code, out, _ := runCLI(t, "", "version")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "verdict "), out)
}

func TestReport_FailureWithoutRetries(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "out")

	code, stdout, stderr := runCLI(t, primaryRun, "report", "--out", out, "--format", "plain")
	require.Equal(t, exitFailures, code, stderr)
	assert.Contains(t, stdout, "FAIL 1 of 2 scenarios failing")

	r := readReport(t, filepath.Join(out, config.ReportFile))
	assert.Equal(t, 1, r.Summary.FailedScenarios)
	assert.Equal(t, 50.0, r.Summary.PassRate)
	assert.False(t, r.RetryMetadata.RetryEnabled)
	require.Len(t, r.Features, 1)
	require.Len(t, r.Features[0].Failures, 1)
	fail := r.Features[0].Failures[0]
	require.NotNil(t, fail.FailingStep)
	assert.Equal(t, "the cart is empty", fail.FailingStep.Text)
	assert.Equal(t, "expected 0 items, got 1", fail.Error.Message)
	assert.Equal(t, 1, r.FailureCategories[report.CategoryAssertion])

	manifest, err := os.ReadFile(filepath.Join(out, config.ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, "features/cart.feature:9\n", string(manifest))
	assert.FileExists(t, filepath.Join(out, config.HTMLFile))
	assert.NoFileExists(t, filepath.Join(out, config.SummaryFile))
}

func TestReport_RetryRoundReconciles(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "out")
	primary := writeFile(t, dir, "primary.ndjson", primaryRun)
	retry := writeFile(t, dir, "retry.ndjson", retryRound)

	code, stdout, stderr := runCLI(t, "", "report", "--out", out, "--format", "plain", primary, retry)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "PASS 2 scenarios")
	assert.Contains(t, stdout, "RECOVERED")

	r := readReport(t, filepath.Join(out, config.ReportFile))
	assert.Equal(t, 0, r.Summary.FailedScenarios)
	assert.Equal(t, 2, r.Summary.PassedScenarios)
	assert.True(t, r.RetryMetadata.RetryEnabled)
	assert.True(t, r.RetryMetadata.FilterRetryFailures)
	assert.Equal(t, 1, r.RetryMetadata.PassedAfterRetryCount)
	require.Len(t, r.Features[0].Recovered, 1)
	info := r.Features[0].Recovered[0].RetryInfo
	require.NotNil(t, info)
	assert.Equal(t, 2, info.PassedOnAttempt)

	s, err := ledger.ReadSummary(filepath.Join(out, config.SummaryFile))
	require.NoError(t, err)
	assert.Equal(t, 1, s.ScenariosPassedAfterRetry)
	assert.Equal(t, 1, s.ScenariosPassedFirstAttempt)

	manifest, err := os.ReadFile(filepath.Join(out, config.ManifestFile))
	require.NoError(t, err)
	assert.Empty(t, manifest)
}

func TestReport_NoReconcileKeepsFailures(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "out")
	primary := writeFile(t, dir, "primary.ndjson", primaryRun)
	retry := writeFile(t, dir, "retry.ndjson", retryRound)

	code, _, stderr := runCLI(t, "", "report", "--out", out, "--format", "plain", "--no-reconcile", primary, retry)
	require.Equal(t, exitFailures, code, stderr)
	r := readReport(t, filepath.Join(out, config.ReportFile))
	assert.True(t, r.RetryMetadata.RetryEnabled)
	assert.False(t, r.RetryMetadata.FilterRetryFailures)
	assert.Equal(t, 1, r.Summary.FailedScenarios)
}

func TestRecordThenReport(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "out")
	primary := writeFile(t, dir, "primary.ndjson", primaryRun)
	retry := writeFile(t, dir, "retry.ndjson", retryRound)

	code, stdout, stderr := runCLI(t, "", "record", "--out", out, primary)
	require.Equal(t, exitFailures, code, stderr)
	assert.Contains(t, stdout, "1 still failing")
	manifest, err := os.ReadFile(filepath.Join(out, config.ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, "features/cart.feature:9\n", string(manifest))

	code, stdout, stderr = runCLI(t, "", "record", "--out", out, "--resume", retry)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "1 passed after retry, 0 still failing")

	// A later report run picks the persisted summary up from the output dir.
	code, _, stderr = runCLI(t, "", "report", "--out", out, "--format", "json", primary)
	require.Equal(t, exitOK, code, stderr)
	r := readReport(t, filepath.Join(out, config.ReportFile))
	assert.Equal(t, 0, r.Summary.FailedScenarios)
	assert.Equal(t, 1, r.RetryMetadata.PassedAfterRetryCount)
}

func TestReport_MalformedSummaryProceedsRaw(t *testing.T) {
	dir := isolate(t)
	summary := writeFile(t, dir, "broken.json", "{not json")

	code, _, stderr := runCLI(t, primaryRun, "report", "--out", filepath.Join(dir, "out"),
		"--format", "plain", "--retry-summary", summary)
	assert.Equal(t, exitFailures, code)
	assert.Contains(t, stderr, "retry summary unusable")
}

func TestReport_GoTestJSON(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "out")
	input := strings.Join([]string{
		`{"Time":"2024-01-01T00:00:00Z","Action":"start","Package":"example.com/shop"}`,
		`{"Time":"2024-01-01T00:00:00Z","Action":"run","Package":"example.com/shop","Test":"TestCart"}`,
		`{"Time":"2024-01-01T00:00:01Z","Action":"pass","Package":"example.com/shop","Test":"TestCart","Elapsed":1}`,
		`{"Time":"2024-01-01T00:00:01Z","Action":"pass","Package":"example.com/shop","Elapsed":1}`,
	}, "\n") + "\n"

	code, _, stderr := runCLI(t, input, "report", "--out", out, "--format", "plain")
	require.Equal(t, exitOK, code, stderr)
	r := readReport(t, filepath.Join(out, config.ReportFile))
	assert.Equal(t, 1, r.Summary.TotalScenarios)
	assert.Equal(t, 100.0, r.Summary.PassRate)
}

func TestReport_OversizedLineStillPublishes(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "out")
	huge := `{"kind":"step-finished","ownerHint":"tc-1","status":"passed","error":{"stack":"` +
		strings.Repeat("at frame\\n", 600*1024) + `"}}`
	lines := strings.SplitAfter(primaryRun, "\n")
	input := strings.Join(lines[:3], "") + huge + "\n" + strings.Join(lines[3:], "")

	code, stdout, stderr := runCLI(t, input, "report", "--out", out, "--format", "plain")

	assert.Equal(t, exitFailures, code, stderr)
	assert.Contains(t, stderr, "malformed lines skipped")
	assert.Contains(t, stdout, "FAIL 1 of 2 scenarios failing")
	r := readReport(t, filepath.Join(out, config.ReportFile))
	assert.Equal(t, 2, r.Summary.TotalScenarios)
	assert.Equal(t, 1, r.Summary.FailedScenarios)
	manifest, err := os.ReadFile(filepath.Join(out, config.ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, "features/cart.feature:9\n", string(manifest))
}

func TestReport_InputErrors(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "out")

	code, _, stderr := runCLI(t, "", "report", "--out", out)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "no input")

	code, _, stderr = runCLI(t, "hello world\n", "report", "--out", out)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "unrecognized input")

	code, _, _ = runCLI(t, "", "report", "--out", out, filepath.Join(dir, "missing.ndjson"))
	assert.Equal(t, exitError, code)

	code, _, stderr = runCLI(t, primaryRun, "report", "--out", out, "--format", "fancy")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "unknown format")
}

func TestReport_WriteFailure(t *testing.T) {
	dir := isolate(t)
	// A regular file where the output directory should be.
	blocker := writeFile(t, dir, "out", "")

	code, stdout, _ := runCLI(t, primaryRun, "report", "--out", blocker, "--format", "plain")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stdout, "REPORT WRITE FAILED")
	assert.Contains(t, stdout, "FAIL 1 of 2 scenarios failing", "the console summary is still printed")
}

func TestReport_MetricsFile(t *testing.T) {
	dir := isolate(t)
	metricsPath := filepath.Join(dir, "verdict.prom")

	code, _, stderr := runCLI(t, primaryRun, "report", "--out", filepath.Join(dir, "out"),
		"--format", "plain", "--metrics-file", metricsPath)
	require.Equal(t, exitFailures, code, stderr)
	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "verdict_pass_rate_percent 50")
	assert.Contains(t, string(data), `verdict_events_total{kind="scenario-started"} 2`)
}

func TestConfig_PrintsResolvedYAML(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, config.FileName, "out: from-file\ntheme: orca\n")

	code, stdout, stderr := runCLI(t, "", "config", "--theme", "mono")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "# from "+config.FileName)
	assert.Contains(t, stdout, "out: from-file")
	assert.Contains(t, stdout, "theme: mono")
}

func TestView_NonTTYPrintsReport(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "out")
	code, _, _ := runCLI(t, primaryRun, "report", "--out", out, "--format", "plain")
	require.Equal(t, exitFailures, code)

	code, stdout, stderr := runCLI(t, "", "view", filepath.Join(out, config.ReportFile))
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Remove item")

	code, _, _ = runCLI(t, "", "view")
	assert.Equal(t, exitError, code)
}

func TestPeekLine(t *testing.T) {
	r := strings.NewReader("\n\n{\"kind\":\"run-started\"}\n{\"kind\":\"run-finished\"}\n")
	br := bufio.NewReader(r)
	first := peekLine(br)
	assert.Equal(t, "\n\n{\"kind\":\"run-started\"}\n", string(first))
	rest, _ := br.Peek(br.Buffered())
	assert.True(t, bytes.HasPrefix(rest, first), "peekLine must not consume input")
}
