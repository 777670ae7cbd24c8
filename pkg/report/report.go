// Package report turns a reconciled hierarchy into the final report, the
// rerun manifest and the HTML summary, and publishes them to disk.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dkoosis/verdict/pkg/reconcile"
	"github.com/dkoosis/verdict/pkg/result"
)

// Report is the reconciled outcome of one run.
type Report struct {
	Metadata          Metadata       `json:"metadata"`
	Summary           Summary        `json:"summary"`
	RetryMetadata     RetryMetadata  `json:"retryMetadata"`
	FailureCategories map[string]int `json:"failureCategories"`
	Features          []Feature      `json:"features"`
}

type Metadata struct {
	RunID       string       `json:"runId,omitempty"`
	StartTime   time.Time    `json:"startTime"`
	EndTime     time.Time    `json:"endTime"`
	DurationMs  int64        `json:"durationMs"`
	Environment string       `json:"environment,omitempty"`
	Build       result.Build `json:"build"`
	Host        result.Host  `json:"host"`
}

type Summary struct {
	TotalFeatures      int     `json:"totalFeatures"`
	TotalScenarios     int     `json:"totalScenarios"`
	PassedScenarios    int     `json:"passedScenarios"`
	FailedScenarios    int     `json:"failedScenarios"`
	SkippedScenarios   int     `json:"skippedScenarios"`
	UndefinedScenarios int     `json:"undefinedScenarios"`
	PassRate           float64 `json:"passRate"`
}

type RetryMetadata struct {
	RetryEnabled          bool `json:"retryEnabled"`
	FilterRetryFailures   bool `json:"filterRetryFailures"`
	PassedAfterRetryCount int  `json:"passedAfterRetryCount"`
	FailedAllRetriesCount int  `json:"failedAllRetriesCount"`
}

type Feature struct {
	FeatureName        string     `json:"featureName"`
	Source             string     `json:"source"`
	TotalScenarios     int        `json:"totalScenarios"`
	PassedScenarios    int        `json:"passedScenarios"`
	FailedScenarios    int        `json:"failedScenarios"`
	SkippedScenarios   int        `json:"skippedScenarios"`
	UndefinedScenarios int        `json:"undefinedScenarios"`
	Failures           []Scenario `json:"failures"`
	Skipped            []Scenario `json:"skipped"`
	Undefined          []Scenario `json:"undefined"`
	Recovered          []Scenario `json:"recovered"`
}

type Scenario struct {
	ScenarioName string              `json:"scenarioName"`
	Identity     string              `json:"identity"`
	Line         int                 `json:"line"`
	Status       string              `json:"status"`
	Tags         []string            `json:"tags,omitempty"`
	DurationMs   int64               `json:"durationMs"`
	Error        *result.ErrorDetail `json:"error,omitempty"`
	Steps        []Step              `json:"steps,omitempty"`
	FailingStep  *Step               `json:"failingStep,omitempty"`
	RetryInfo    *RetryInfo          `json:"retryInfo,omitempty"`
}

type Step struct {
	Keyword    string              `json:"keyword"`
	Text       string              `json:"text"`
	Line       int                 `json:"line,omitempty"`
	Status     string              `json:"status"`
	DurationMs int64               `json:"durationMs"`
	Error      *result.ErrorDetail `json:"error,omitempty"`
}

type RetryInfo struct {
	PassedAfterRetry bool `json:"passedAfterRetry"`
	PassedOnAttempt  int  `json:"passedOnAttempt,omitempty"`
	TotalAttempts    int  `json:"totalAttempts"`
	FailedAttempts   int  `json:"failedAttempts"`
}

// Options carries what Build needs beyond the hierarchy itself.
type Options struct {
	// RetryEnabled is true when retry history was available.
	RetryEnabled bool
	// Reconciled is true when failures were filtered against that history.
	Reconciled bool
	Outcomes   reconcile.OutcomeSet
}

// Build assembles the report from reconciled features. Totals are summed
// from the per-feature counters; passRate is 0 when no scenario ran.
func Build(run result.Run, features []*result.Feature, opts Options) *Report {
	r := &Report{
		Metadata: Metadata{
			RunID:       run.ID,
			StartTime:   run.Start,
			EndTime:     run.End,
			DurationMs:  run.Duration.Milliseconds(),
			Environment: run.Environment,
			Build:       run.Build,
			Host:        run.Host,
		},
		RetryMetadata: RetryMetadata{
			RetryEnabled:        opts.RetryEnabled,
			FilterRetryFailures: opts.Reconciled,
		},
		Features: make([]Feature, 0, len(features)),
	}
	if opts.RetryEnabled {
		r.RetryMetadata.PassedAfterRetryCount = opts.Outcomes.PassedAfterRetry()
		r.RetryMetadata.FailedAllRetriesCount = opts.Outcomes.FailedAllRetries()
	}

	var failures []Scenario
	for _, f := range features {
		rf := Feature{
			FeatureName:        f.Name,
			Source:             f.Source,
			TotalScenarios:     f.Total,
			PassedScenarios:    f.Passed,
			FailedScenarios:    f.Failed,
			SkippedScenarios:   f.Skipped,
			UndefinedScenarios: f.Undefined,
			Failures:           scenarios(f.Failures),
			Skipped:            scenarios(f.SkippedScenarios),
			Undefined:          scenarios(f.UndefinedScenarios),
			Recovered:          scenarios(f.Recovered),
		}
		r.Features = append(r.Features, rf)
		failures = append(failures, rf.Failures...)

		s := &r.Summary
		s.TotalScenarios += f.Total
		s.PassedScenarios += f.Passed
		s.FailedScenarios += f.Failed
		s.SkippedScenarios += f.Skipped
		s.UndefinedScenarios += f.Undefined
	}
	sort.SliceStable(r.Features, func(i, j int) bool {
		a, b := r.Features[i], r.Features[j]
		if a.FeatureName != b.FeatureName {
			return a.FeatureName < b.FeatureName
		}
		return a.Source < b.Source
	})

	r.Summary.TotalFeatures = len(r.Features)
	r.Summary.PassRate = PassRate(r.Summary.PassedScenarios, r.Summary.TotalScenarios)
	r.FailureCategories = Categorize(failures)
	return r
}

// PassRate returns passed/total as a percentage rounded to two decimals,
// or 0 when total is 0.
func PassRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(passed)/float64(total)*10000) / 100
}

// Failed reports whether any scenario is still failing.
func (r *Report) Failed() bool {
	return r.Summary.FailedScenarios > 0
}

// Marshal encodes r as indented JSON with a trailing newline.
func (r *Report) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a report previously written by Marshal.
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &r, nil
}

// scenarios converts and orders a scenario list by line, then identity.
// The result is never nil so empty lists encode as [].
func scenarios(in []*result.Scenario) []Scenario {
	out := make([]Scenario, 0, len(in))
	for _, sc := range in {
		out = append(out, scenario(sc))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Identity < out[j].Identity
	})
	return out
}

func scenario(sc *result.Scenario) Scenario {
	s := Scenario{
		ScenarioName: sc.Name,
		Identity:     sc.Identity,
		Line:         sc.Line,
		Status:       string(sc.Status),
		Tags:         sc.Tags,
		DurationMs:   sc.Duration.Milliseconds(),
		Error:        sc.Error,
	}
	for _, st := range sc.Steps {
		s.Steps = append(s.Steps, step(st))
	}
	if sc.FailingStep != nil {
		fs := step(*sc.FailingStep)
		s.FailingStep = &fs
	}
	if sc.Retry != nil {
		s.RetryInfo = &RetryInfo{
			PassedAfterRetry: sc.Retry.PassedAfterRetry,
			PassedOnAttempt:  sc.Retry.PassedOnAttempt,
			TotalAttempts:    sc.Retry.TotalAttempts,
			FailedAttempts:   sc.Retry.FailedAttempts,
		}
	}
	return s
}

func step(st result.Step) Step {
	return Step{
		Keyword:    st.Keyword,
		Text:       st.Text,
		Line:       st.Line,
		Status:     string(st.Status),
		DurationMs: st.Duration.Milliseconds(),
		Error:      st.Error,
	}
}
