// Package result holds the run → feature → scenario → step hierarchy that
// the ingestor builds and the reconciler and report generator consume.
package result

import (
	"path"
	"strconv"
	"strings"
	"time"
)

// Status is the outcome of a scenario or step as reported by the engine.
type Status string

const (
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusUndefined Status = "undefined"
	StatusPending   Status = "pending"
	StatusAmbiguous Status = "ambiguous"
	StatusUnused    Status = "unused"
)

// ParseStatus normalizes an engine status string. Unknown values map to
// StatusUndefined so a scenario is never silently dropped from the counters.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPassed, "pass":
		return StatusPassed
	case StatusFailed, "fail":
		return StatusFailed
	case StatusSkipped, "skip":
		return StatusSkipped
	case StatusPending:
		return StatusPending
	case StatusAmbiguous:
		return StatusAmbiguous
	case StatusUnused:
		return StatusUnused
	default:
		return StatusUndefined
	}
}

// Bucket is the feature counter a scenario status folds into. Every status
// lands in exactly one bucket.
type Bucket int

const (
	BucketPassed Bucket = iota
	BucketFailed
	BucketSkipped
	BucketUndefined
)

// Bucket reports which feature counter s contributes to.
// Ambiguous counts as a failure, unused as skipped, pending as undefined.
func (s Status) Bucket() Bucket {
	switch s {
	case StatusPassed:
		return BucketPassed
	case StatusFailed, StatusAmbiguous:
		return BucketFailed
	case StatusSkipped, StatusUnused:
		return BucketSkipped
	default:
		return BucketUndefined
	}
}

// ErrorDetail captures a failure as reported by the engine.
type ErrorDetail struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// Empty reports whether no error information is present.
func (e *ErrorDetail) Empty() bool {
	return e == nil || (e.Message == "" && e.Type == "" && e.Stack == "")
}

// Build identifies the CI build that produced a run.
type Build struct {
	Number string `json:"number,omitempty"`
	URL    string `json:"url,omitempty"`
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
}

// Host describes the machine the run executed on.
type Host struct {
	Hostname  string `json:"hostname,omitempty"`
	OS        string `json:"os,omitempty"`
	Arch      string `json:"arch,omitempty"`
	GoVersion string `json:"goVersion,omitempty"`
}

// Run is one test-execution invocation.
type Run struct {
	ID          string
	Start       time.Time
	End         time.Time
	Duration    time.Duration
	Environment string
	Build       Build
	Host        Host
}

// Step is one instruction within a scenario.
type Step struct {
	Keyword  string
	Text     string
	Line     int
	Status   Status
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Error    *ErrorDetail
}

// Open reports whether the step has started but not yet finished.
func (s *Step) Open() bool {
	return s.Status == ""
}

// RetryAnnotation is attached to a scenario by the reconciler.
type RetryAnnotation struct {
	PassedAfterRetry bool
	PassedOnAttempt  int
	TotalAttempts    int
	FailedAttempts   int
}

// Scenario is one executable unit.
type Scenario struct {
	Identity    string
	Name        string
	Feature     string
	Source      string
	Line        int
	Tags        []string
	Status      Status
	Start       time.Time
	End         time.Time
	Duration    time.Duration
	Error       *ErrorDetail
	Steps       []Step
	FailingStep *Step
	Retry       *RetryAnnotation
}

// Finished reports whether the scenario-finished event has been applied.
func (s *Scenario) Finished() bool {
	return !s.End.IsZero() || s.Status != ""
}

// Clone returns a deep copy of s.
func (s *Scenario) Clone() *Scenario {
	if s == nil {
		return nil
	}
	c := *s
	c.Tags = append([]string(nil), s.Tags...)
	c.Steps = make([]Step, len(s.Steps))
	for i, st := range s.Steps {
		c.Steps[i] = st
		c.Steps[i].Error = cloneError(st.Error)
	}
	c.Error = cloneError(s.Error)
	if s.FailingStep != nil {
		fs := *s.FailingStep
		fs.Error = cloneError(s.FailingStep.Error)
		c.FailingStep = &fs
	}
	if s.Retry != nil {
		r := *s.Retry
		c.Retry = &r
	}
	return &c
}

func cloneError(e *ErrorDetail) *ErrorDetail {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// Feature groups the scenarios that share a source file.
type Feature struct {
	Name               string
	Source             string
	Total              int
	Passed             int
	Failed             int
	Skipped            int
	Undefined          int
	Failures           []*Scenario
	SkippedScenarios   []*Scenario
	UndefinedScenarios []*Scenario
	Recovered          []*Scenario
}

// Fold adds a finished scenario to the feature counters.
func (f *Feature) Fold(sc *Scenario) {
	f.Total++
	switch sc.Status.Bucket() {
	case BucketPassed:
		f.Passed++
	case BucketFailed:
		f.Failed++
		f.Failures = append(f.Failures, sc)
	case BucketSkipped:
		f.Skipped++
		f.SkippedScenarios = append(f.SkippedScenarios, sc)
	case BucketUndefined:
		f.Undefined++
		f.UndefinedScenarios = append(f.UndefinedScenarios, sc)
	}
}

// Unfold reverses a previous Fold of the scenario with the given identity
// and status. Used when the same identity is executed again within a run.
func (f *Feature) Unfold(identity string, status Status) {
	f.Total--
	switch status.Bucket() {
	case BucketPassed:
		f.Passed--
	case BucketFailed:
		f.Failed--
		f.Failures = without(f.Failures, identity)
	case BucketSkipped:
		f.Skipped--
		f.SkippedScenarios = without(f.SkippedScenarios, identity)
	case BucketUndefined:
		f.Undefined--
		f.UndefinedScenarios = without(f.UndefinedScenarios, identity)
	}
}

func without(list []*Scenario, identity string) []*Scenario {
	out := list[:0]
	for _, sc := range list {
		if sc.Identity != identity {
			out = append(out, sc)
		}
	}
	return out
}

// Clone returns a deep copy of f, including its scenario lists.
func (f *Feature) Clone() *Feature {
	c := *f
	c.Failures = cloneScenarios(f.Failures)
	c.SkippedScenarios = cloneScenarios(f.SkippedScenarios)
	c.UndefinedScenarios = cloneScenarios(f.UndefinedScenarios)
	c.Recovered = cloneScenarios(f.Recovered)
	return &c
}

func cloneScenarios(in []*Scenario) []*Scenario {
	if in == nil {
		return nil
	}
	out := make([]*Scenario, len(in))
	for i, sc := range in {
		out[i] = sc.Clone()
	}
	return out
}

// Identity builds the stable scenario identity from its source and line.
func Identity(source string, line int) string {
	return source + ":" + strconv.Itoa(line)
}

// SplitIdentity is the inverse of Identity. If id carries no numeric line
// suffix, the whole string is returned as the source and line is 0.
func SplitIdentity(id string) (source string, line int) {
	i := strings.LastIndex(id, ":")
	if i < 0 {
		return id, 0
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return id, 0
	}
	return id[:i], n
}

// FeatureName derives a feature name from its source: the trailing path
// segment with any extension removed.
func FeatureName(source string) string {
	source = strings.TrimRight(strings.ReplaceAll(source, "\\", "/"), "/")
	if source == "" {
		return "unknown"
	}
	base := path.Base(source)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
