// Package testjson reads go test -json NDJSON streams and translates them
// into lifecycle events, so Go test suites can be aggregated, retried and
// reconciled like any other engine's scenarios.
package testjson

import "time"

// TestEvent represents a single event from go test -json output.
type TestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"` // start, run, pass, fail, skip, output, bench, pause, cont
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
}

// Actions emitted by go test -json.
const (
	ActionStart  = "start"
	ActionRun    = "run"
	ActionPass   = "pass"
	ActionFail   = "fail"
	ActionSkip   = "skip"
	ActionOutput = "output"
)

// ProcessFunc is called for each parsed test event.
type ProcessFunc func(TestEvent)

// ElapsedDuration converts the Elapsed field to a time.Duration.
func (e TestEvent) ElapsedDuration() time.Duration {
	return time.Duration(e.Elapsed * float64(time.Second))
}

// IsSubtest reports whether the event belongs to a subtest.
func (e TestEvent) IsSubtest() bool {
	for i := 0; i < len(e.Test); i++ {
		if e.Test[i] == '/' {
			return true
		}
	}
	return false
}
