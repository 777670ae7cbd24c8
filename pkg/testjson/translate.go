package testjson

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dkoosis/verdict/pkg/event"
	"github.com/dkoosis/verdict/pkg/result"
)

// packageScenario names the synthetic scenario reported when a package
// fails without running any test (build failure, TestMain exit, panic in
// init).
const packageScenario = "(package)"

// Identity returns the scenario identity of a top-level test.
func Identity(pkg, test string) string {
	return pkg + ":" + test
}

// Translator converts go test -json events into lifecycle events. Top-level
// tests become scenarios, subtests become steps of their top-level test and
// packages become features.
type Translator struct {
	emit func(event.Event)

	started  bool
	first    time.Time
	last     time.Time
	output   map[string][]string // keyed by package + "\x00" + test
	running  map[string]bool     // top-level identities still open
	pkgTests map[string]int
}

// NewTranslator returns a Translator that passes each lifecycle event to emit.
func NewTranslator(emit func(event.Event)) *Translator {
	return &Translator{
		emit:     emit,
		output:   make(map[string][]string),
		running:  make(map[string]bool),
		pkgTests: make(map[string]int),
	}
}

// Translate reads go test -json from r and emits lifecycle events, closing
// the run at EOF. It returns the number of malformed lines skipped.
func Translate(ctx context.Context, r io.Reader, emit func(event.Event)) (int, error) {
	t := NewTranslator(emit)
	malformed, err := Stream(ctx, r, t.Process)
	t.Finish()
	return malformed, err
}

// Process handles one go test event.
func (t *Translator) Process(e TestEvent) {
	if !t.started {
		t.started = true
		t.first = e.Time
		t.emit(event.RunStarted{Timestamp: e.Time})
	}
	if !e.Time.IsZero() {
		t.last = e.Time
	}

	top, _, _ := strings.Cut(e.Test, "/")
	owner := Identity(e.Package, top)

	switch e.Action {
	case ActionOutput:
		t.handleOutput(e)

	case ActionRun:
		if e.Test == "" {
			return
		}
		if e.IsSubtest() {
			t.emit(event.StepStarted{
				OwnerHint: owner,
				Text:      e.Test[len(top)+1:],
				Timestamp: e.Time,
			})
			return
		}
		t.pkgTests[e.Package]++
		t.running[owner] = true
		t.emit(event.ScenarioStarted{
			Identity:      owner,
			Handle:        owner,
			Name:          e.Test,
			FeatureSource: e.Package,
			Timestamp:     e.Time,
		})

	case ActionPass, ActionFail, ActionSkip:
		status := statusOf(e.Action)
		switch {
		case e.Test == "":
			t.finishPackage(e)
		case e.IsSubtest():
			t.emit(event.StepFinished{
				OwnerHint: owner,
				Text:      e.Test[len(top)+1:],
				Status:    status,
				Timestamp: e.Time,
				Duration:  e.ElapsedDuration(),
				Error:     t.failure(e, status),
			})
		default:
			delete(t.running, owner)
			t.emit(event.ScenarioFinished{
				Identity:  owner,
				Status:    status,
				Timestamp: e.Time,
				Duration:  e.ElapsedDuration(),
				Error:     t.failure(e, status),
			})
		}
	}
}

// Finish closes tests still open at end of input as failed and emits
// run-finished. A test left open usually means the binary panicked or timed
// out.
func (t *Translator) Finish() {
	if !t.started {
		return
	}
	open := make([]string, 0, len(t.running))
	for id := range t.running {
		open = append(open, id)
	}
	sort.Strings(open)
	for _, id := range open {
		t.emit(event.ScenarioFinished{
			Identity:  id,
			Status:    result.StatusFailed,
			Timestamp: t.last,
			Error:     &result.ErrorDetail{Message: "test did not finish", Type: "incomplete"},
		})
	}
	t.running = make(map[string]bool)

	var total time.Duration
	if !t.first.IsZero() && !t.last.IsZero() {
		total = t.last.Sub(t.first)
	}
	t.emit(event.RunFinished{Timestamp: t.last, TotalDuration: total})
}

func (t *Translator) handleOutput(e TestEvent) {
	line := strings.TrimRight(e.Output, "\n")
	if line == "" || isBoilerplate(line) {
		return
	}
	key := e.Package + "\x00" + e.Test
	t.output[key] = append(t.output[key], line)
}

// finishPackage reports a package that failed without running any test as a
// single failed scenario carrying the package output.
func (t *Translator) finishPackage(e TestEvent) {
	key := e.Package + "\x00"
	defer delete(t.output, key)
	if e.Action != ActionFail || t.pkgTests[e.Package] > 0 {
		return
	}
	id := Identity(e.Package, packageScenario)
	msg := strings.Join(t.output[key], "\n")
	if msg == "" {
		msg = "package failed"
	}
	t.emit(event.ScenarioStarted{Identity: id, Handle: id, Name: packageScenario, FeatureSource: e.Package, Timestamp: e.Time})
	t.emit(event.ScenarioFinished{
		Identity:  id,
		Status:    result.StatusFailed,
		Timestamp: e.Time,
		Duration:  e.ElapsedDuration(),
		Error:     &result.ErrorDetail{Message: msg, Type: "package failure"},
	})
}

// failure returns the buffered output of a failed test as its error and
// drops the buffer.
func (t *Translator) failure(e TestEvent, status result.Status) *result.ErrorDetail {
	key := e.Package + "\x00" + e.Test
	lines := t.output[key]
	delete(t.output, key)
	if status != result.StatusFailed {
		return nil
	}
	msg := strings.TrimSpace(strings.Join(lines, "\n"))
	if msg == "" {
		msg = "test failed"
	}
	typ := "test failure"
	if strings.Contains(msg, "panic:") {
		typ = "panic"
	}
	return &result.ErrorDetail{Message: msg, Type: typ}
}

func statusOf(action string) result.Status {
	switch action {
	case ActionPass:
		return result.StatusPassed
	case ActionFail:
		return result.StatusFailed
	default:
		return result.StatusSkipped
	}
}

// isBoilerplate returns true for go test output lines that should be filtered.
func isBoilerplate(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "=== RUN") ||
		strings.HasPrefix(trimmed, "=== PAUSE") ||
		strings.HasPrefix(trimmed, "=== CONT") ||
		strings.HasPrefix(trimmed, "--- FAIL") ||
		strings.HasPrefix(trimmed, "--- PASS") ||
		strings.HasPrefix(trimmed, "--- SKIP")
}
