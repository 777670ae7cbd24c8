// Package event defines the six lifecycle events a test-execution engine
// emits and the NDJSON wire format they travel in.
package event

import (
	"time"

	"github.com/dkoosis/verdict/pkg/result"
)

// Kind names an event on the wire.
type Kind string

const (
	KindRunStarted       Kind = "run-started"
	KindRunFinished      Kind = "run-finished"
	KindScenarioStarted  Kind = "scenario-started"
	KindScenarioFinished Kind = "scenario-finished"
	KindStepStarted      Kind = "step-started"
	KindStepFinished     Kind = "step-finished"
)

// Event is a closed union over the six lifecycle events. The unexported
// dispatch method keeps the set closed to this package.
type Event interface {
	Kind() Kind
	dispatch(h Handler)
}

// Handler receives events. Implementations must handle every kind; adding a
// kind here breaks every implementation at compile time.
type Handler interface {
	OnRunStarted(RunStarted)
	OnRunFinished(RunFinished)
	OnScenarioStarted(ScenarioStarted)
	OnScenarioFinished(ScenarioFinished)
	OnStepStarted(StepStarted)
	OnStepFinished(StepFinished)
}

// Dispatch routes e to the matching Handler method.
func Dispatch(h Handler, e Event) {
	e.dispatch(h)
}

// RunStarted opens a run.
type RunStarted struct {
	Timestamp time.Time
}

// RunFinished closes a run.
type RunFinished struct {
	Timestamp     time.Time
	TotalDuration time.Duration
}

// ScenarioStarted opens a scenario. Handle is the engine's live execution
// handle that step events refer to through their OwnerHint.
type ScenarioStarted struct {
	Identity      string
	Handle        string
	Name          string
	FeatureSource string
	Line          int
	Tags          []string
	Timestamp     time.Time
}

// ScenarioFinished closes a scenario.
type ScenarioFinished struct {
	Identity  string
	Status    result.Status
	Timestamp time.Time
	Duration  time.Duration
	Error     *result.ErrorDetail
}

// StepStarted opens a step. OwnerHint may be empty when the engine does not
// expose which scenario a step belongs to.
type StepStarted struct {
	OwnerHint string
	Keyword   string
	Text      string
	Line      int
	Timestamp time.Time
}

// StepFinished closes an open step of its owner: the latest open step whose
// Text matches, or the most recently started open step when Text is empty.
type StepFinished struct {
	OwnerHint string
	Text      string
	Status    result.Status
	Timestamp time.Time
	Duration  time.Duration
	Error     *result.ErrorDetail
}

func (RunStarted) Kind() Kind       { return KindRunStarted }
func (RunFinished) Kind() Kind      { return KindRunFinished }
func (ScenarioStarted) Kind() Kind  { return KindScenarioStarted }
func (ScenarioFinished) Kind() Kind { return KindScenarioFinished }
func (StepStarted) Kind() Kind      { return KindStepStarted }
func (StepFinished) Kind() Kind     { return KindStepFinished }

func (e RunStarted) dispatch(h Handler)       { h.OnRunStarted(e) }
func (e RunFinished) dispatch(h Handler)      { h.OnRunFinished(e) }
func (e ScenarioStarted) dispatch(h Handler)  { h.OnScenarioStarted(e) }
func (e ScenarioFinished) dispatch(h Handler) { h.OnScenarioFinished(e) }
func (e StepStarted) dispatch(h Handler)      { h.OnStepStarted(e) }
func (e StepFinished) dispatch(h Handler)     { h.OnStepFinished(e) }

// Fanout delivers every event to each handler in order.
type Fanout []Handler

func (f Fanout) OnRunStarted(e RunStarted) {
	for _, h := range f {
		h.OnRunStarted(e)
	}
}

func (f Fanout) OnRunFinished(e RunFinished) {
	for _, h := range f {
		h.OnRunFinished(e)
	}
}

func (f Fanout) OnScenarioStarted(e ScenarioStarted) {
	for _, h := range f {
		h.OnScenarioStarted(e)
	}
}

func (f Fanout) OnScenarioFinished(e ScenarioFinished) {
	for _, h := range f {
		h.OnScenarioFinished(e)
	}
}

func (f Fanout) OnStepStarted(e StepStarted) {
	for _, h := range f {
		h.OnStepStarted(e)
	}
}

func (f Fanout) OnStepFinished(e StepFinished) {
	for _, h := range f {
		h.OnStepFinished(e)
	}
}
