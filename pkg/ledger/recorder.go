package ledger

import (
	"github.com/dkoosis/verdict/pkg/result"
)

// Recorder feeds scenario outcomes observed by the event ingestor into a
// Ledger. Each finished scenario counts as the next attempt of its identity,
// so replaying several rounds of the same suite accumulates attempt history.
type Recorder struct {
	L *Ledger
}

// NewRecorder returns a Recorder writing to l.
func NewRecorder(l *Ledger) *Recorder {
	return &Recorder{L: l}
}

// RecordOutcome records one finished scenario. Statuses other than passed
// and failed still consume an attempt number but leave the outcome open.
func (r *Recorder) RecordOutcome(sc *result.Scenario) {
	if r == nil || r.L == nil || sc == nil {
		return
	}
	r.L.SetName(sc.Identity, sc.Name)
	n := r.L.NextAttempt(sc.Identity)
	switch sc.Status.Bucket() {
	case result.BucketPassed:
		r.L.RecordSuccess(sc.Identity, n)
	case result.BucketFailed:
		msg, typ := "Unknown error", ""
		if !sc.Error.Empty() {
			msg, typ = sc.Error.Message, sc.Error.Type
		} else if sc.FailingStep != nil && !sc.FailingStep.Error.Empty() {
			msg, typ = sc.FailingStep.Error.Message, sc.FailingStep.Error.Type
		}
		r.L.RecordFailureDetail(sc.Identity, n, msg, typ)
	}
}
