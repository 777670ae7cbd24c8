// Package reconcile reclassifies failures that eventually passed on retry,
// so the final report never counts a recovered scenario as failed.
package reconcile

import (
	"go.uber.org/zap"

	"github.com/dkoosis/verdict/internal/metrics"
	"github.com/dkoosis/verdict/pkg/ledger"
	"github.com/dkoosis/verdict/pkg/result"
)

// Outcome is the retry history of one identity as the reconciler sees it.
type Outcome struct {
	Name            string
	Passed          bool
	PassedOnAttempt int
	TotalAttempts   int
	FailedAttempts  int
	LastError       string
}

// OutcomeSet is an immutable view of retry outcomes keyed by identity.
type OutcomeSet struct {
	m map[string]Outcome
}

// FromLedger builds an OutcomeSet from a ledger snapshot.
func FromLedger(entries map[string]ledger.Entry) OutcomeSet {
	m := make(map[string]Outcome, len(entries))
	for id, e := range entries {
		o := Outcome{
			Name:           e.Name,
			Passed:         e.Passed(),
			TotalAttempts:  e.TotalAttempts,
			FailedAttempts: e.FailedAttempts(),
			LastError:      e.LastError,
		}
		if e.PassedOnAttempt != nil {
			o.PassedOnAttempt = *e.PassedOnAttempt
		}
		m[id] = o
	}
	return OutcomeSet{m: m}
}

// FromSummary builds an OutcomeSet from a persisted retry summary.
func FromSummary(s *ledger.Summary) OutcomeSet {
	if s == nil {
		return OutcomeSet{}
	}
	m := make(map[string]Outcome, len(s.Scenarios))
	for _, sc := range s.Scenarios {
		o := Outcome{
			Name:           sc.Name,
			Passed:         sc.FinalStatus == ledger.StatusPassed,
			TotalAttempts:  sc.TotalAttempts,
			FailedAttempts: sc.FailedAttempts,
			LastError:      sc.LastError,
		}
		if sc.PassedOnAttempt != nil {
			o.PassedOnAttempt = *sc.PassedOnAttempt
		}
		m[sc.Location] = o
	}
	return OutcomeSet{m: m}
}

// Lookup returns the outcome recorded for id.
func (s OutcomeSet) Lookup(id string) (Outcome, bool) {
	o, ok := s.m[id]
	return o, ok
}

// Len returns the number of identities in the set.
func (s OutcomeSet) Len() int { return len(s.m) }

// PassedAfterRetry counts identities that passed on an attempt after the first.
func (s OutcomeSet) PassedAfterRetry() int {
	n := 0
	for _, o := range s.m {
		if o.Passed && o.PassedOnAttempt > 1 {
			n++
		}
	}
	return n
}

// FailedAllRetries counts identities that never passed.
func (s OutcomeSet) FailedAllRetries() int {
	n := 0
	for _, o := range s.m {
		if !o.Passed {
			n++
		}
	}
	return n
}

// Stats summarizes one reconciliation pass.
type Stats struct {
	Reclassified int
	StillFailing int
	// Unmatched counts failures with no retry history at all.
	Unmatched int
}

// Reconciler applies an OutcomeSet to aggregated features.
type Reconciler struct {
	// Enabled false leaves failures untouched, reporting raw results.
	Enabled bool

	log     *zap.Logger
	metrics *metrics.Metrics
}

// New returns an enabled Reconciler. log and m may be nil.
func New(log *zap.Logger, m *metrics.Metrics) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{Enabled: true, log: log, metrics: m}
}

// Apply reclassifies, in place, every failure whose identity eventually
// passed. Applying the same outcomes twice is a no-op: a reclassified
// scenario leaves Failures and is never counted again. A failure annotated
// as still failing is reclassified by a later outcome set in which it passed.
// After Apply, each feature's Failed equals len(Failures).
func (r *Reconciler) Apply(features []*result.Feature, outcomes OutcomeSet) Stats {
	var st Stats
	if !r.Enabled {
		for _, f := range features {
			st.StillFailing += len(f.Failures)
		}
		return st
	}

	for _, f := range features {
		kept := f.Failures[:0]
		for _, sc := range f.Failures {
			o, ok := outcomes.Lookup(sc.Identity)
			switch {
			case ok && o.Passed && (sc.Retry == nil || !sc.Retry.PassedAfterRetry):
				sc.Retry = &result.RetryAnnotation{
					PassedAfterRetry: true,
					PassedOnAttempt:  o.PassedOnAttempt,
					TotalAttempts:    o.TotalAttempts,
					FailedAttempts:   o.FailedAttempts,
				}
				sc.Status = result.StatusPassed
				f.Passed++
				f.Recovered = append(f.Recovered, sc)
				st.Reclassified++
				r.log.Debug("failure reclassified after retry",
					zap.String("identity", sc.Identity),
					zap.Int("passed_on_attempt", o.PassedOnAttempt))
			case ok:
				sc.Retry = &result.RetryAnnotation{
					TotalAttempts:  o.TotalAttempts,
					FailedAttempts: o.FailedAttempts,
				}
				kept = append(kept, sc)
				st.StillFailing++
			default:
				kept = append(kept, sc)
				st.StillFailing++
				st.Unmatched++
			}
		}
		// Drop stale pointers from the backing array.
		for i := len(kept); i < len(f.Failures); i++ {
			f.Failures[i] = nil
		}
		f.Failures = kept
		f.Failed = len(f.Failures)
	}

	r.metrics.Reconciled(st.Reclassified, st.StillFailing)
	r.log.Info("reconciled",
		zap.Int("reclassified", st.Reclassified),
		zap.Int("still_failing", st.StillFailing),
		zap.Int("unmatched", st.Unmatched))
	return st
}
