// Package ingest folds lifecycle events into the run → feature → scenario →
// step hierarchy. All handlers are safe to call from concurrent goroutines,
// as engines running scenarios in parallel deliver events that way.
package ingest

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dkoosis/verdict/internal/metrics"
	"github.com/dkoosis/verdict/pkg/event"
	"github.com/dkoosis/verdict/pkg/result"
)

// Recorder receives every finished scenario. The retry ledger implements it
// to accumulate attempt history while ingesting.
type Recorder interface {
	RecordOutcome(sc *result.Scenario)
}

// Options configures an Ingestor. The zero value is usable.
type Options struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Recorder Recorder
	// Run seeds the run metadata (ID, environment, build, host). Start and
	// End are filled from events.
	Run result.Run
}

type scenarioRecord struct {
	mu       sync.Mutex
	sc       *result.Scenario
	handle   string
	seq      uint64
	finished bool
}

// recordKey orders fallback candidates.
type recordKey struct {
	start time.Time
	seq   uint64
}

func (k recordKey) before(o recordKey) bool {
	if !k.start.Equal(o.start) {
		return k.start.Before(o.start)
	}
	return k.seq < o.seq
}

func (r *scenarioRecord) candidateKey() (recordKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recordKey{start: r.sc.Start, seq: r.seq}, !r.finished
}

type featureRecord struct {
	mu sync.Mutex
	f  *result.Feature
}

// Ingestor builds the hierarchy for one run.
type Ingestor struct {
	log      *zap.Logger
	metrics  *metrics.Metrics
	recorder Recorder

	scenarios  *store[*scenarioRecord]
	features   *store[*featureRecord]
	correlator *Correlator
	seq        atomic.Uint64

	misses     atomic.Int64
	duplicates atomic.Int64

	runMu       sync.Mutex
	run         result.Run
	runFinished bool
}

var _ event.Handler = (*Ingestor)(nil)

// New returns an Ingestor for one run.
func New(opts Options) *Ingestor {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	scenarios := newStore[*scenarioRecord]()
	return &Ingestor{
		log:        log,
		metrics:    opts.Metrics,
		recorder:   opts.Recorder,
		scenarios:  scenarios,
		features:   newStore[*featureRecord](),
		correlator: newCorrelator(scenarios),
		run:        opts.Run,
	}
}

// Handle dispatches e to the matching handler.
func (in *Ingestor) Handle(e event.Event) {
	in.metrics.Event(string(e.Kind()))
	event.Dispatch(in, e)
}

// OnRunStarted records the run start time.
func (in *Ingestor) OnRunStarted(e event.RunStarted) {
	in.runMu.Lock()
	defer in.runMu.Unlock()
	in.run.Start = orNow(e.Timestamp)
	in.log.Debug("run started", zap.Time("start", in.run.Start))
}

// OnRunFinished records the run end time and duration.
func (in *Ingestor) OnRunFinished(e event.RunFinished) {
	in.runMu.Lock()
	defer in.runMu.Unlock()
	in.run.End = orNow(e.Timestamp)
	switch {
	case e.TotalDuration > 0:
		in.run.Duration = e.TotalDuration
	case !in.run.Start.IsZero():
		in.run.Duration = in.run.End.Sub(in.run.Start)
	}
	in.runFinished = true
	in.log.Debug("run finished",
		zap.Duration("duration", in.run.Duration),
		zap.Int64("correlation_misses", in.misses.Load()))
}

// OnScenarioStarted creates the scenario record and registers its handle.
// Starting an identity that already ran in this run replaces the earlier
// attempt, keeping one live record per identity.
func (in *Ingestor) OnScenarioStarted(e event.ScenarioStarted) {
	sc := &result.Scenario{
		Identity: e.Identity,
		Name:     e.Name,
		Feature:  result.FeatureName(e.FeatureSource),
		Source:   e.FeatureSource,
		Line:     e.Line,
		Tags:     append([]string(nil), e.Tags...),
		Start:    orNow(e.Timestamp),
	}
	fresh := func() *scenarioRecord {
		return &scenarioRecord{sc: sc, handle: e.Handle, seq: in.seq.Add(1)}
	}
	rec, created := in.scenarios.LoadOrCreate(e.Identity, fresh)
	if !created {
		in.restart(rec, sc, e.Handle)
	}
	in.correlator.Register(e.Handle, e.Identity)
	in.log.Debug("scenario started",
		zap.String("identity", e.Identity),
		zap.String("name", e.Name))
}

// restart resets rec for a new attempt, backing the previous attempt out of
// the feature counters if it had already been folded.
func (in *Ingestor) restart(rec *scenarioRecord, sc *result.Scenario, handle string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.finished {
		if fr, ok := in.features.Load(rec.sc.Source); ok {
			fr.mu.Lock()
			fr.f.Unfold(rec.sc.Identity, rec.sc.Status)
			fr.mu.Unlock()
		}
		in.log.Debug("scenario re-executed in run",
			zap.String("identity", sc.Identity),
			zap.String("previous_status", string(rec.sc.Status)))
	}
	if rec.handle != handle {
		in.correlator.Forget(rec.handle)
	}
	rec.sc = sc
	rec.handle = handle
	rec.seq = in.seq.Add(1)
	rec.finished = false
}

// OnScenarioFinished finalizes the scenario and folds it into its feature.
func (in *Ingestor) OnScenarioFinished(e event.ScenarioFinished) {
	rec, created := in.scenarios.LoadOrCreate(e.Identity, func() *scenarioRecord {
		src, line := result.SplitIdentity(e.Identity)
		return &scenarioRecord{
			sc: &result.Scenario{
				Identity: e.Identity,
				Name:     e.Identity,
				Feature:  result.FeatureName(src),
				Source:   src,
				Line:     line,
			},
			seq: in.seq.Add(1),
		}
	})
	if created {
		in.log.Warn("scenario finished without start", zap.String("identity", e.Identity))
	}

	rec.mu.Lock()
	if rec.finished {
		rec.mu.Unlock()
		in.duplicates.Add(1)
		in.log.Warn("duplicate scenario finish ignored", zap.String("identity", e.Identity))
		return
	}
	sc := rec.sc
	sc.Status = e.Status
	sc.End = orNow(e.Timestamp)
	sc.Duration = e.Duration
	if sc.Duration == 0 && !sc.Start.IsZero() {
		sc.Duration = sc.End.Sub(sc.Start)
	}
	sc.Error = e.Error
	if sc.Error == nil && sc.Status.Bucket() == result.BucketFailed && sc.FailingStep != nil {
		sc.Error = sc.FailingStep.Error
	}
	rec.finished = true
	in.correlator.Forget(rec.handle)

	fr, _ := in.features.LoadOrCreate(sc.Source, func() *featureRecord {
		return &featureRecord{f: &result.Feature{Name: sc.Feature, Source: sc.Source}}
	})
	fr.mu.Lock()
	fr.f.Fold(sc)
	fr.mu.Unlock()

	var snapshot *result.Scenario
	if in.recorder != nil {
		snapshot = sc.Clone()
	}
	rec.mu.Unlock()

	in.metrics.ScenarioFinished(string(e.Status))
	in.log.Debug("scenario finished",
		zap.String("identity", e.Identity),
		zap.String("status", string(e.Status)),
		zap.Duration("duration", e.Duration))
	if snapshot != nil {
		in.recorder.RecordOutcome(snapshot)
	}
}

// OnStepStarted appends a step to the owning scenario.
func (in *Ingestor) OnStepStarted(e event.StepStarted) {
	rec := in.resolve(e.OwnerHint, "step-started")
	if rec == nil {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.finished {
		in.miss(e.OwnerHint, "step-started", "owner already finished")
		return
	}
	rec.sc.Steps = append(rec.sc.Steps, result.Step{
		Keyword: e.Keyword,
		Text:    e.Text,
		Line:    e.Line,
		Start:   orNow(e.Timestamp),
	})
}

// OnStepFinished closes the open step named by e.Text, or the last open step
// of the owning scenario when the event names none. The first step to finish
// with an error becomes the scenario's failing step.
func (in *Ingestor) OnStepFinished(e event.StepFinished) {
	rec := in.resolve(e.OwnerHint, "step-finished")
	if rec == nil {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.finished {
		in.miss(e.OwnerHint, "step-finished", "owner already finished")
		return
	}
	steps := rec.sc.Steps
	i := openStep(steps, e.Text)
	if i < 0 {
		in.miss(e.OwnerHint, "step-finished", "no open step")
		return
	}
	st := &steps[i]
	st.Status = e.Status
	st.End = orNow(e.Timestamp)
	st.Duration = e.Duration
	if st.Duration == 0 && !st.Start.IsZero() {
		st.Duration = st.End.Sub(st.Start)
	}
	st.Error = e.Error

	failed := st.Status.Bucket() == result.BucketFailed || !st.Error.Empty()
	if failed && rec.sc.FailingStep == nil {
		fs := *st
		if st.Error != nil {
			errCopy := *st.Error
			fs.Error = &errCopy
		}
		rec.sc.FailingStep = &fs
	}
}

// openStep returns the index of the latest open step with the given text,
// or of the latest open step when text is empty. It returns -1 if none.
func openStep(steps []result.Step, text string) int {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Open() && (text == "" || steps[i].Text == text) {
			return i
		}
	}
	return -1
}

func (in *Ingestor) resolve(hint, kind string) *scenarioRecord {
	rec, strategy := in.correlator.Resolve(hint)
	in.metrics.Correlation(strategy)
	if rec == nil {
		in.miss(hint, kind, "no live scenario")
		return nil
	}
	if strategy == metrics.StrategyFallback && hint != "" {
		in.log.Debug("step correlated by fallback", zap.String("owner_hint", hint))
	}
	return rec
}

func (in *Ingestor) miss(hint, kind, reason string) {
	in.misses.Add(1)
	in.log.Debug("correlation miss, step detail dropped",
		zap.String("event", kind),
		zap.String("owner_hint", hint),
		zap.String("reason", reason))
}

// Misses returns the number of step events whose detail was dropped.
func (in *Ingestor) Misses() int64 { return in.misses.Load() }

// Duplicates returns the number of ignored duplicate scenario finishes.
func (in *Ingestor) Duplicates() int64 { return in.duplicates.Load() }

// Finished reports whether run-finished has been received.
func (in *Ingestor) Finished() bool {
	in.runMu.Lock()
	defer in.runMu.Unlock()
	return in.runFinished
}

// Unfinished lists the identities of scenarios that started but never
// finished. They are not counted in any feature.
func (in *Ingestor) Unfinished() []string {
	var ids []string
	for _, rec := range in.scenarios.Values() {
		rec.mu.Lock()
		if !rec.finished {
			ids = append(ids, rec.sc.Identity)
		}
		rec.mu.Unlock()
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns the run metadata and a deep copy of every feature,
// ordered by name then source. The ingestor may keep receiving events.
func (in *Ingestor) Snapshot() (result.Run, []*result.Feature) {
	in.runMu.Lock()
	run := in.run
	in.runMu.Unlock()

	var features []*result.Feature
	for _, fr := range in.features.Values() {
		fr.mu.Lock()
		features = append(features, fr.f.Clone())
		fr.mu.Unlock()
	}
	sort.Slice(features, func(i, j int) bool {
		if features[i].Name != features[j].Name {
			return features[i].Name < features[j].Name
		}
		return features[i].Source < features[j].Source
	})
	return run, features
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
