package ingest

import (
	"github.com/dkoosis/verdict/internal/metrics"
)

// Correlator resolves the scenario a step event belongs to.
//
// Engines that expose the live execution handle on step events get an exact
// match through the handle table. When the hint is missing or unknown the
// correlator falls back to the unfinished scenario with the latest start
// time. The fallback is an approximation: with scenarios running in parallel
// it can attribute a step to the wrong scenario.
type Correlator struct {
	handles *store[string]
	records *store[*scenarioRecord]
}

func newCorrelator(records *store[*scenarioRecord]) *Correlator {
	return &Correlator{handles: newStore[string](), records: records}
}

// Register maps an engine handle to a scenario identity.
func (c *Correlator) Register(handle, identity string) {
	if handle == "" {
		return
	}
	c.handles.Store(handle, identity)
}

// Forget drops a handle once its scenario has finished.
func (c *Correlator) Forget(handle string) {
	if handle == "" {
		return
	}
	c.handles.Delete(handle)
}

// Resolve returns the record for a step's owner hint and the strategy that
// found it: metrics.StrategyExact, StrategyFallback or StrategyMiss.
func (c *Correlator) Resolve(hint string) (*scenarioRecord, string) {
	if hint != "" {
		if id, ok := c.handles.Load(hint); ok {
			if rec, ok := c.records.Load(id); ok {
				return rec, metrics.StrategyExact
			}
		}
	}
	if rec := c.mostRecentUnfinished(); rec != nil {
		return rec, metrics.StrategyFallback
	}
	return nil, metrics.StrategyMiss
}

// mostRecentUnfinished picks the unfinished record with the latest start.
// Ties go to the record created last.
func (c *Correlator) mostRecentUnfinished() *scenarioRecord {
	var (
		best    *scenarioRecord
		bestKey recordKey
	)
	for _, rec := range c.records.Values() {
		key, open := rec.candidateKey()
		if !open {
			continue
		}
		if best == nil || bestKey.before(key) {
			best, bestKey = rec, key
		}
	}
	return best
}
