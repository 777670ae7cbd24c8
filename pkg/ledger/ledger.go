// Package ledger records per-scenario attempt history across retry rounds.
//
// A Ledger is one retry session. Construct it explicitly, pass it to
// whatever records attempts (the retry loop, or a Recorder fed by the event
// ingestor) and to the reconciler, and Clear it between independent
// sessions. Nothing resets it implicitly.
package ledger

import (
	"fmt"
	"sync"
	"time"
)

// Final statuses as they appear in the persisted summary.
const (
	StatusPassed = "PASSED"
	StatusFailed = "FAILED"
)

// Attempt is one execution of a scenario.
type Attempt struct {
	Number       int
	Status       string
	ErrorMessage string
	ErrorType    string
	At           time.Time
}

// Entry is the attempt history of one scenario identity.
type Entry struct {
	Identity        string
	Name            string
	TotalAttempts   int
	PassedOnAttempt *int
	FinalStatus     string
	LastError       string
	LastAttemptAt   time.Time
	Attempts        []Attempt

	// seededFailures carries failed-attempt counts from a persisted summary,
	// whose per-attempt detail is not available.
	seededFailures int
}

// FailedAttempts counts the attempts that ended in failure.
func (e Entry) FailedAttempts() int {
	n := e.seededFailures
	for _, a := range e.Attempts {
		if a.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Passed reports whether any attempt in the session succeeded.
func (e Entry) Passed() bool {
	return e.FinalStatus == StatusPassed
}

func (e Entry) clone() Entry {
	c := e
	c.Attempts = append([]Attempt(nil), e.Attempts...)
	if e.PassedOnAttempt != nil {
		n := *e.PassedOnAttempt
		c.PassedOnAttempt = &n
	}
	return c
}

// Ledger is a thread-safe store of attempt history keyed by scenario identity.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

// New returns an empty ledger session.
func New() *Ledger {
	return &Ledger{entries: make(map[string]*Entry), now: time.Now}
}

// entry returns the entry for id, creating it if absent. Caller holds mu.
func (l *Ledger) entry(id string) *Entry {
	e, ok := l.entries[id]
	if !ok {
		e = &Entry{Identity: id, Name: id, FinalStatus: StatusFailed}
		l.entries[id] = e
	}
	return e
}

func (e *Entry) bump(attempt int, at time.Time) {
	if attempt > e.TotalAttempts {
		e.TotalAttempts = attempt
	}
	e.LastAttemptAt = at
}

// RecordAttempt notes that attempt number attempt (1-based) of id started.
func (l *Ledger) RecordAttempt(id string, attempt int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry(id).bump(attempt, l.now())
}

// RecordFailure appends a failed attempt. A nil err is recorded as an
// unknown error.
func (l *Ledger) RecordFailure(id string, attempt int, err error) {
	msg, typ := "Unknown error", ""
	if err != nil {
		msg, typ = err.Error(), fmt.Sprintf("%T", err)
	}
	l.RecordFailureDetail(id, attempt, msg, typ)
}

// RecordFailureDetail is RecordFailure for engines that report errors as
// text rather than Go errors.
func (l *Ledger) RecordFailureDetail(id string, attempt int, message, errType string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e := l.entry(id)
	e.bump(attempt, now)
	e.LastError = message
	e.Attempts = append(e.Attempts, Attempt{
		Number:       attempt,
		Status:       StatusFailed,
		ErrorMessage: message,
		ErrorType:    errType,
		At:           now,
	})
}

// RecordSuccess appends a passed attempt and marks the entry passed. If the
// retry wrapper keeps going after a success, the latest success wins.
func (l *Ledger) RecordSuccess(id string, attempt int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e := l.entry(id)
	e.bump(attempt, now)
	n := attempt
	e.PassedOnAttempt = &n
	e.FinalStatus = StatusPassed
	e.Attempts = append(e.Attempts, Attempt{Number: attempt, Status: StatusPassed, At: now})
}

// SetName attaches a human-readable scenario name to id.
func (l *Ledger) SetName(id, name string) {
	if name == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry(id).Name = name
}

// NextAttempt reserves and returns the next attempt number for id. The
// reservation is atomic, so concurrent callers get distinct numbers.
func (l *Ledger) NextAttempt(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(id)
	e.TotalAttempts++
	e.LastAttemptAt = l.now()
	return e.TotalAttempts
}

// Get returns a copy of the entry for id.
func (l *Ledger) Get(id string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// All returns a snapshot of every entry. The snapshot shares no state with
// the ledger.
func (l *Ledger) All() map[string]Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Entry, len(l.entries))
	for id, e := range l.entries {
		out[id] = e.clone()
	}
	return out
}

// Len returns the number of tracked identities.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear ends the session and drops all history.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*Entry)
}

// Seed starts the session from a persisted summary written by an earlier
// process. Entries are copied; attempts recorded afterwards continue the
// numbering from each scenario's persisted total.
func (l *Ledger) Seed(s *Summary) {
	if s == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, sc := range s.Scenarios {
		if sc.Location == "" {
			continue
		}
		e := l.entry(sc.Location)
		if sc.Name != "" {
			e.Name = sc.Name
		}
		e.TotalAttempts = sc.TotalAttempts
		e.seededFailures = sc.FailedAttempts
		e.LastError = sc.LastError
		if sc.PassedOnAttempt != nil {
			n := *sc.PassedOnAttempt
			e.PassedOnAttempt = &n
		}
		if normalizeFinal(sc.FinalStatus) == StatusPassed {
			e.FinalStatus = StatusPassed
		}
	}
}
