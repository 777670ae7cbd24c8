package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/verdict/pkg/result"
)

type assertionError struct{ msg string }

func (e *assertionError) Error() string { return e.msg }

func TestLedger_DefaultsToFailed(t *testing.T) {
	l := New()
	l.RecordAttempt("a:1", 1)

	e, ok := l.Get("a:1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, e.FinalStatus)
	assert.Nil(t, e.PassedOnAttempt)
	assert.Equal(t, 1, e.TotalAttempts)
	assert.Equal(t, 0, e.FailedAttempts())
}

func TestLedger_LastSuccessWins(t *testing.T) {
	l := New()
	l.RecordFailure("a:1", 1, errors.New("boom"))
	l.RecordSuccess("a:1", 2)
	l.RecordSuccess("a:1", 3)

	e, _ := l.Get("a:1")
	assert.Equal(t, StatusPassed, e.FinalStatus)
	require.NotNil(t, e.PassedOnAttempt)
	assert.Equal(t, 3, *e.PassedOnAttempt)
	assert.Equal(t, 3, e.TotalAttempts)
	assert.Equal(t, 1, e.FailedAttempts())
	assert.Equal(t, "boom", e.LastError)
}

func TestLedger_FailureRecordsErrorType(t *testing.T) {
	l := New()
	l.RecordFailure("a:1", 1, &assertionError{msg: "expected 200"})
	l.RecordFailure("a:1", 2, nil)

	e, _ := l.Get("a:1")
	require.Len(t, e.Attempts, 2)
	assert.Equal(t, "*ledger.assertionError", e.Attempts[0].ErrorType)
	assert.Equal(t, "expected 200", e.Attempts[0].ErrorMessage)
	assert.Equal(t, "Unknown error", e.Attempts[1].ErrorMessage)
}

func TestLedger_AllIsASnapshot(t *testing.T) {
	l := New()
	l.RecordSuccess("a:1", 1)

	all := l.All()
	snap := all["a:1"]
	*snap.PassedOnAttempt = 99
	snap.Attempts[0].Status = "mutated"

	e, _ := l.Get("a:1")
	assert.Equal(t, 1, *e.PassedOnAttempt)
	assert.Equal(t, StatusPassed, e.Attempts[0].Status)
}

func TestLedger_Clear(t *testing.T) {
	l := New()
	l.RecordSuccess("a:1", 1)
	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.All())
}

func TestLedger_ConcurrentRecording(t *testing.T) {
	l := New()
	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := l.NextAttempt("a:1")
			l.RecordFailure("a:1", n, errors.New("x"))
		}()
	}
	wg.Wait()

	e, _ := l.Get("a:1")
	assert.Equal(t, workers, e.TotalAttempts)
	assert.Equal(t, workers, e.FailedAttempts())

	seen := map[int]bool{}
	for _, a := range e.Attempts {
		assert.False(t, seen[a.Number], "attempt %d reserved twice", a.Number)
		seen[a.Number] = true
	}
}

func TestRetry_PassesOnSecondAttempt(t *testing.T) {
	l := New()
	calls := 0
	out := Retry(context.Background(), l, "features/a.feature:3", 2, func(_ context.Context, attempt int) error {
		calls++
		if attempt == 1 {
			return errors.New("flaky")
		}
		return nil
	})

	assert.True(t, out.Passed)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, calls)
	assert.NoError(t, out.Err)
	require.NotNil(t, out.Entry.PassedOnAttempt)
	assert.Equal(t, 2, *out.Entry.PassedOnAttempt)
	assert.Equal(t, StatusPassed, out.Entry.FinalStatus)
	assert.Equal(t, 1, out.Entry.FailedAttempts())
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	l := New()
	out := Retry(context.Background(), l, "features/b.feature:9", 2, func(context.Context, int) error {
		return errors.New("always")
	})

	assert.False(t, out.Passed)
	assert.Equal(t, 3, out.Attempts)
	assert.EqualError(t, out.Err, "always")
	assert.Equal(t, StatusFailed, out.Entry.FinalStatus)
	assert.Nil(t, out.Entry.PassedOnAttempt)
	assert.Equal(t, 3, out.Entry.TotalAttempts)
	assert.Equal(t, 3, out.Entry.FailedAttempts())
}

func TestRetry_StopsOnCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	out := Retry(ctx, l, "a:1", 5, func(context.Context, int) error {
		cancel()
		return errors.New("fail")
	})

	assert.False(t, out.Passed)
	assert.Equal(t, 1, out.Attempts)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestRecorder_AccumulatesRounds(t *testing.T) {
	l := New()
	r := NewRecorder(l)
	failing := &result.Scenario{
		Identity: "a:1", Name: "A", Status: result.StatusFailed,
		Error: &result.ErrorDetail{Message: "X", Type: "AssertionError"},
	}
	r.RecordOutcome(failing)
	r.RecordOutcome(&result.Scenario{Identity: "a:1", Name: "A", Status: result.StatusPassed})

	e, _ := l.Get("a:1")
	assert.Equal(t, "A", e.Name)
	assert.Equal(t, 2, e.TotalAttempts)
	require.NotNil(t, e.PassedOnAttempt)
	assert.Equal(t, 2, *e.PassedOnAttempt)
	assert.Equal(t, "AssertionError", e.Attempts[0].ErrorType)
}

func TestSummary_RoundTrip(t *testing.T) {
	l := New()
	l.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	l.RecordFailure("b:9", 1, errors.New("E1"))
	l.RecordFailure("b:9", 2, errors.New("E2"))
	l.RecordFailure("a:3", 1, errors.New("flaky"))
	l.RecordSuccess("a:3", 2)
	l.RecordSuccess("c:1", 1)

	s := BuildSummary(l.All())
	assert.Equal(t, 3, s.TotalScenarios)
	assert.Equal(t, 1, s.ScenariosPassedFirstAttempt)
	assert.Equal(t, 1, s.ScenariosPassedAfterRetry)
	assert.Equal(t, 1, s.ScenariosStillFailing)
	assert.Equal(t, "a:3", s.Scenarios[0].Location, "sorted by location")

	path := filepath.Join(t.TempDir(), "nested", "rerun-summary.json")
	require.NoError(t, WriteSummary(path, s))

	got, err := ReadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.Equal(t, "E2", got.Scenarios[1].LastError)
}

func TestReadSummary_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadSummary(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrNoSummary)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = ReadSummary(bad)
	var mse *MalformedSummaryError
	require.ErrorAs(t, err, &mse)
	assert.Equal(t, bad, mse.Path)

	noLoc := filepath.Join(dir, "noloc.json")
	require.NoError(t, os.WriteFile(noLoc, []byte(`{"scenarios":[{"name":"x"}]}`), 0o644))
	_, err = ReadSummary(noLoc)
	assert.ErrorAs(t, err, &mse)
}

func TestReadSummary_NormalizesFinalStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scenarios":[{"location":"a:1","finalStatus":"passed","passedOnAttempt":2},{"location":"b:1","finalStatus":"weird"}]}`), 0o644))

	s, err := ReadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, s.Scenarios[0].FinalStatus)
	assert.Equal(t, StatusFailed, s.Scenarios[1].FinalStatus)
}

func TestSeed_ContinuesNumbering(t *testing.T) {
	two := 2
	s := &Summary{Scenarios: []SummaryScenario{
		{Name: "A", Location: "a:1", TotalAttempts: 2, FailedAttempts: 1, PassedOnAttempt: &two, FinalStatus: StatusPassed},
		{Name: "B", Location: "b:1", TotalAttempts: 1, FailedAttempts: 1, FinalStatus: StatusFailed, LastError: "E"},
	}}
	l := New()
	l.Seed(s)

	assert.Equal(t, 2, l.NextAttempt("b:1"))

	a, _ := l.Get("a:1")
	assert.True(t, a.Passed())
	assert.Equal(t, 1, a.FailedAttempts())

	*s.Scenarios[0].PassedOnAttempt = 7
	a, _ = l.Get("a:1")
	assert.Equal(t, 2, *a.PassedOnAttempt, "seed copies the summary")
}
