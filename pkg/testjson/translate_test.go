package testjson

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/verdict/pkg/event"
	"github.com/dkoosis/verdict/pkg/ingest"
	"github.com/dkoosis/verdict/pkg/result"
)

func translate(t *testing.T, lines ...string) ([]event.Event, int) {
	t.Helper()
	var out []event.Event
	malformed, err := Translate(context.Background(), strings.NewReader(strings.Join(lines, "\n")+"\n"), func(e event.Event) {
		out = append(out, e)
	})
	require.NoError(t, err)
	return out, malformed
}

func kinds(events []event.Event) []event.Kind {
	ks := make([]event.Kind, len(events))
	for i, e := range events {
		ks[i] = e.Kind()
	}
	return ks
}

func TestTranslate_TestsBecomeScenarios(t *testing.T) {
	events, malformed := translate(t,
		`{"Time":"2024-01-01T00:00:00Z","Action":"start","Package":"example.com/pkg"}`,
		`{"Time":"2024-01-01T00:00:00Z","Action":"run","Package":"example.com/pkg","Test":"TestA"}`,
		`{"Time":"2024-01-01T00:00:01Z","Action":"pass","Package":"example.com/pkg","Test":"TestA","Elapsed":1}`,
		`{"Time":"2024-01-01T00:00:01Z","Action":"run","Package":"example.com/pkg","Test":"TestB"}`,
		`{"Time":"2024-01-01T00:00:01Z","Action":"output","Package":"example.com/pkg","Test":"TestB","Output":"=== RUN   TestB\n"}`,
		`{"Time":"2024-01-01T00:00:01Z","Action":"output","Package":"example.com/pkg","Test":"TestB","Output":"    b_test.go:9: want 2, got 3\n"}`,
		`{"Time":"2024-01-01T00:00:02Z","Action":"output","Package":"example.com/pkg","Test":"TestB","Output":"--- FAIL: TestB (1.00s)\n"}`,
		`{"Time":"2024-01-01T00:00:02Z","Action":"fail","Package":"example.com/pkg","Test":"TestB","Elapsed":1}`,
		`{"Time":"2024-01-01T00:00:02Z","Action":"fail","Package":"example.com/pkg","Elapsed":2}`,
	)
	assert.Zero(t, malformed)
	assert.Equal(t, []event.Kind{
		event.KindRunStarted,
		event.KindScenarioStarted, event.KindScenarioFinished,
		event.KindScenarioStarted, event.KindScenarioFinished,
		event.KindRunFinished,
	}, kinds(events))

	started := events[1].(event.ScenarioStarted)
	assert.Equal(t, "example.com/pkg:TestA", started.Identity)
	assert.Equal(t, started.Identity, started.Handle)
	assert.Equal(t, "example.com/pkg", started.FeatureSource)

	failed := events[4].(event.ScenarioFinished)
	assert.Equal(t, result.StatusFailed, failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "b_test.go:9: want 2, got 3", failed.Error.Message)

	finished := events[5].(event.RunFinished)
	assert.Equal(t, "2s", finished.TotalDuration.String())
}

func TestTranslate_SubtestsBecomeSteps(t *testing.T) {
	events, _ := translate(t,
		`{"Action":"run","Package":"p","Test":"TestTable"}`,
		`{"Action":"run","Package":"p","Test":"TestTable/empty"}`,
		`{"Action":"output","Package":"p","Test":"TestTable/empty","Output":"    t_test.go:4: boom\n"}`,
		`{"Action":"fail","Package":"p","Test":"TestTable/empty","Elapsed":0.01}`,
		`{"Action":"fail","Package":"p","Test":"TestTable","Elapsed":0.02}`,
	)
	require.Len(t, events, 6)

	step := events[2].(event.StepStarted)
	assert.Equal(t, "p:TestTable", step.OwnerHint)
	assert.Equal(t, "empty", step.Text)

	done := events[3].(event.StepFinished)
	assert.Equal(t, "empty", done.Text)
	assert.Equal(t, result.StatusFailed, done.Status)
	require.NotNil(t, done.Error)
	assert.Equal(t, "t_test.go:4: boom", done.Error.Message)

	// The parent's own output buffer is empty, so it falls back to a generic message.
	parent := events[4].(event.ScenarioFinished)
	require.NotNil(t, parent.Error)
	assert.Equal(t, "test failed", parent.Error.Message)
}

func TestTranslate_ParallelSubtestsKeepTheirOwnOutcome(t *testing.T) {
	events, _ := translate(t,
		`{"Action":"run","Package":"p","Test":"TestPar"}`,
		`{"Action":"run","Package":"p","Test":"TestPar/A"}`,
		`{"Action":"pause","Package":"p","Test":"TestPar/A"}`,
		`{"Action":"run","Package":"p","Test":"TestPar/B"}`,
		`{"Action":"pause","Package":"p","Test":"TestPar/B"}`,
		`{"Action":"cont","Package":"p","Test":"TestPar/A"}`,
		`{"Action":"cont","Package":"p","Test":"TestPar/B"}`,
		`{"Action":"output","Package":"p","Test":"TestPar/A","Output":"    a_test.go:9: boom in A\n"}`,
		`{"Action":"fail","Package":"p","Test":"TestPar/A","Elapsed":0.01}`,
		`{"Action":"pass","Package":"p","Test":"TestPar/B","Elapsed":0.01}`,
		`{"Action":"fail","Package":"p","Test":"TestPar","Elapsed":0.02}`,
	)

	in := ingest.New(ingest.Options{})
	for _, e := range events {
		in.Handle(e)
	}
	_, features := in.Snapshot()
	require.Len(t, features, 1)
	require.Len(t, features[0].Failures, 1)
	sc := features[0].Failures[0]

	require.Len(t, sc.Steps, 2)
	assert.Equal(t, "A", sc.Steps[0].Text)
	assert.Equal(t, result.StatusFailed, sc.Steps[0].Status)
	require.NotNil(t, sc.Steps[0].Error)
	assert.Equal(t, "a_test.go:9: boom in A", sc.Steps[0].Error.Message)
	assert.Equal(t, "B", sc.Steps[1].Text)
	assert.Equal(t, result.StatusPassed, sc.Steps[1].Status)
	assert.Nil(t, sc.Steps[1].Error)

	require.NotNil(t, sc.FailingStep)
	assert.Equal(t, "A", sc.FailingStep.Text)
	assert.Zero(t, in.Misses())
}

func TestTranslate_BuildFailureBecomesPackageScenario(t *testing.T) {
	events, _ := translate(t,
		`{"Action":"output","Package":"p","Output":"# p\n"}`,
		`{"Action":"output","Package":"p","Output":"./x.go:3:1: undefined: y\n"}`,
		`{"Action":"fail","Package":"p","Elapsed":0}`,
	)
	require.Len(t, events, 4)
	sc := events[2].(event.ScenarioFinished)
	assert.Equal(t, "p:(package)", sc.Identity)
	assert.Equal(t, "package failure", sc.Error.Type)
	assert.Contains(t, sc.Error.Message, "undefined: y")
}

func TestTranslate_OpenTestsFailAtEOF(t *testing.T) {
	events, _ := translate(t,
		`{"Action":"run","Package":"p","Test":"TestHang"}`,
		`{"Action":"output","Package":"p","Test":"TestHang","Output":"panic: test timed out after 1s\n"}`,
	)
	require.Len(t, events, 4)
	sc := events[2].(event.ScenarioFinished)
	assert.Equal(t, "p:TestHang", sc.Identity)
	assert.Equal(t, result.StatusFailed, sc.Status)
	assert.Equal(t, "incomplete", sc.Error.Type)
}

func TestTranslate_SkipAndMalformed(t *testing.T) {
	events, malformed := translate(t,
		`{"Action":"run","Package":"p","Test":"TestSkip"}`,
		`garbage`,
		`{"Action":"skip","Package":"p","Test":"TestSkip"}`,
	)
	assert.Equal(t, 1, malformed)
	sc := events[2].(event.ScenarioFinished)
	assert.Equal(t, result.StatusSkipped, sc.Status)
	assert.Nil(t, sc.Error)
}

func TestTranslate_EmptyInputEmitsNothing(t *testing.T) {
	events, malformed := translate(t)
	assert.Empty(t, events)
	assert.Zero(t, malformed)
}
