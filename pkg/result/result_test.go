package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"PASSED":    StatusPassed,
		"pass":      StatusPassed,
		"Failed":    StatusFailed,
		"skip":      StatusSkipped,
		"pending":   StatusPending,
		"AMBIGUOUS": StatusAmbiguous,
		"unused":    StatusUnused,
		"":          StatusUndefined,
		"bogus":     StatusUndefined,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseStatus(in), "ParseStatus(%q)", in)
	}
}

func TestStatusBucket_EveryStatusHasExactlyOneBucket(t *testing.T) {
	assert.Equal(t, BucketPassed, StatusPassed.Bucket())
	assert.Equal(t, BucketFailed, StatusFailed.Bucket())
	assert.Equal(t, BucketFailed, StatusAmbiguous.Bucket())
	assert.Equal(t, BucketSkipped, StatusSkipped.Bucket())
	assert.Equal(t, BucketSkipped, StatusUnused.Bucket())
	assert.Equal(t, BucketUndefined, StatusUndefined.Bucket())
	assert.Equal(t, BucketUndefined, StatusPending.Bucket())
}

func TestFeatureFoldUnfold(t *testing.T) {
	f := &Feature{Name: "booking"}
	a := &Scenario{Identity: "a:1", Status: StatusFailed}
	b := &Scenario{Identity: "b:2", Status: StatusSkipped}
	f.Fold(a)
	f.Fold(b)
	require.Len(t, f.Failures, 1)
	assert.Equal(t, 2, f.Total)
	assert.Equal(t, 1, f.Failed)
	assert.Equal(t, 1, f.Skipped)

	f.Unfold("a:1", StatusFailed)
	assert.Equal(t, 1, f.Total)
	assert.Equal(t, 0, f.Failed)
	assert.Empty(t, f.Failures)

	a2 := &Scenario{Identity: "a:1", Status: StatusPassed}
	f.Fold(a2)
	assert.Equal(t, 2, f.Total)
	assert.Equal(t, 1, f.Passed)
	assert.Equal(t, f.Total, f.Passed+f.Failed+f.Skipped+f.Undefined)
}

func TestIdentityRoundTrip(t *testing.T) {
	id := Identity("features/booking.feature", 12)
	assert.Equal(t, "features/booking.feature:12", id)

	src, line := SplitIdentity(id)
	assert.Equal(t, "features/booking.feature", src)
	assert.Equal(t, 12, line)

	src, line = SplitIdentity("example.com/pkg:TestA")
	assert.Equal(t, "example.com/pkg:TestA", src)
	assert.Zero(t, line)
}

func TestFeatureName(t *testing.T) {
	assert.Equal(t, "booking", FeatureName("file:///src/test/resources/features/booking.feature"))
	assert.Equal(t, "auth", FeatureName(`features\auth.feature`))
	assert.Equal(t, "handler", FeatureName("example.com/pkg/handler"))
	assert.Equal(t, "unknown", FeatureName(""))
}

func TestScenarioClone_IsDeep(t *testing.T) {
	orig := &Scenario{
		Identity: "a:1",
		Tags:     []string{"@smoke"},
		Steps:    []Step{{Text: "x", Error: &ErrorDetail{Message: "boom"}}},
		Retry:    &RetryAnnotation{TotalAttempts: 2},
	}
	orig.FailingStep = &orig.Steps[0]

	c := orig.Clone()
	c.Tags[0] = "@changed"
	c.Steps[0].Error.Message = "changed"
	c.Retry.TotalAttempts = 9

	assert.Equal(t, "@smoke", orig.Tags[0])
	assert.Equal(t, "boom", orig.Steps[0].Error.Message)
	assert.Equal(t, 2, orig.Retry.TotalAttempts)
	assert.Equal(t, "boom", c.FailingStep.Error.Message)
}
