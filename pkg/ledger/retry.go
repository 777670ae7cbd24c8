package ledger

import (
	"context"
)

// Outcome is the result of a bounded retry loop.
type Outcome struct {
	Identity string
	// Passed is true if any attempt succeeded.
	Passed bool
	// Attempts is the number of attempts actually made.
	Attempts int
	// Err is the last attempt's error when every attempt failed, or the
	// context error if the loop was cut short.
	Err   error
	Entry Entry
}

// AttemptFunc executes one attempt of a scenario. attempt is 1-based.
type AttemptFunc func(ctx context.Context, attempt int) error

// Retry runs fn up to maxRetries+1 times, stopping at the first success.
// Every attempt is recorded in l: RecordAttempt first, then exactly one of
// RecordSuccess or RecordFailure. Cancelling ctx stops further attempts.
func Retry(ctx context.Context, l *Ledger, id string, maxRetries int, fn AttemptFunc) Outcome {
	if maxRetries < 0 {
		maxRetries = 0
	}
	out := Outcome{Identity: id}
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			out.Err = err
			break
		}
		l.RecordAttempt(id, attempt)
		out.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			l.RecordSuccess(id, attempt)
			out.Passed = true
			out.Err = nil
			break
		}
		l.RecordFailure(id, attempt, err)
		out.Err = err
	}
	out.Entry, _ = l.Get(id)
	return out
}
