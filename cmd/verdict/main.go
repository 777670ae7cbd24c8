// verdict aggregates test-engine lifecycle events into a reconciled report.
//
// Usage:
//
//	engine --format ndjson | verdict report
//	verdict record round1.ndjson round2.ndjson
//	go test -json ./... | verdict report --format plain
//	verdict view target/verdict/report.json
//
// Accepts two input formats, detected from the first line:
//   - lifecycle NDJSON (run/scenario/step events)
//   - go test -json
//
// Exit codes: 0 all scenarios pass after reconciliation, 1 failures remain,
// 2 usage, input or write errors.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailures = 1
	exitError    = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// exitErr carries an exit code through cobra. A nil err means the code is
// the whole message.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitErr) Unwrap() error { return e.err }

func fail(code int, err error) error {
	return &exitErr{code: code, err: err}
}

// run executes the CLI and returns the exit code, so tests can drive it
// without os.Exit.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.log != nil {
		_ = a.log.Sync()
	}
	return exitCode(err, stderr)
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	var ee *exitErr
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "verdict: %v\n", ee.err)
		}
		return ee.code
	}
	// Usage errors from cobra: unknown flags, wrong arg counts.
	fmt.Fprintf(stderr, "verdict: %v\n", err)
	return exitError
}
