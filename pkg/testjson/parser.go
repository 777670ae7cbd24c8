package testjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dkoosis/verdict/internal/ndjson"
)

// Stream parses go test -json events line by line and calls fn for each one.
// Stops on EOF or when ctx is cancelled. Returns the number of malformed lines
// skipped and any read error. A line over ndjson.MaxLineLen (a test printing
// a huge blob) counts as malformed.
//
// Cancellation: lines are read in a background goroutine. On context cancel,
// Stream closes r (if it implements io.Closer) to unblock the reader. If r
// does not implement io.Closer (e.g. *bufio.Reader), the caller must close the
// underlying reader externally to prevent a goroutine leak.
func Stream(ctx context.Context, r io.Reader, fn ProcessFunc) (int, error) {
	lines := ndjson.Lines(ctx, r, ndjson.MaxLineLen)

	var malformed int
	for {
		select {
		case <-ctx.Done():
			if c, ok := r.(io.Closer); ok {
				_ = c.Close()
			}
			return malformed, ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return malformed, nil
			}
			if l.Err != nil {
				return malformed, fmt.Errorf("reading test output: %w", l.Err)
			}
			if l.Oversize {
				malformed++
				continue
			}
			if len(bytes.TrimSpace(l.Data)) == 0 {
				continue
			}
			var event TestEvent
			if err := json.Unmarshal(l.Data, &event); err != nil {
				malformed++
				continue
			}
			fn(event)
		}
	}
}
