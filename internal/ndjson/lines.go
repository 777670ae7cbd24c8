// Package ndjson splits newline-delimited input into lines on a background
// goroutine. A line longer than the limit is reported as oversized and its
// bytes are discarded, so one runaway line never ends the stream.
package ndjson

import (
	"bufio"
	"context"
	"errors"
	"io"
)

// MaxLineLen is the default limit for a single line.
const MaxLineLen = 4 * 1024 * 1024

// Line is one line of input, an oversized line marker, or a read error.
// Data never includes the line terminator.
type Line struct {
	Data     []byte
	Oversize bool
	Err      error
}

// Lines reads r until EOF, a read error, or ctx is done. Empty lines are
// dropped. The channel is closed when reading stops.
func Lines(ctx context.Context, r io.Reader, maxLen int) <-chan Line {
	if maxLen <= 0 {
		maxLen = MaxLineLen
	}
	out := make(chan Line)
	go func() {
		defer close(out)
		br := bufio.NewReaderSize(r, 64*1024)
		for {
			data, oversize, err := readLine(br, maxLen)
			if len(data) > 0 || oversize {
				if !send(ctx, out, Line{Data: data, Oversize: oversize}) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					send(ctx, out, Line{Err: err})
				}
				return
			}
		}
	}()
	return out
}

// readLine assembles one line from ReadLine fragments. Once the line passes
// maxLen the fragments are consumed but not kept.
func readLine(br *bufio.Reader, maxLen int) ([]byte, bool, error) {
	var buf []byte
	oversize := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return buf, oversize, err
		}
		if !oversize {
			if len(buf)+len(chunk) > maxLen {
				oversize = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			return buf, oversize, nil
		}
	}
}

func send(ctx context.Context, out chan<- Line, l Line) bool {
	select {
	case out <- l:
		return true
	case <-ctx.Done():
		return false
	}
}
