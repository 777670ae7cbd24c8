package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dkoosis/verdict/internal/detect"
	"github.com/dkoosis/verdict/pkg/event"
	"github.com/dkoosis/verdict/pkg/testjson"
)

var (
	errNoInput      = errors.New("no input")
	errUnrecognized = errors.New("unrecognized input (want lifecycle NDJSON or go test -json)")
)

// readEvents streams the events in name ("-" for stdin) to fn, translating
// go test -json when that is what the first line looks like.
func (a *app) readEvents(ctx context.Context, name string, fn func(event.Event)) error {
	label := name
	var r io.Reader = a.stdin
	if name == "-" {
		label = "stdin"
	} else {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("opening events: %w", err)
		}
		defer f.Close()
		r = f
	}

	br := bufio.NewReaderSize(r, detect.SniffLen)
	first := peekLine(br)
	if len(bytes.TrimSpace(first)) == 0 {
		return fmt.Errorf("%s: %w", label, errNoInput)
	}

	var (
		malformed int
		err       error
	)
	format := detect.Sniff(first)
	switch format {
	case detect.Lifecycle:
		malformed, err = event.Stream(ctx, br, fn)
	case detect.GoTestJSON:
		malformed, err = testjson.Translate(ctx, br, fn)
	default:
		return fmt.Errorf("%s: %w", label, errUnrecognized)
	}
	a.log.Debug("input read", zap.String("input", label), zap.Stringer("format", format))
	if malformed > 0 {
		a.metrics.Malformed(malformed)
		a.log.Warn("malformed lines skipped", zap.String("input", label), zap.Int("count", malformed))
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("reading %s: %w", label, err)
		}
		a.log.Warn("input read failed; reporting events received so far",
			zap.String("input", label), zap.Error(err))
	}
	return nil
}

// peekLine returns the buffered input up to and including the first
// non-blank line, without consuming it. It stops early at EOF or when the
// buffer is full.
func peekLine(br *bufio.Reader) []byte {
	n := 1
	for {
		b, err := br.Peek(n)
		if err != nil || bytes.IndexByte(bytes.TrimLeft(b, " \t\r\n"), '\n') >= 0 {
			return b
		}
		n = max(br.Buffered(), n) + 1
	}
}

// isTTY reports whether w is a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// termSize returns the terminal dimensions for w, defaulting to 80x24.
func termSize(w io.Writer) (width, height int) {
	width, height = 80, 24
	if f, ok := w.(*os.File); ok {
		if tw, th, err := term.GetSize(int(f.Fd())); err == nil {
			if tw > 0 {
				width = tw
			}
			if th > 0 {
				height = th
			}
		}
	}
	return width, height
}
