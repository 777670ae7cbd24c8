package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dkoosis/verdict/internal/ndjson"
	"github.com/dkoosis/verdict/pkg/result"
)

// ErrUnknownKind is returned by Decode for an unrecognized "kind" field.
var ErrUnknownKind = errors.New("unknown event kind")

// wireEvent is the NDJSON envelope shared by all six kinds.
type wireEvent struct {
	Kind            Kind                `json:"kind"`
	Timestamp       time.Time           `json:"timestamp"`
	Identity        string              `json:"identity,omitempty"`
	Handle          string              `json:"handle,omitempty"`
	Name            string              `json:"name,omitempty"`
	FeatureSource   string              `json:"featureSource,omitempty"`
	Line            int                 `json:"line,omitempty"`
	Tags            []string            `json:"tags,omitempty"`
	OwnerHint       string              `json:"ownerHint,omitempty"`
	Keyword         string              `json:"keyword,omitempty"`
	Text            string              `json:"text,omitempty"`
	Status          string              `json:"status,omitempty"`
	DurationMs      int64               `json:"durationMs,omitempty"`
	TotalDurationMs int64               `json:"totalDurationMs,omitempty"`
	Error           *result.ErrorDetail `json:"error,omitempty"`
}

// Decode parses one NDJSON line into an Event.
func Decode(line []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return w.toEvent()
}

func (w wireEvent) toEvent() (Event, error) {
	switch w.Kind {
	case KindRunStarted:
		return RunStarted{Timestamp: w.Timestamp}, nil
	case KindRunFinished:
		return RunFinished{Timestamp: w.Timestamp, TotalDuration: millis(w.TotalDurationMs)}, nil
	case KindScenarioStarted:
		id := w.Identity
		if id == "" {
			if w.FeatureSource == "" {
				return nil, fmt.Errorf("%s: identity or featureSource required", w.Kind)
			}
			id = result.Identity(w.FeatureSource, w.Line)
		}
		src, line := w.FeatureSource, w.Line
		if src == "" {
			src, line = result.SplitIdentity(id)
		}
		handle := w.Handle
		if handle == "" {
			handle = id
		}
		return ScenarioStarted{
			Identity:      id,
			Handle:        handle,
			Name:          w.Name,
			FeatureSource: src,
			Line:          line,
			Tags:          w.Tags,
			Timestamp:     w.Timestamp,
		}, nil
	case KindScenarioFinished:
		if w.Identity == "" {
			return nil, fmt.Errorf("%s: identity required", w.Kind)
		}
		return ScenarioFinished{
			Identity:  w.Identity,
			Status:    result.ParseStatus(w.Status),
			Timestamp: w.Timestamp,
			Duration:  millis(w.DurationMs),
			Error:     nonEmpty(w.Error),
		}, nil
	case KindStepStarted:
		return StepStarted{
			OwnerHint: w.OwnerHint,
			Keyword:   w.Keyword,
			Text:      w.Text,
			Line:      w.Line,
			Timestamp: w.Timestamp,
		}, nil
	case KindStepFinished:
		return StepFinished{
			OwnerHint: w.OwnerHint,
			Text:      w.Text,
			Status:    result.ParseStatus(w.Status),
			Timestamp: w.Timestamp,
			Duration:  millis(w.DurationMs),
			Error:     nonEmpty(w.Error),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, w.Kind)
	}
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func nonEmpty(e *result.ErrorDetail) *result.ErrorDetail {
	if e.Empty() {
		return nil
	}
	return e
}

// ProcessFunc is called for each decoded event.
type ProcessFunc func(Event)

// Stream decodes NDJSON events from r and calls fn for each one, stopping at
// EOF or when ctx is cancelled. Lines that fail to decode, including lines
// over ndjson.MaxLineLen, are counted and skipped; a single bad line never
// aborts ingestion. Blank lines are ignored.
//
// On cancel, Stream closes r if it implements io.Closer to unblock the
// reader goroutine. Otherwise the caller must close the underlying reader.
func Stream(ctx context.Context, r io.Reader, fn ProcessFunc) (malformed int, err error) {
	lines := ndjson.Lines(ctx, r, ndjson.MaxLineLen)
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
				return malformed, fmt.Errorf("reading events: %w", l.Err)
			}
			if l.Oversize {
				malformed++
				continue
			}
			if len(bytes.TrimSpace(l.Data)) == 0 {
				continue
			}
			ev, err := Decode(l.Data)
			if err != nil {
				malformed++
				continue
			}
			fn(ev)
		}
	}
}
