// Package stream shows live progress on a terminal while lifecycle events are
// being ingested.
package stream

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dkoosis/verdict/pkg/event"
	"github.com/dkoosis/verdict/pkg/result"
)

// LineKind identifies the type of output line for styling.
type LineKind int

const (
	KindPass LineKind = iota
	KindFail
	KindSkip
	KindUndefined
	KindOutput
	KindSeparator
)

// StyleFunc formats a line with colors or symbols. A nil StyleFunc leaves
// lines unstyled.
type StyleFunc func(kind LineKind, text string) string

// active tracks one running scenario for the footer.
type active struct {
	name    string
	feature string
	started time.Time
	steps   int
	current string
}

// Progress is an event.Handler that prints one line per finished scenario,
// keeps a footer of running scenarios and prints a PASS/FAIL line when the
// run finishes. It is safe for concurrent use.
type Progress struct {
	mu    sync.Mutex
	tw    *termWriter
	style StyleFunc
	now   func() time.Time

	running map[string]*active // by identity
	handles map[string]string  // handle -> identity
	order   []string

	passed, failed, skipped, undefined int
	runStart                           time.Time
	done                               bool
}

var _ event.Handler = (*Progress)(nil)

// NewProgress returns a Progress writing to out, sized to a width x height
// terminal.
func NewProgress(out io.Writer, width, height int, style StyleFunc) *Progress {
	return &Progress{
		tw:      newTermWriter(out, width, height),
		style:   style,
		now:     time.Now,
		running: make(map[string]*active),
		handles: make(map[string]string),
	}
}

func (p *Progress) styleLine(kind LineKind, text string) string {
	if p.style != nil {
		return p.style(kind, text)
	}
	return text
}

func (p *Progress) OnRunStarted(e event.RunStarted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runStart = e.Timestamp
	if p.runStart.IsZero() {
		p.runStart = p.now()
	}
}

func (p *Progress) OnRunFinished(e event.RunFinished) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := e.TotalDuration
	if d == 0 && !e.Timestamp.IsZero() && !p.runStart.IsZero() {
		d = e.Timestamp.Sub(p.runStart)
	}
	p.finish(d)
}

func (p *Progress) OnScenarioStarted(e event.ScenarioStarted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := e.Identity
	if _, ok := p.running[id]; !ok {
		p.order = append(p.order, id)
	}
	started := e.Timestamp
	if started.IsZero() {
		started = p.now()
	}
	p.running[id] = &active{name: e.Name, feature: result.FeatureName(e.FeatureSource), started: started}
	handle := e.Handle
	if handle == "" {
		handle = id
	}
	p.handles[handle] = id
	p.redrawFooter()
}

func (p *Progress) OnScenarioFinished(e event.ScenarioFinished) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sc, ok := p.running[e.Identity]
	name := e.Identity
	feature := ""
	if ok {
		if sc.name != "" {
			name = sc.name
		}
		feature = sc.feature
		delete(p.running, e.Identity)
	}

	var kind LineKind
	var symbol string
	switch e.Status.Bucket() {
	case result.BucketPassed:
		p.passed++
		kind, symbol = KindPass, "·"
	case result.BucketFailed:
		p.failed++
		kind, symbol = KindFail, "✗"
	case result.BucketSkipped:
		p.skipped++
		kind, symbol = KindSkip, "○"
	default:
		p.undefined++
		kind, symbol = KindUndefined, "?"
	}

	line := fmt.Sprintf("  %-16s %s %-40s %6.2fs", feature, symbol, name, e.Duration.Seconds())
	p.tw.EraseFooter()
	p.tw.PrintLine(p.styleLine(kind, line))
	if kind == KindFail && e.Error != nil && e.Error.Message != "" {
		for _, l := range strings.Split(e.Error.Message, "\n") {
			p.tw.PrintLine(p.styleLine(KindOutput, "             "+l))
		}
	}
	p.redrawFooter()
}

func (p *Progress) OnStepStarted(e event.StepStarted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sc := p.owner(e.OwnerHint); sc != nil {
		sc.steps++
		sc.current = strings.TrimSpace(e.Keyword + e.Text)
	}
	p.redrawFooter()
}

func (p *Progress) OnStepFinished(event.StepFinished) {}

// owner resolves a step's owner for display. With no usable hint it picks the
// most recently started running scenario.
func (p *Progress) owner(hint string) *active {
	if id, ok := p.handles[hint]; ok {
		if sc, ok := p.running[id]; ok {
			return sc
		}
	}
	var latest *active
	for _, sc := range p.running {
		if latest == nil || sc.started.After(latest.started) {
			latest = sc
		}
	}
	return latest
}

func (p *Progress) redrawFooter() {
	if p.done || len(p.running) == 0 {
		return
	}
	p.tw.EraseFooter()

	ids := p.order[:0]
	for _, id := range p.order {
		if _, ok := p.running[id]; ok {
			ids = append(ids, id)
		}
	}
	p.order = ids
	sort.SliceStable(ids, func(i, j int) bool {
		return p.running[ids[i]].started.Before(p.running[ids[j]].started)
	})

	lines := []string{"  ─── running " + strings.Repeat("─", 30)}
	now := p.now()
	for _, id := range ids {
		sc := p.running[id]
		lines = append(lines, fmt.Sprintf("  %-30s [%d] %-30s %5.1fs",
			sc.name, sc.steps, sc.current, now.Sub(sc.started).Seconds()))
	}
	p.tw.DrawFooter(lines)
}

func (p *Progress) finish(d time.Duration) {
	if p.done {
		return
	}
	p.done = true
	p.tw.EraseFooter()
	p.tw.PrintLine(p.styleLine(KindSeparator, "  "+strings.Repeat("─", 45)))

	total := p.passed + p.failed + p.skipped + p.undefined
	if p.failed > 0 {
		p.tw.PrintLine(p.styleLine(KindFail, fmt.Sprintf("  FAIL (%.1fs) %d/%d scenarios failed",
			d.Seconds(), p.failed, total)))
		return
	}
	p.tw.PrintLine(p.styleLine(KindPass, fmt.Sprintf("  PASS (%.1fs) %d scenarios, %d skipped, %d undefined",
		d.Seconds(), total, p.skipped, p.undefined)))
}

// Failed reports whether any scenario finished in the failed bucket.
func (p *Progress) Failed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed > 0
}
