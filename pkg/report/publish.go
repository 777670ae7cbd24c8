package report

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dkoosis/verdict/internal/atomicfile"
	"github.com/dkoosis/verdict/internal/metrics"
	"github.com/dkoosis/verdict/pkg/ledger"
)

// Artifact names used in WriteError and logs.
const (
	ArtifactReport   = "report"
	ArtifactManifest = "rerun manifest"
	ArtifactSummary  = "retry summary"
	ArtifactHTML     = "html summary"
)

// WriteError reports an artifact that could not be published.
type WriteError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s to %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Artifacts names what to publish. Empty paths are skipped.
type Artifacts struct {
	Report       *Report
	Summary      *ledger.Summary
	ReportPath   string
	ManifestPath string
	SummaryPath  string
	HTMLPath     string
}

// Publisher writes artifacts atomically.
type Publisher struct {
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewPublisher returns a Publisher. log and m may be nil.
func NewPublisher(log *zap.Logger, m *metrics.Metrics) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{log: log, metrics: m}
}

// WriteFileAtomic writes data to path through a temp file in the same
// directory, creating missing parent directories. Readers see either the
// old file or the complete new one.
func WriteFileAtomic(path string, data []byte) error {
	return atomicfile.Write(path, data, 0o644)
}

// Publish writes every requested artifact concurrently. The first failure
// is returned as a *WriteError; the other writes still complete or fail on
// their own. Only cancellation of ctx stops writes that have not started.
func (p *Publisher) Publish(ctx context.Context, a Artifacts) error {
	var g errgroup.Group

	write := func(artifact, path string, render func() ([]byte, error)) {
		if path == "" {
			return
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return &WriteError{Artifact: artifact, Path: path, Err: err}
			}
			data, err := render()
			if err == nil {
				err = WriteFileAtomic(path, data)
			}
			if err != nil {
				p.metrics.WriteError(artifact)
				p.log.Error("artifact write failed",
					zap.String("artifact", artifact),
					zap.String("path", path),
					zap.Error(err))
				return &WriteError{Artifact: artifact, Path: path, Err: err}
			}
			p.log.Debug("artifact written", zap.String("artifact", artifact), zap.String("path", path))
			return nil
		})
	}

	if a.Report != nil {
		write(ArtifactReport, a.ReportPath, a.Report.Marshal)
		write(ArtifactManifest, a.ManifestPath, func() ([]byte, error) { return Manifest(a.Report), nil })
		write(ArtifactHTML, a.HTMLPath, func() ([]byte, error) { return RenderHTML(a.Report) })
	}
	if a.Summary != nil {
		write(ArtifactSummary, a.SummaryPath, a.Summary.Marshal)
	}
	return g.Wait()
}
