package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dkoosis/verdict/internal/config"
	"github.com/dkoosis/verdict/pkg/event"
	"github.com/dkoosis/verdict/pkg/ingest"
	"github.com/dkoosis/verdict/pkg/ledger"
	"github.com/dkoosis/verdict/pkg/reconcile"
	"github.com/dkoosis/verdict/pkg/render"
	"github.com/dkoosis/verdict/pkg/report"
	"github.com/dkoosis/verdict/pkg/result"
	"github.com/dkoosis/verdict/pkg/stream"
)

func (a *app) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [events...]",
		Short: "Aggregate a run, reconcile it against retries and publish the report",
		Long: `Reads the primary run from the first input ("-" or nothing for stdin).
Further inputs are retry rounds: their outcomes reconcile the primary run.
With a single input the retry summary in the output directory, if any, is
used instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReport(cmd.Context(), args)
		},
	}
	cmd.Flags().Bool("no-reconcile", false, "report raw results without filtering failures that passed on retry")
	cmd.Flags().Bool(config.KeyHTML, true, "also write the HTML summary")
	return cmd
}

func (a *app) runReport(ctx context.Context, inputs []string) error {
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}
	cfg := a.cfg

	led := ledger.New()
	rec := ledger.NewRecorder(led)
	primary := ingest.New(ingest.Options{
		Logger:   a.log,
		Metrics:  a.metrics,
		Recorder: rec,
		Run: result.Run{
			ID:          uuid.NewString(),
			Environment: cfg.Environment,
			Build:       cfg.ResultBuild(),
			Host:        hostInfo(),
		},
	})

	var progress *stream.Progress
	if a.consoleFormat() == render.FormatTerminal && isTTY(a.stdout) {
		w, h := termSize(a.stdout)
		progress = stream.NewProgress(a.stdout, w, h, render.ProgressStyle(a.theme()))
	}
	handle := func(e event.Event) {
		primary.Handle(e)
		if progress != nil {
			event.Dispatch(progress, e)
		}
	}
	if err := a.readEvents(ctx, inputs[0], handle); err != nil {
		return fail(exitError, err)
	}
	if !primary.Finished() {
		a.log.Warn("run-finished never received; reporting what arrived")
	}
	if open := primary.Unfinished(); len(open) > 0 {
		a.log.Warn("scenarios never finished", zap.Int("count", len(open)), zap.Strings("identities", open))
	}

	// Retry rounds only feed the ledger; their hierarchies are discarded.
	for _, in := range inputs[1:] {
		round := ingest.New(ingest.Options{Logger: a.log, Recorder: rec})
		if err := a.readEvents(ctx, in, round.Handle); err != nil {
			return fail(exitError, err)
		}
	}

	outcomes, summary, retryEnabled := a.outcomes(led, len(inputs) > 1)

	run, features := primary.Snapshot()
	rc := reconcile.New(a.log, a.metrics)
	rc.Enabled = cfg.Reconcile
	stats := rc.Apply(features, outcomes)
	a.log.Info("reconciled",
		zap.Int("reclassified", stats.Reclassified),
		zap.Int("still_failing", stats.StillFailing),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int64("correlation_misses", primary.Misses()))

	rep := report.Build(run, features, report.Options{
		RetryEnabled: retryEnabled,
		Reconciled:   retryEnabled && cfg.Reconcile,
		Outcomes:     outcomes,
	})
	a.metrics.Report(rep.Summary.PassRate, run.Duration)

	artifacts := report.Artifacts{
		Report:       rep,
		ReportPath:   cfg.Path(config.ReportFile),
		ManifestPath: cfg.Path(config.ManifestFile),
	}
	if cfg.HTML {
		artifacts.HTMLPath = cfg.Path(config.HTMLFile)
	}
	if summary != nil {
		artifacts.Summary = summary
		artifacts.SummaryPath = cfg.Path(config.SummaryFile)
	}
	pubErr := report.NewPublisher(a.log, a.metrics).Publish(ctx, artifacts)

	width, _ := termSize(a.stdout)
	fmt.Fprint(a.stdout, render.New(a.consoleFormat(), a.theme(), width).Render(rep))
	a.writeMetrics()

	if pubErr != nil {
		fmt.Fprintln(a.stdout, render.WriteFailure(pubErr))
		return fail(exitError, nil)
	}
	if rep.Failed() {
		return fail(exitFailures, nil)
	}
	return nil
}

// outcomes picks the retry history to reconcile against: the ledger when
// retry rounds were supplied, otherwise a persisted summary. A missing or
// unreadable summary means no reconciliation. The returned summary is
// non-nil only when it was built here and should be published.
func (a *app) outcomes(led *ledger.Ledger, rounds bool) (reconcile.OutcomeSet, *ledger.Summary, bool) {
	if rounds {
		entries := led.All()
		return reconcile.FromLedger(entries), ledger.BuildSummary(entries), true
	}

	path := a.cfg.SummaryPath()
	s, err := ledger.ReadSummary(path)
	var malformed *ledger.MalformedSummaryError
	switch {
	case err == nil:
		a.log.Debug("retry summary loaded", zap.String("path", path), zap.Int("scenarios", len(s.Scenarios)))
		return reconcile.FromSummary(s), nil, true
	case errors.Is(err, ledger.ErrNoSummary):
		a.log.Debug("no retry summary; reporting raw results", zap.String("path", path))
	case errors.As(err, &malformed):
		a.log.Warn("retry summary unusable; reporting raw results", zap.String("path", path), zap.Error(err))
	default:
		a.log.Warn("retry summary unreadable; reporting raw results", zap.String("path", path), zap.Error(err))
	}
	return reconcile.OutcomeSet{}, nil, false
}

// consoleFormat resolves "auto" against the output: styled on a terminal,
// plain tables otherwise.
func (a *app) consoleFormat() string {
	if a.cfg.Format != config.DefaultFormat {
		return a.cfg.Format
	}
	if isTTY(a.stdout) {
		return render.FormatTerminal
	}
	return render.FormatPlain
}

func hostInfo() result.Host {
	name, _ := os.Hostname()
	return result.Host{
		Hostname:  name,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
	}
}
