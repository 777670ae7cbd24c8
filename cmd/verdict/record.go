package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dkoosis/verdict/internal/config"
	"github.com/dkoosis/verdict/pkg/ingest"
	"github.com/dkoosis/verdict/pkg/ledger"
	"github.com/dkoosis/verdict/pkg/render"
	"github.com/dkoosis/verdict/pkg/report"
)

func (a *app) recordCmd() *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "record [events...]",
		Short: "Record retry rounds into the retry summary and rerun manifest",
		Long: `Each input is one execution round ("-" or nothing for stdin). Every
scenario outcome is recorded as the next attempt of that scenario. With
--resume, numbering continues from the existing retry summary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRecord(cmd.Context(), args, resume)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "continue from the existing retry summary")
	return cmd
}

func (a *app) runRecord(ctx context.Context, inputs []string, resume bool) error {
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}
	led := ledger.New()
	if resume {
		prior, err := ledger.ReadSummary(a.cfg.SummaryPath())
		switch {
		case err == nil:
			led.Seed(prior)
			a.log.Debug("resuming retry summary", zap.Int("scenarios", len(prior.Scenarios)))
		case errors.Is(err, ledger.ErrNoSummary):
			a.log.Debug("nothing to resume", zap.String("path", a.cfg.SummaryPath()))
		default:
			return fail(exitError, err)
		}
	}

	rec := ledger.NewRecorder(led)
	for _, in := range inputs {
		round := ingest.New(ingest.Options{Logger: a.log, Metrics: a.metrics, Recorder: rec})
		if err := a.readEvents(ctx, in, round.Handle); err != nil {
			return fail(exitError, err)
		}
	}

	summary := ledger.BuildSummary(led.All())
	summaryPath := a.cfg.Path(config.SummaryFile)
	manifestPath := a.cfg.Path(config.ManifestFile)

	err := report.NewPublisher(a.log, a.metrics).Publish(ctx, report.Artifacts{
		Summary:     summary,
		SummaryPath: summaryPath,
	})
	if err == nil {
		if werr := report.WriteFileAtomic(manifestPath, report.SummaryManifest(summary)); werr != nil {
			a.metrics.WriteError(report.ArtifactManifest)
			err = &report.WriteError{Artifact: report.ArtifactManifest, Path: manifestPath, Err: werr}
		}
	}
	a.writeMetrics()
	if err != nil {
		fmt.Fprintln(a.stdout, render.WriteFailure(err))
		return fail(exitError, nil)
	}

	fmt.Fprintf(a.stdout, "%d scenarios: %d passed first attempt, %d passed after retry, %d still failing\n",
		summary.TotalScenarios, summary.ScenariosPassedFirstAttempt,
		summary.ScenariosPassedAfterRetry, summary.ScenariosStillFailing)
	if summary.ScenariosStillFailing > 0 {
		return fail(exitFailures, nil)
	}
	return nil
}
