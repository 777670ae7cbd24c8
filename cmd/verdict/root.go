package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dkoosis/verdict/internal/config"
	"github.com/dkoosis/verdict/internal/logging"
	"github.com/dkoosis/verdict/internal/metrics"
	"github.com/dkoosis/verdict/pkg/render"
)

// skipConfig marks commands that must work even with a broken config.
const skipConfig = "verdict/skip-config"

// app holds what every command shares once PersistentPreRunE has run.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configFile string
	cfg        *config.Config
	log        *zap.Logger
	metrics    *metrics.Metrics
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "verdict",
		Short:         "Aggregate test lifecycle events into a reconciled report",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./"+config.FileName+", then the user config dir)")
	pf.String(config.KeyOut, config.DefaultOut, "output directory for report, manifest and summaries")
	pf.String(config.KeyRetrySummary, "", "retry summary to reconcile against (default <out>/"+config.SummaryFile+")")
	pf.String(config.KeyEnvironment, "", "environment label recorded in the report")
	pf.String(config.KeyFormat, config.DefaultFormat, "console format: auto, terminal, plain, json")
	pf.String(config.KeyTheme, config.DefaultTheme, "terminal theme: default, orca, mono")
	pf.Bool(config.KeyNoColor, false, "disable colors")
	pf.String(config.KeyMetricsFile, "", "write prometheus metrics in textfile format to this path")
	pf.String(config.KeyLogLevel, config.DefaultLogLevel, "log level: debug, info, warn, error")
	pf.String(config.KeyLogFormat, config.DefaultLogFormat, "log format: console, json")

	root.AddCommand(
		a.reportCmd(),
		a.recordCmd(),
		a.viewCmd(),
		a.configCmd(),
		a.versionCmd(),
	)
	return root
}

// setup resolves configuration and builds the logger and metrics registry.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{File: a.configFile, Flags: cmd.Flags()})
	if err != nil {
		return fail(exitError, err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, a.stderr)
	if err != nil {
		return fail(exitError, err)
	}
	a.cfg = cfg
	a.log = log
	a.metrics = metrics.New()
	a.log.Debug("configuration resolved",
		zap.String("file", cfg.File),
		zap.String("out", cfg.Out),
		zap.String("format", cfg.Format))
	return nil
}

func (a *app) theme() render.Theme {
	return render.ThemeByName(a.cfg.Theme, a.cfg.NoColor)
}

// writeMetrics exports the registry when a metrics file is configured.
// Failures are logged; they never change the exit code.
func (a *app) writeMetrics() {
	if a.cfg.MetricsFile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.log.Warn("metrics export failed", zap.String("path", a.cfg.MetricsFile), zap.Error(err))
	}
}
