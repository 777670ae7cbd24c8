// Package metrics exposes ingestion, reconciliation and publish counters on
// a private prometheus registry. A nil *Metrics is valid and records nothing,
// so library code never needs to check whether metrics are enabled.
package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "verdict"

// Correlation strategies as they appear in the strategy label.
const (
	StrategyExact    = "exact"
	StrategyFallback = "fallback"
	StrategyMiss     = "miss"
)

var nonLabelRegex = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// Metrics holds every collector the tool records into.
type Metrics struct {
	reg *prometheus.Registry

	eventsTotal       *prometheus.CounterVec
	malformedTotal    prometheus.Counter
	correlationsTotal *prometheus.CounterVec
	scenariosTotal    *prometheus.CounterVec
	reclassifiedTotal prometheus.Counter
	stillFailing      prometheus.Gauge
	passRate          prometheus.Gauge
	runDuration       prometheus.Gauge
	writeErrorsTotal  *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		eventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Lifecycle events ingested, by kind.",
		}, []string{"kind"}),
		malformedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_events_total",
			Help:      "Event lines that could not be decoded.",
		}),
		correlationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_correlations_total",
			Help:      "Step events resolved to a scenario, by strategy.",
		}, []string{"strategy"}),
		scenariosTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_finished_total",
			Help:      "Finished scenarios, by reported status.",
		}, []string{"status"}),
		reclassifiedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reclassified_total",
			Help:      "Failures reclassified as passed after retry.",
		}),
		stillFailing: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "still_failing",
			Help:      "Scenarios still failing after reconciliation.",
		}),
		passRate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pass_rate_percent",
			Help:      "Reconciled pass rate of the last report.",
		}),
		runDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the ingested run.",
		}),
		writeErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Artifact write failures, by artifact.",
		}, []string{"artifact"}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) Malformed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.malformedTotal.Add(float64(n))
}

func (m *Metrics) Correlation(strategy string) {
	if m == nil {
		return
	}
	m.correlationsTotal.WithLabelValues(strategy).Inc()
}

func (m *Metrics) ScenarioFinished(status string) {
	if m == nil {
		return
	}
	m.scenariosTotal.WithLabelValues(toLabel(status)).Inc()
}

// Reconciled records the outcome of one reconciliation pass.
func (m *Metrics) Reconciled(reclassified, stillFailing int) {
	if m == nil {
		return
	}
	m.reclassifiedTotal.Add(float64(reclassified))
	m.stillFailing.Set(float64(stillFailing))
}

// Report records headline figures of a built report.
func (m *Metrics) Report(passRate float64, d time.Duration) {
	if m == nil {
		return
	}
	m.passRate.Set(passRate)
	m.runDuration.Set(d.Seconds())
}

func (m *Metrics) WriteError(artifact string) {
	if m == nil {
		return
	}
	m.writeErrorsTotal.WithLabelValues(toLabel(artifact)).Inc()
}

// WriteTextfile exports every collector in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

// toLabel makes s safe to use as a label value.
func toLabel(s string) string {
	s = nonLabelRegex.ReplaceAllString(strings.ToLower(s), "_")
	if s == "" {
		return "unknown"
	}
	return s
}
