package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/compatpipe/compatpipe/pipeline"
)

// RunReporter records pipeline run outcomes as metrics. It works with
// either registry mode: scraped from the server, or pushed after a
// one-shot CLI run.
type RunReporter struct {
	runsTotal       CounterVec
	runDuration     Gauge
	cellOutcomes    CounterVec
	cellDuration    GaugeVec
	publishedRuns   Counter
	supersededRuns  Counter
	lastRunUnixtime Gauge
}

// NewRunReporter registers the run metrics with the given registry.
func NewRunReporter(reg Registry) (*RunReporter, error) {
	r := &RunReporter{}

	var err error
	if r.runsTotal, err = reg.NewCounterVec(prometheus.CounterOpts{
		Name: "runs_total",
		Help: "Pipeline runs by trigger and result.",
	}, []string{"trigger", "result"}); err != nil {
		return nil, fmt.Errorf("registering runs_total: %w", err)
	}

	if r.runDuration, err = reg.NewGauge(prometheus.GaugeOpts{
		Name: "run_duration_seconds",
		Help: "Duration of the most recent pipeline run.",
	}); err != nil {
		return nil, fmt.Errorf("registering run_duration_seconds: %w", err)
	}

	if r.cellOutcomes, err = reg.NewCounterVec(prometheus.CounterOpts{
		Name: "cell_outcomes_total",
		Help: "Matrix cell outcomes by dialect and outcome.",
	}, []string{"dialect", "outcome"}); err != nil {
		return nil, fmt.Errorf("registering cell_outcomes_total: %w", err)
	}

	if r.cellDuration, err = reg.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cell_duration_seconds",
		Help: "Duration of the most recent execution per matrix cell.",
	}, []string{"dialect"}); err != nil {
		return nil, fmt.Errorf("registering cell_duration_seconds: %w", err)
	}

	if r.publishedRuns, err = reg.NewCounter(prometheus.CounterOpts{
		Name: "published_runs_total",
		Help: "Runs whose merged snapshot was published.",
	}); err != nil {
		return nil, fmt.Errorf("registering published_runs_total: %w", err)
	}

	if r.supersededRuns, err = reg.NewCounter(prometheus.CounterOpts{
		Name: "superseded_runs_total",
		Help: "Runs whose publish was cancelled by a newer run.",
	}); err != nil {
		return nil, fmt.Errorf("registering superseded_runs_total: %w", err)
	}

	if r.lastRunUnixtime, err = reg.NewGauge(prometheus.GaugeOpts{
		Name: "last_run_timestamp_seconds",
		Help: "Unix time the most recent run finished.",
	}); err != nil {
		return nil, fmt.Errorf("registering last_run_timestamp_seconds: %w", err)
	}

	return r, nil
}

// Report records one completed run.
func (r *RunReporter) Report(status *pipeline.RunStatus) {
	r.runsTotal.With(prometheus.Labels{
		"trigger": string(status.Trigger),
		"result":  runResult(status),
	}).Inc()

	if status.StartedAt != nil && status.EndedAt != nil {
		r.runDuration.Set(status.EndedAt.Sub(*status.StartedAt).Seconds())
		r.lastRunUnixtime.Set(float64(status.EndedAt.Unix()))
	}

	for _, cell := range status.Cells {
		r.cellOutcomes.With(prometheus.Labels{
			"dialect": cell.Key,
			"outcome": string(cell.Outcome),
		}).Inc()
		if cell.Duration > 0 {
			r.cellDuration.With(prometheus.Labels{
				"dialect": cell.Key,
			}).Set(cell.Duration.Seconds())
		}
	}

	if status.Published {
		r.publishedRuns.Inc()
	}
	if status.Superseded {
		r.supersededRuns.Inc()
	}
}

func runResult(status *pipeline.RunStatus) string {
	switch {
	case status.Error != "":
		return "failed"
	case status.Superseded:
		return "superseded"
	default:
		return "published"
	}
}
