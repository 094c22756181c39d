// Package runner manages pipeline run execution for the compatpipe server.
//
// The runner handles:
//   - Starting pipeline runs in the background
//   - Tracking runs that are still in progress
//   - Maintaining history of completed runs with their per-cell logs
//
// Each run creates a fresh pipeline from the current configuration,
// ensuring config changes take effect on the next run. Runs are allowed
// to overlap: ordering at the publish step is the pipeline's own
// single-flight concern, not the runner's.
//
// # Example
//
//	r := runner.New(logger, factory)
//
//	// Start a run
//	id, err := r.Trigger(pipeline.TriggerManual)
//	if err != nil {
//	    // Pipeline could not be assembled from the current config
//	}
//
//	// Check what is running
//	for _, run := range r.Active() {
//	    fmt.Printf("%s (%s) since %s\n", run.ID, run.Trigger, run.StartedAt)
//	}
//
//	// Get history
//	history := r.History() // Most recent first
package runner

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/compatpipe/compatpipe/logging"
	"github.com/compatpipe/compatpipe/pipeline"
)

// PipelineFactory assembles a pipeline for one run. It is invoked per
// run so configuration reloads take effect on the next run without
// interrupting any run in progress.
type PipelineFactory interface {
	// NewPipeline builds a pipeline whose per-cell loggers are wrapped
	// by the given hook.
	NewPipeline(hook logging.LoggerHook) (*pipeline.Pipeline, error)
}

// Reporter records completed runs, typically as metrics.
type Reporter interface {
	Report(*pipeline.RunStatus)
}

// Runner manages pipeline run execution.
type Runner struct {
	logger   *slog.Logger
	factory  PipelineFactory
	store    StateStore
	reporter Reporter

	mu     sync.Mutex
	active map[string]ActiveRun
}

// Option configures a Runner.
type Option func(*Runner)

// WithStateStore configures the runner to use the provided store for persistence.
func WithStateStore(store StateStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithReporter configures the runner to report completed runs.
func WithReporter(reporter Reporter) Option {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// New creates a new Runner.
func New(logger *slog.Logger, factory PipelineFactory, opts ...Option) *Runner {
	r := &Runner{
		logger:  logger,
		factory: factory,
		store:   NewMemoryStore(),
		active:  make(map[string]ActiveRun),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Trigger starts a pipeline run in the background and returns its id.
// It fails only when a pipeline cannot be assembled from the current
// configuration; run outcomes are reported through the run history.
func (r *Runner) Trigger(trigger pipeline.Trigger) (string, error) {
	collector := logging.NewLogCollector()
	hook := logging.NewCapturingLoggerHook(collector)

	p, err := r.factory.NewPipeline(hook)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()

	r.mu.Lock()
	r.active[id] = ActiveRun{
		ID:        id,
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
	r.mu.Unlock()

	r.logger.Info("starting pipeline run", "run_id", id, "trigger", trigger)

	go r.executeRun(p, id, trigger, collector)

	return id, nil
}

// Active returns the runs currently in progress, oldest first.
func (r *Runner) Active() []ActiveRun {
	r.mu.Lock()
	defer r.mu.Unlock()

	runs := make([]ActiveRun, 0, len(r.active))
	for _, run := range r.active {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs
}

// IsRunning returns true if any pipeline run is in progress.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active) > 0
}

// History returns the history of completed runs, most recent first.
func (r *Runner) History() []RunRecord {
	return r.store.History()
}

// Logs returns the per-cell logs captured during a completed run.
func (r *Runner) Logs(id string) (map[string][]logging.LogEntry, error) {
	return r.store.Logs(id)
}

// LastRun returns the most recently completed run, or nil if none.
func (r *Runner) LastRun() *pipeline.RunStatus {
	history := r.store.History()
	if len(history) == 0 {
		return nil
	}
	return &history[0].RunStatus
}

func (r *Runner) executeRun(p *pipeline.Pipeline, id string, trigger pipeline.Trigger, collector *logging.LogCollector) {
	status, err := p.RunWithID(context.Background(), trigger, id)

	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("pipeline run failed", "run_id", id, "error", err)
	}

	record := RunRecord{
		RunStatus: *status,
		CellLogs:  collector.GetAllLogs(),
	}
	if err := r.store.Save(record); err != nil {
		r.logger.Error("failed to save run to store", "run_id", id, "error", err)
	}

	if r.reporter != nil {
		r.reporter.Report(status)
	}
}
