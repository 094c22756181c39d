package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/compatpipe/compatpipe/deploy"
	"github.com/compatpipe/compatpipe/harness"
	"github.com/compatpipe/compatpipe/history"
	"github.com/compatpipe/compatpipe/logging"
	"github.com/compatpipe/compatpipe/report"
)

const (
	defaultExecTimeout = 30 * time.Minute
	defaultMaxParallel = 4
)

// Pipeline wires the collaborators and configuration for pipeline runs.
// A Pipeline is safe for concurrent runs: everything before the publish
// stage is side-effect-free, and publishing is serialized per target by
// the gate.
type Pipeline struct {
	logger     *slog.Logger
	loggerHook logging.LoggerHook
	runner     harness.Runner
	summarizer Summarizer
	store      history.Store
	deployer   deploy.Deployer
	gate       *deploy.Gate

	cells        []MatrixCell
	subjects     []string
	snapshotName string
	targets      []string
	execTimeout  time.Duration
	maxParallel  int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSummarizer replaces the default document summarizer.
func WithSummarizer(s Summarizer) Option {
	return func(p *Pipeline) {
		p.summarizer = s
	}
}

// WithExecTimeout bounds each matrix cell's harness execution.
func WithExecTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.execTimeout = d
	}
}

// WithMaxParallel bounds how many matrix cells execute at once.
func WithMaxParallel(n int64) Option {
	return func(p *Pipeline) {
		p.maxParallel = n
	}
}

// WithLoggerHook installs a hook that wraps the per-cell loggers,
// typically to capture each cell's logs for run status.
func WithLoggerHook(hook logging.LoggerHook) Option {
	return func(p *Pipeline) {
		p.loggerHook = hook
	}
}

// New creates a Pipeline.
func New(
	logger *slog.Logger,
	runner harness.Runner,
	store history.Store,
	deployer deploy.Deployer,
	gate *deploy.Gate,
	cells []MatrixCell,
	subjects []string,
	snapshotName string,
	targets []string,
	opts ...Option,
) (*Pipeline, error) {
	if runner == nil {
		return nil, errors.New("pipeline: harness runner is required")
	}
	if store == nil {
		return nil, errors.New("pipeline: history store is required")
	}
	if deployer == nil {
		return nil, errors.New("pipeline: deployer is required")
	}
	if gate == nil {
		return nil, errors.New("pipeline: publish gate is required")
	}
	if len(cells) == 0 {
		return nil, errors.New("pipeline: at least one matrix cell is required")
	}
	if snapshotName == "" {
		return nil, errors.New("pipeline: snapshot name is required")
	}

	p := &Pipeline{
		logger:       logger.With("component", "pipeline"),
		runner:       runner,
		summarizer:   DocumentSummarizer{},
		store:        store,
		deployer:     deployer,
		gate:         gate,
		cells:        cells,
		subjects:     subjects,
		snapshotName: snapshotName,
		targets:      targets,
		execTimeout:  defaultExecTimeout,
		maxParallel:  defaultMaxParallel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Keys returns the configured matrix keys in order.
func (p *Pipeline) Keys() []string {
	keys := make([]string, len(p.cells))
	for i, cell := range p.cells {
		keys[i] = cell.Key
	}
	return keys
}

// runState is the shared state the stages of one run read and write.
// Each stage writes only its own fields, and the graph's dependency
// edges order all access.
type runState struct {
	prior  *history.Snapshot
	cells  map[string]*cellResult
	fresh  map[string]history.Entry
	merged *history.Snapshot
}

// Run executes one end-to-end pipeline run. The returned status always
// describes what happened; the error is non-nil only for whole-run
// failures (an unrenderable merged report, or a publish failure).
// A publish superseded by a newer run is not an error.
func (p *Pipeline) Run(ctx context.Context, trigger Trigger) (*RunStatus, error) {
	return p.RunWithID(ctx, trigger, uuid.NewString())
}

// RunWithID is Run with a caller-supplied run identifier, so the caller
// can track the run while it is still in progress.
func (p *Pipeline) RunWithID(ctx context.Context, trigger Trigger, id string) (*RunStatus, error) {
	started := time.Now()
	status := &RunStatus{
		ID:        id,
		Trigger:   trigger,
		StartedAt: &started,
	}

	logger := p.logger.With("run_id", status.ID, "trigger", trigger)
	logger.Info("starting pipeline run", "cells", len(p.cells), "subjects", len(p.subjects))

	state := &runState{}
	superseded := false

	graph := NewGraph(logger)
	stages := []struct {
		name  string
		stage Stage
		deps  []string
	}{
		{"fetch-history", &fetchStage{pipeline: p, logger: logger, state: state}, nil},
		{"run-matrix", &matrixStage{pipeline: p, logger: logger, state: state}, []string{"fetch-history"}},
		{"validate", &validateStage{pipeline: p, logger: logger, state: state}, []string{"run-matrix"}},
		{"merge-history", &mergeStage{pipeline: p, logger: logger, state: state}, []string{"fetch-history", "validate"}},
		{"publish", &publishStage{pipeline: p, logger: logger, state: state, superseded: &superseded}, []string{"merge-history"}},
	}
	for _, s := range stages {
		if err := graph.AddStage(s.name, s.stage, s.deps...); err != nil {
			return status, err
		}
	}

	err := graph.Execute(ctx)

	ended := time.Now()
	status.EndedAt = &ended
	status.Cells = p.cellStatuses(state)
	status.Superseded = superseded
	status.Published = err == nil && !superseded
	status.Summary = p.runSummary(status, state)

	if err != nil {
		status.Error = err.Error()
		logger.Error("pipeline run failed", "error", err, "duration", ended.Sub(started))
		return status, err
	}

	logger.Info("pipeline run completed",
		"duration", ended.Sub(started),
		"published", status.Published,
		"superseded", status.Superseded,
		"partial_failure", status.PartialFailure(),
	)
	return status, nil
}

// cellStatuses derives the per-key status records from the fan-in
// results and the prior snapshot.
func (p *Pipeline) cellStatuses(state *runState) []CellStatus {
	statuses := make([]CellStatus, 0, len(p.cells))
	for _, cell := range p.cells {
		cs := CellStatus{Key: cell.Key}
		result := state.cells[cell.Key]
		if result != nil {
			cs.Duration = result.duration
		}

		if _, ok := state.fresh[cell.Key]; ok {
			cs.Outcome = CellFresh
		} else {
			if result != nil && result.err != nil {
				cs.FailureKind = result.kind
				cs.Error = result.err.Error()
			}
			if _, carried := state.prior.Entry(cell.Key); carried {
				cs.Outcome = CellCarried
			} else {
				cs.Outcome = CellFailed
			}
		}
		statuses = append(statuses, cs)
	}
	return statuses
}

// runSummary builds the human-readable per-run report: which keys
// failed, which were carried forward, and the per-key result summary.
func (p *Pipeline) runSummary(status *RunStatus, state *runState) string {
	var b strings.Builder
	for _, cs := range status.Cells {
		label := report.DialectShortname(cs.Key)
		switch cs.Outcome {
		case CellFresh:
			fmt.Fprintf(&b, "%s: ok\n", label)
			if result := state.cells[cs.Key]; result != nil && result.summary != "" {
				b.WriteString(indent(result.summary))
			}
		case CellCarried:
			fmt.Fprintf(&b, "%s: %s failure, carried forward from previous publication\n", label, cs.FailureKind)
		case CellFailed:
			fmt.Fprintf(&b, "%s: %s failure, no prior result to carry forward\n", label, cs.FailureKind)
		}
	}
	if status.Superseded {
		b.WriteString("publish superseded by a newer run\n")
	}
	return b.String()
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n") + "\n"
}
