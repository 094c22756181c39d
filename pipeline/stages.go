package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/compatpipe/compatpipe/deploy"
	"github.com/compatpipe/compatpipe/history"
	"github.com/compatpipe/compatpipe/report"
)

// fetchStage loads the prior published snapshot. History is
// best-effort: absence (first-ever run) and fetch errors both degrade
// to an empty baseline and never fail the run.
type fetchStage struct {
	pipeline *Pipeline
	logger   *slog.Logger
	state    *runState
}

func (s *fetchStage) Init() error { return nil }

func (s *fetchStage) Execute(ctx context.Context) error {
	prior, err := s.pipeline.store.Fetch(ctx, s.pipeline.snapshotName)
	switch {
	case errors.Is(err, history.ErrNotFound):
		s.logger.Info("no prior history, starting from empty baseline", "name", s.pipeline.snapshotName)
	case err != nil:
		s.logger.Warn("history fetch failed, proceeding with empty baseline", "name", s.pipeline.snapshotName, "error", err)
	default:
		s.state.prior = prior
		s.logger.Info("fetched prior history", "name", s.pipeline.snapshotName,
			"entries", len(prior.Entries), "depth", prior.Depth())
	}
	return nil
}

// matrixStage fans one harness execution out per matrix cell and waits
// for all of them. Individual cell failures are recorded in the fan-in
// results, never returned: cells are fail-independent.
type matrixStage struct {
	pipeline *Pipeline
	logger   *slog.Logger
	state    *runState
}

func (s *matrixStage) Init() error {
	if s.pipeline.execTimeout <= 0 {
		return errors.New("execution timeout must be positive")
	}
	if s.pipeline.maxParallel <= 0 {
		return errors.New("max parallel must be positive")
	}
	return nil
}

func (s *matrixStage) Execute(ctx context.Context) error {
	m := &matrixRunner{
		logger:      s.logger.With("component", "matrix"),
		loggerHook:  s.pipeline.loggerHook,
		runner:      s.pipeline.runner,
		summarizer:  s.pipeline.summarizer,
		subjects:    s.pipeline.subjects,
		timeout:     s.pipeline.execTimeout,
		maxParallel: s.pipeline.maxParallel,
	}
	s.state.cells = m.run(ctx, s.pipeline.cells)
	return nil
}

// validateStage checks each produced document is well-formed and
// non-degenerate before it may enter history. An invalid document
// excludes that key's result from promotion; it does not abort the run.
type validateStage struct {
	pipeline *Pipeline
	logger   *slog.Logger
	state    *runState
}

func (s *validateStage) Init() error { return nil }

func (s *validateStage) Execute(_ context.Context) error {
	s.state.fresh = make(map[string]history.Entry)

	for key, result := range s.state.cells {
		if result.err != nil {
			continue
		}
		if _, err := report.Validate(result.raw); err != nil {
			s.logger.Warn("report failed validation, excluding from history", "key", key, "reason", err)
			result.kind = FailureValidation
			result.err = fmt.Errorf("validation failed for %s: %w", key, err)
			continue
		}
		s.state.fresh[key] = history.Entry{Report: result.raw, Badges: result.badges}
	}
	return nil
}

// mergeStage combines the surviving fresh entries with the prior
// snapshot and verifies the merged result can still be rendered for
// human review. An unrenderable merged report is the one validation
// failure that blocks publication.
type mergeStage struct {
	pipeline *Pipeline
	logger   *slog.Logger
	state    *runState
}

func (s *mergeStage) Init() error { return nil }

func (s *mergeStage) Execute(_ context.Context) error {
	prior := s.state.prior
	if prior != nil && prior.Depth() > 1 {
		// Should be impossible given the store's atomicity; repaired
		// by the unconditional strip in Merge.
		s.logger.Warn("prior snapshot over-nested, normalizing", "depth", prior.Depth())
	}

	s.state.merged = history.Merge(s.pipeline.Keys(), prior, s.state.fresh)

	carried := history.CarriedKeys(s.pipeline.Keys(), prior, s.state.fresh)
	s.logger.Info("merged history",
		"entries", len(s.state.merged.Entries),
		"fresh", len(s.state.fresh),
		"carried", carried,
	)

	for key, entry := range s.state.merged.Entries {
		if _, err := s.pipeline.summarizer.Render(entry.Report, "markdown"); err != nil {
			return fmt.Errorf("merged report for %s cannot be rendered for review: %w", key, err)
		}
	}
	return nil
}

// publishStage persists the merged snapshot and triggers deployment,
// serialized per target by the gate. A publish superseded by a newer
// run finishes cleanly; a deployment failure fails the run, with the
// next scheduled run as the retry mechanism.
type publishStage struct {
	pipeline   *Pipeline
	logger     *slog.Logger
	state      *runState
	superseded *bool
}

func (s *publishStage) Init() error { return nil }

func (s *publishStage) Execute(ctx context.Context) error {
	if err := s.pipeline.store.Publish(ctx, s.pipeline.snapshotName, s.state.merged); err != nil {
		return fmt.Errorf("history publish failed: %w", err)
	}

	for _, target := range s.pipeline.targets {
		if err := s.deployTarget(ctx, target); err != nil {
			if errors.Is(err, deploy.ErrSuperseded) {
				s.logger.Info("publish superseded by newer run", "target", target)
				*s.superseded = true
				return nil
			}
			return fmt.Errorf("deploy to %s failed: %w", target, err)
		}
	}
	return nil
}

func (s *publishStage) deployTarget(ctx context.Context, target string) error {
	deployCtx, release, err := s.pipeline.gate.Begin(ctx, target)
	if err != nil {
		return err
	}
	defer release()

	if err := s.pipeline.deployer.Deploy(deployCtx, target, s.state.merged); err != nil {
		if deploy.Superseded(deployCtx) {
			return deploy.ErrSuperseded
		}
		return err
	}
	return nil
}
