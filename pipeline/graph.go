package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Graph executes a set of named stages honoring explicit dependencies.
// Independent stages run concurrently; each stage waits on its
// dependencies' completion channels and is skipped if any of them
// failed. The graph is built once per run and never reused.
type Graph struct {
	logger *slog.Logger

	stages map[string]Stage
	deps   map[string][]string
	order  []string

	completion map[string]chan struct{}

	mu      sync.RWMutex
	results map[string]*StageResult
}

// NewGraph creates an empty stage graph.
func NewGraph(logger *slog.Logger) *Graph {
	return &Graph{
		logger:     logger.With("component", "graph"),
		stages:     make(map[string]Stage),
		deps:       make(map[string][]string),
		completion: make(map[string]chan struct{}),
		results:    make(map[string]*StageResult),
	}
}

// AddStage registers a stage under name, depending on the named stages.
// Returns an error on duplicate names.
func (g *Graph) AddStage(name string, stage Stage, deps ...string) error {
	if _, exists := g.stages[name]; exists {
		return fmt.Errorf("stage %q already exists", name)
	}
	g.stages[name] = stage
	g.deps[name] = deps
	g.order = append(g.order, name)
	g.results[name] = &StageResult{State: NotStarted}
	return nil
}

// Execute runs all stages to completion. After Execute returns every
// stage has a result: Completed (with or without error), Skipped (a
// dependency failed or the context was cancelled), or NotStarted (the
// graph itself failed validation). The first stage error is returned.
func (g *Graph) Execute(ctx context.Context) error {
	if len(g.stages) == 0 {
		g.logger.Info("no stages to execute")
		return nil
	}

	if err := g.validate(); err != nil {
		g.logger.Error("graph validation failed", "error", err)
		for name := range g.stages {
			g.results[name] = &StageResult{State: NotStarted, Error: fmt.Errorf("validation failed: %w", err)}
		}
		return err
	}

	for name, stage := range g.stages {
		if err := stage.Init(); err != nil {
			g.logger.Error("stage initialization failed", "stage", name, "error", err)
			return fmt.Errorf("stage %s initialization failed: %w", name, err)
		}
	}

	for name := range g.stages {
		g.completion[name] = make(chan struct{})
	}

	var wg sync.WaitGroup
	errorChan := make(chan error, len(g.stages))

	for _, name := range g.order {
		wg.Add(1)
		go g.runStage(ctx, name, g.stages[name], &wg, errorChan)
	}

	wg.Wait()
	close(errorChan)

	var errs []error
	for err := range errorChan {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		g.logger.Error("execution completed with errors", "error_count", len(errs))
		return errs[0]
	}
	return nil
}

// runStage waits for the stage's dependencies, executes it, and signals
// completion.
func (g *Graph) runStage(ctx context.Context, name string, stage Stage, wg *sync.WaitGroup, errorChan chan<- error) {
	defer wg.Done()
	defer close(g.completion[name])

	logger := g.logger.With("stage", name)
	g.setResult(name, &StageResult{State: Pending})

	for _, dep := range g.deps[name] {
		select {
		case <-ctx.Done():
			logger.Warn("stage cancelled", "error", ctx.Err())
			g.setResult(name, &StageResult{State: Skipped, Error: fmt.Errorf("cancelled: %w", ctx.Err())})
			errorChan <- fmt.Errorf("stage %s cancelled: %w", name, ctx.Err())
			return
		case <-g.completion[dep]:
			if depResult := g.Result(dep); !depResult.IsSuccess() {
				logger.Warn("dependency failed, skipping stage", "dependency", dep)
				g.setResult(name, &StageResult{
					State: Skipped,
					Error: fmt.Errorf("dependency %s failed: %w", dep, depResult.Error),
				})
				return
			}
		}
	}

	logger.Debug("dependencies satisfied, executing stage")
	g.setResult(name, &StageResult{State: Running})

	err := stage.Execute(ctx)
	g.setResult(name, &StageResult{State: Completed, Error: err})

	if err != nil {
		logger.Error("stage failed", "error", err)
		errorChan <- fmt.Errorf("stage %s failed: %w", name, err)
	} else {
		logger.Debug("stage completed")
	}
}

// validate checks that all dependencies exist and the graph is acyclic,
// using Kahn's algorithm.
func (g *Graph) validate() error {
	inDegree := make(map[string]int, len(g.stages))
	for name, deps := range g.deps {
		for _, dep := range deps {
			if _, exists := g.stages[dep]; !exists {
				return fmt.Errorf("stage %q depends on unknown stage %q", name, dep)
			}
		}
		inDegree[name] = len(deps)
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}

	processed := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		processed++

		for name, deps := range g.deps {
			for _, dep := range deps {
				if dep == current {
					inDegree[name]--
					if inDegree[name] == 0 {
						queue = append(queue, name)
					}
				}
			}
		}
	}

	if processed != len(g.stages) {
		return fmt.Errorf("circular dependency: only %d of %d stages reachable", processed, len(g.stages))
	}
	return nil
}

// Result returns the result for the named stage.
func (g *Graph) Result(name string) *StageResult {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.results[name]
}

// Results returns a copy of all stage results.
func (g *Graph) Results() map[string]*StageResult {
	g.mu.RLock()
	defer g.mu.RUnlock()
	results := make(map[string]*StageResult, len(g.results))
	for name, result := range g.results {
		results[name] = result
	}
	return results
}

func (g *Graph) setResult(name string, result *StageResult) {
	g.mu.Lock()
	g.results[name] = result
	g.mu.Unlock()
}
