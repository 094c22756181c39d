package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/compatpipe/compatpipe/harness"
	"github.com/compatpipe/compatpipe/logging"
	"github.com/compatpipe/compatpipe/report"
)

// MatrixCell is one configured cell of the run matrix: a matrix key
// (dialect URI) and the suite location to execute for it.
type MatrixCell struct {
	Key      string
	SuiteURL string
}

// cellResult is the fan-in record for one matrix cell. A cell either
// produced a document (raw set, possibly with badges and summary) or
// failed with a classified error.
type cellResult struct {
	key      string
	raw      []byte
	badges   report.BadgeSet
	summary  string
	kind     FailureKind
	err      error
	duration time.Duration
}

// matrixRunner fans one harness execution out per matrix cell.
//
// Cells are fail-independent: one cell's crash, timeout, or bad output
// never cancels a sibling. Fan-in is total: run returns only after
// every cell has terminated.
type matrixRunner struct {
	logger      *slog.Logger
	loggerHook  logging.LoggerHook
	runner      harness.Runner
	summarizer  Summarizer
	subjects    []string
	timeout     time.Duration
	maxParallel int64
}

// cellLogger returns the logger for one cell, wrapped by the hook when
// one is configured so the cell's records can be captured.
func (m *matrixRunner) cellLogger(key string) *slog.Logger {
	logger := m.logger
	if m.loggerHook != nil {
		logger = m.loggerHook.LoggerForCell(logger, key)
	}
	return logger.With("key", key)
}

// run executes all cells and returns their results keyed by matrix key.
func (m *matrixRunner) run(ctx context.Context, cells []MatrixCell) map[string]*cellResult {
	sem := semaphore.NewWeighted(m.maxParallel)
	results := make(map[string]*cellResult, len(cells))

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, cell := range cells {
		wg.Add(1)
		go func(cell MatrixCell) {
			defer wg.Done()

			// Semaphore acquisition failing means the run context is
			// gone; record it as an execution failure like any other.
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				results[cell.Key] = &cellResult{key: cell.Key, kind: FailureExecution, err: err}
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			result := m.runCell(ctx, cell)

			mu.Lock()
			results[cell.Key] = result
			mu.Unlock()
		}(cell)
	}

	wg.Wait()
	return results
}

// runCell executes one cell: invoke the harness under the execution
// timeout, then derive badges and a human summary from the document.
// A summarization failure is a distinct failure mode from an execution
// failure: the document exists but is unusable, typically because the
// run was truncated.
func (m *matrixRunner) runCell(ctx context.Context, cell MatrixCell) *cellResult {
	logger := m.cellLogger(cell.Key)
	start := time.Now()

	cellCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	raw, err := m.runner.Run(cellCtx, m.subjects, cell.SuiteURL)
	if err != nil {
		logger.Error("matrix cell execution failed", "error", err, "duration", time.Since(start))
		return &cellResult{
			key:      cell.Key,
			kind:     FailureExecution,
			err:      fmt.Errorf("execution failed for %s: %w", cell.Key, err),
			duration: time.Since(start),
		}
	}

	badges, summary, err := m.summarizer.Summarize(raw)
	if err != nil {
		logger.Error("matrix cell summarization failed", "error", err, "duration", time.Since(start))
		return &cellResult{
			key:      cell.Key,
			raw:      raw,
			kind:     FailureSummary,
			err:      fmt.Errorf("summarization failed for %s: %w", cell.Key, err),
			duration: time.Since(start),
		}
	}

	logger.Info("matrix cell completed", "duration", time.Since(start))
	return &cellResult{
		key:      cell.Key,
		raw:      raw,
		badges:   badges,
		summary:  summary,
		duration: time.Since(start),
	}
}
