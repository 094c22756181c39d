// Package pipeline implements the report pipeline core: a small stage
// graph (fetch-history, run-matrix, validate, merge-history, publish),
// the per-dialect matrix fan-out, and the run lifecycle around them.
package pipeline

import "context"

// Stage is a single step in the pipeline graph.
//
// Init is called before any stage executes and should validate the
// stage's wiring. Execute performs the work and must handle context
// cancellation.
type Stage interface {
	Init() error
	Execute(ctx context.Context) error
}

// StageState is the execution state of a stage in the graph.
type StageState int

const (
	// NotStarted indicates the stage has not begun execution.
	NotStarted StageState = iota

	// Pending indicates the stage is waiting on its dependencies.
	Pending

	// Running indicates the stage is currently executing.
	Running

	// Completed indicates the stage finished execution; check the
	// result's Error field for success or failure.
	Completed

	// Skipped indicates the stage never ran because a dependency
	// failed or the run was cancelled.
	Skipped
)

// String returns a human-readable representation of the StageState.
func (s StageState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// StageResult is the outcome of one stage's execution.
type StageResult struct {
	State StageState

	// Error holds the stage's execution error, or for Skipped stages
	// the reason the stage never ran.
	Error error
}

// IsSuccess returns true if the stage ran to completion without error.
func (r *StageResult) IsSuccess() bool {
	return r.State == Completed && r.Error == nil
}
