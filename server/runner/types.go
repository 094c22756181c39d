package runner

import (
	"time"

	"github.com/compatpipe/compatpipe/logging"
	"github.com/compatpipe/compatpipe/pipeline"
)

// ActiveRun describes a pipeline run that is still in progress.
type ActiveRun struct {
	// ID is the run identifier, stable from start to finish.
	ID string `json:"id"`
	// Trigger records what provoked the run.
	Trigger pipeline.Trigger `json:"trigger"`
	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`
}

// RunRecord is one completed run as persisted in the state store: the
// run's status plus the per-cell logs captured while it ran.
type RunRecord struct {
	pipeline.RunStatus
	// CellLogs holds the captured log entries keyed by matrix key.
	CellLogs map[string][]logging.LogEntry `json:"cell_logs,omitempty"`
}
