package runner

import (
	"errors"

	"github.com/compatpipe/compatpipe/logging"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

// StateStore manages persistence of completed run history.
type StateStore interface {
	// History returns all completed runs, most recent first.
	History() []RunRecord
	// Logs returns the per-cell logs for a specific run.
	// Returns ErrRunNotFound if the run id is unknown.
	Logs(id string) (map[string][]logging.LogEntry, error)
	// Save persists a completed run.
	Save(RunRecord) error
}
