package pipeline

import "time"

// Trigger records what provoked a run. Trigger source carries no
// semantic difference; it is provenance for logs and status only.
type Trigger string

const (
	TriggerRelease  Trigger = "release"
	TriggerChain    Trigger = "chain"
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
)

// FailureKind classifies how a matrix cell failed.
type FailureKind string

const (
	// FailureExecution means the external test tool crashed, timed
	// out, or exhausted resources.
	FailureExecution FailureKind = "execution"

	// FailureSummary means the tool produced a document but its badge
	// and summary derivation failed, typically a truncated run.
	FailureSummary FailureKind = "summary"

	// FailureValidation means the produced document was structurally
	// invalid or unsummarizable and was excluded from history.
	FailureValidation FailureKind = "validation"
)

// CellOutcome describes how one matrix key ended up in this run.
type CellOutcome string

const (
	// CellFresh means the run produced a valid document for the key.
	CellFresh CellOutcome = "fresh"

	// CellCarried means the run failed for the key and the prior
	// snapshot's entry was carried forward unchanged.
	CellCarried CellOutcome = "carried"

	// CellFailed means the run failed for the key and no prior entry
	// existed to fall back to.
	CellFailed CellOutcome = "failed"
)

// CellStatus is the per-key record in a run's status.
type CellStatus struct {
	Key         string        `json:"key"`
	Outcome     CellOutcome   `json:"outcome"`
	FailureKind FailureKind   `json:"failure_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// RunStatus is the record of one end-to-end pipeline run. It owns no
// persistent state; the merged snapshot it produced lives in the
// history store.
type RunStatus struct {
	ID        string     `json:"id"`
	Trigger   Trigger    `json:"trigger"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Cells holds the per-key outcomes in matrix order.
	Cells []CellStatus `json:"cells,omitempty"`

	// Published is true once the merged snapshot reached the store
	// and the deployment collaborator accepted it.
	Published bool `json:"published"`

	// Superseded is true when this run's publish was cancelled by a
	// newer run. It is the intended single-flight outcome for the
	// older run, not a failure.
	Superseded bool `json:"superseded,omitempty"`

	// Summary is the human-readable per-run report: which keys
	// failed, which were carried forward from history.
	Summary string `json:"summary,omitempty"`

	// Error is set when the run as a whole failed.
	Error string `json:"error,omitempty"`
}

// PartialFailure reports whether some, but not all, cells failed.
func (s *RunStatus) PartialFailure() bool {
	failed := 0
	for _, cell := range s.Cells {
		if cell.Outcome != CellFresh {
			failed++
		}
	}
	return failed > 0 && failed < len(s.Cells)
}
