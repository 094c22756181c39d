// Package history holds the durable artifact model for published
// compatibility reports: a named snapshot of the latest per-dialect
// report set, with exactly one generation of lookback embedded.
package history

import (
	"github.com/compatpipe/compatpipe/report"
)

// Entry is the published material for one matrix key: the raw report
// document plus its derived badges. Both are carried opaquely.
type Entry struct {
	Report []byte          `json:"report"`
	Badges report.BadgeSet `json:"badges,omitempty"`
}

// Snapshot is one generation of published history. Entries are keyed by
// matrix key (dialect URI). Previous, when set, is the superseded
// generation with its own lookback stripped: a snapshot never embeds
// more than one level of history, and never itself.
type Snapshot struct {
	Entries  map[string]Entry `json:"entries"`
	Previous *Snapshot        `json:"previous,omitempty"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Entries: make(map[string]Entry)}
}

// Entry returns the entry for the given key, if present.
func (s *Snapshot) Entry(key string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	e, ok := s.Entries[key]
	return e, ok
}

// Depth returns the length of the embedded previous chain: 0 for a
// fresh snapshot, 1 after a normal merge.
func (s *Snapshot) Depth() int {
	depth := 0
	for p := s.Previous; p != nil; p = p.Previous {
		depth++
	}
	return depth
}

// WithoutPrevious returns a copy of the snapshot with its lookback
// removed. Entries are shared, not copied; snapshots are never mutated
// after construction.
func (s *Snapshot) WithoutPrevious() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{Entries: s.Entries}
}
