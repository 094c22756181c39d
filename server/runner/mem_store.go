package runner

import (
	"sync"

	"github.com/compatpipe/compatpipe/logging"
)

// MemoryStore keeps run history in memory only (no persistence).
type MemoryStore struct {
	mu   sync.Mutex
	runs []RunRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make([]RunRecord, 0),
	}
}

// History returns all completed runs, most recent first.
func (s *MemoryStore) History() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]RunRecord, len(s.runs))
	copy(result, s.runs)
	return result
}

// Logs returns the per-cell logs for a specific run.
func (s *MemoryStore) Logs(id string) (map[string][]logging.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, run := range s.runs {
		if run.ID == id {
			return run.CellLogs, nil
		}
	}
	return nil, ErrRunNotFound
}

// Save stores a run in memory.
func (s *MemoryStore) Save(record RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Prepend to keep most recent first
	s.runs = append([]RunRecord{record}, s.runs...)
	return nil
}
