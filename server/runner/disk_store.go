package runner

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/compatpipe/compatpipe/logging"
)

// DiskStore persists run history to disk as JSON files, one per run.
type DiskStore struct {
	dir      string
	logger   *slog.Logger
	maxCount int

	mu   sync.Mutex
	runs []RunRecord
}

// NewDiskStore creates a new disk-backed store.
// The directory is created if it doesn't exist, and existing runs are loaded.
func NewDiskStore(dir string, maxCount int, logger *slog.Logger) (*DiskStore, error) {
	s := &DiskStore{
		dir:      dir,
		logger:   logger,
		maxCount: maxCount,
		runs:     make([]RunRecord, 0),
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	runs, err := s.load()
	if err != nil {
		logger.Warn("failed to load existing runs", "error", err)
		// Continue without existing data
	} else {
		s.runs = runs
	}

	return s, nil
}

// History returns all completed runs, most recent first.
func (s *DiskStore) History() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]RunRecord, len(s.runs))
	copy(result, s.runs)
	return result
}

// Logs returns the per-cell logs for a specific run.
func (s *DiskStore) Logs(id string) (map[string][]logging.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, run := range s.runs {
		if run.ID == id {
			return run.CellLogs, nil
		}
	}
	return nil, ErrRunNotFound
}

// Save persists a run to disk and updates the in-memory representation.
func (s *DiskStore) Save(record RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		return fmt.Errorf("cannot save run without an id")
	}

	path := filepath.Join(s.dir, record.ID+".json")

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}

	// Prepend to keep most recent first
	s.runs = append([]RunRecord{record}, s.runs...)

	// Enforce max count limit, removing the oldest run's file too
	if len(s.runs) > s.maxCount {
		oldest := s.runs[len(s.runs)-1]
		s.runs = s.runs[:s.maxCount]
		oldPath := filepath.Join(s.dir, oldest.ID+".json")
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove expired run file", "path", oldPath, "error", err)
		}
	}

	s.logger.Debug("saved run to disk", "path", path)
	return nil
}

// Reload re-loads all runs from disk.
func (s *DiskStore) Reload() error {
	runs, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = runs

	return nil
}

// load loads all runs from disk.
func (s *DiskStore) load() ([]RunRecord, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run directory: %w", err)
	}

	runs := make([]RunRecord, 0, len(files))

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		path := filepath.Join(s.dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("failed to read run file", "file", path, "error", err)
			continue
		}

		var run RunRecord
		if err := json.Unmarshal(data, &run); err != nil {
			s.logger.Warn("failed to parse run file", "file", path, "error", err)
			continue
		}

		runs = append(runs, run)
	}

	// Sort by start time descending (most recent first)
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt == nil {
			return false
		}
		if runs[j].StartedAt == nil {
			return true
		}
		return runs[i].StartedAt.After(*runs[j].StartedAt)
	})

	if len(runs) > s.maxCount {
		runs = runs[:s.maxCount]
	}

	s.logger.Info("loaded run history from disk", "count", len(runs))

	return runs, nil
}
