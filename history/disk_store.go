package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// DiskStore persists snapshots as JSON files in a directory, one file
// per snapshot name. Publishes write to a temp file and rename into
// place so an interrupted publish never leaves a readable partial
// snapshot.
type DiskStore struct {
	dir    string
	logger *slog.Logger
}

// NewDiskStore creates a disk-backed store rooted at dir, creating the
// directory if needed.
func NewDiskStore(dir string, logger *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &DiskStore{dir: dir, logger: logger}, nil
}

// Fetch returns the snapshot stored under name, or ErrNotFound if none
// has been published yet.
func (s *DiskStore) Fetch(_ context.Context, name string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot %q: %w", name, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %q: %w", name, err)
	}
	return &snap, nil
}

// Publish atomically replaces the snapshot stored under name.
func (s *DiskStore) Publish(_ context.Context, name string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	path := s.path(name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace snapshot %q: %w", name, err)
	}

	s.logger.Debug("published snapshot", "name", name, "path", path, "size", len(data))
	return nil
}

func (s *DiskStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}
