package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/compatpipe/compatpipe/history"
)

// DirDeployer materializes the site bundle into a local directory, one
// subdirectory per target. The bundle is staged next to the target and
// swapped in with a rename so readers never see a half-written site.
type DirDeployer struct {
	root   string
	logger *slog.Logger
}

// NewDirDeployer creates a deployer rooted at root.
func NewDirDeployer(root string, logger *slog.Logger) (*DirDeployer, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create deploy root: %w", err)
	}
	return &DirDeployer{root: root, logger: logger.With("component", "dir_deployer")}, nil
}

// Deploy writes the snapshot's site bundle under root/target.
func (d *DirDeployer) Deploy(ctx context.Context, target string, snap *history.Snapshot) error {
	files := BundleFiles(snap)

	staging, err := os.MkdirTemp(d.root, "."+target+".staging.*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	for name, data := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(staging, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(name), err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	dest := filepath.Join(d.root, target)
	old := dest + ".old"
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("failed to clear previous site: %w", err)
	}
	if _, err := os.Stat(dest); err == nil {
		if err := os.Rename(dest, old); err != nil {
			return fmt.Errorf("failed to move previous site aside: %w", err)
		}
	}
	if err := os.Rename(staging, dest); err != nil {
		return fmt.Errorf("failed to activate site: %w", err)
	}
	os.RemoveAll(old)

	d.logger.Info("site deployed", "target", target, "files", len(files), "path", dest)
	return nil
}
