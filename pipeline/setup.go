package pipeline

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/compatpipe/compatpipe/config"
	"github.com/compatpipe/compatpipe/deploy"
	"github.com/compatpipe/compatpipe/harness"
	"github.com/compatpipe/compatpipe/history"
)

// FromConfig assembles a Pipeline from the application configuration.
// The gate is passed in by the caller so it can outlive config reloads:
// single-flight publishing only works if all runs share one gate.
func FromConfig(cfg *config.Config, logger *slog.Logger, gate *deploy.Gate, opts ...Option) (*Pipeline, error) {
	runner := harness.NewExecRunner(cfg.Harness.Command,
		harness.WithArgs(cfg.Harness.Args...),
		harness.WithLogger(logger),
	)

	store, err := storeFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	deployer, err := deployerFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	cells := make([]MatrixCell, len(cfg.Dialects))
	for i, d := range cfg.Dialects {
		cells[i] = MatrixCell{Key: d.URI, SuiteURL: d.Suite}
	}

	opts = append([]Option{
		WithExecTimeout(cfg.Harness.ExecTimeout),
		WithMaxParallel(cfg.Harness.MaxParallel),
	}, opts...)

	return New(logger, runner, store, deployer, gate,
		cells, cfg.Subjects, cfg.History.Name, cfg.Deploy.Targets, opts...)
}

func storeFromConfig(cfg *config.Config, logger *slog.Logger) (history.Store, error) {
	switch cfg.History.Store {
	case "disk":
		return history.NewDiskStore(cfg.History.Dir, logger)
	case "blob":
		return history.NewBlobStore(cfg.History.Blob, logger)
	default:
		return nil, fmt.Errorf("unknown history store %q", cfg.History.Store)
	}
}

func deployerFromConfig(cfg *config.Config, logger *slog.Logger) (deploy.Deployer, error) {
	switch cfg.Deploy.Backend {
	case "dir":
		return deploy.NewDirDeployer(cfg.Deploy.Dir, logger)
	case "ssh":
		key, err := os.ReadFile(cfg.Deploy.SSH.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading ssh key file: %w", err)
		}
		return deploy.NewSSHDeployer(
			cfg.Deploy.SSH.Host,
			cfg.Deploy.SSH.User,
			string(key),
			cfg.Deploy.SSH.RemoteRoot,
			logger,
		), nil
	default:
		return nil, fmt.Errorf("unknown deploy backend %q", cfg.Deploy.Backend)
	}
}
