// Package config loads and validates the compatpipe configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/compatpipe/compatpipe/history"
)

const (
	// Default harness settings
	defaultExecTimeout = 30 * time.Minute
	defaultMaxParallel = 4

	// Default history settings
	defaultHistoryStore = "disk"
	defaultSnapshotName = "compat-report"
	defaultHistoryDir   = "history"

	// Default deploy settings
	defaultDeployBackend = "dir"
	defaultDeployDir     = "site"
	defaultDrainTimeout  = 2 * time.Minute

	// Default monitoring settings
	defaultMetricsPrefix = "compatpipe"
	defaultJobName       = "compatpipe"

	// Default logging settings
	defaultLogLevel  = "info"
	defaultLogFormat = "json"
	defaultLogOutput = "stdout"

	// Default server settings
	defaultListenAddr = ":8080"
	defaultMaxRuns    = 100
	defaultRunDir     = "runs"
)

// Config represents the complete application configuration.
type Config struct {
	Dialects   []DialectConfig  `yaml:"dialects"`
	Subjects   []string         `yaml:"subjects"`
	Harness    HarnessConfig    `yaml:"harness"`
	History    HistoryConfig    `yaml:"history"`
	Deploy     DeployConfig     `yaml:"deploy"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
}

// DialectConfig defines one matrix cell: a specification version and
// the test suite location to run against it.
type DialectConfig struct {
	// Name is the display label, e.g. "Draft 2020-12".
	Name string `yaml:"name"`

	// URI is the dialect identifier and the cell's matrix key.
	URI string `yaml:"uri"`

	// Suite is the suite location passed to the test harness.
	Suite string `yaml:"suite"`
}

// HarnessConfig holds settings for the external test-execution tool.
type HarnessConfig struct {
	// Command is the harness executable.
	Command string `yaml:"command"`

	// Args are fixed arguments passed before the per-run ones.
	Args []string `yaml:"args"`

	// ExecTimeout bounds a single matrix cell execution. The harness
	// is untrusted and may hang; a cell hitting the timeout is a
	// failure, not a stuck run.
	ExecTimeout time.Duration `yaml:"exec_timeout"`

	// MaxParallel bounds concurrent cell executions.
	MaxParallel int64 `yaml:"max_parallel"`
}

// HistoryConfig selects and configures the snapshot store.
type HistoryConfig struct {
	// Store is the backend kind: "disk" or "blob".
	Store string `yaml:"store"`

	// Name is the well-known snapshot name shared across runs.
	Name string `yaml:"name"`

	// Dir is the disk store directory.
	Dir string `yaml:"dir"`

	// Blob configures the S3-compatible backend.
	Blob history.BlobConfig `yaml:"blob"`
}

// DeployConfig selects and configures the site deployment backend.
type DeployConfig struct {
	// Backend is "dir" or "ssh".
	Backend string `yaml:"backend"`

	// Targets are the deployment target names; publishing is
	// single-flight per target.
	Targets []string `yaml:"targets"`

	// Dir is the local root for the dir backend.
	Dir string `yaml:"dir"`

	// SSH configures the remote backend.
	SSH SSHConfig `yaml:"ssh"`

	// DrainTimeout bounds how long a new publish waits for a
	// superseded one to cancel.
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// SSHConfig holds remote deployment settings.
type SSHConfig struct {
	Host       string `yaml:"host"`
	User       string `yaml:"user"`
	KeyFile    string `yaml:"key_file"`
	RemoteRoot string `yaml:"remote_root"`
}

// MonitoringConfig holds metrics settings.
type MonitoringConfig struct {
	// RemoteWriteURL is the Prometheus remote-write endpoint run
	// metrics are pushed to. Empty disables pushing.
	RemoteWriteURL string `yaml:"remote_write_url"`
	MetricsPrefix  string `yaml:"metrics_prefix"`
	JobName        string `yaml:"jobname"`
}

// LoggingConfig defines logging behavior settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
}

// ServerConfig holds settings for the HTTP server.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`

	// Cron is the recurring run schedule (5-field cron expression).
	// Empty disables scheduled runs.
	Cron string `yaml:"cron"`

	// RunDir is where completed run statuses are persisted.
	RunDir string `yaml:"run_dir"`

	// MaxRuns caps the persisted run history.
	MaxRuns int `yaml:"max_runs"`
}

// Validate performs basic validation on the configuration.
func (c *Config) Validate() error {
	if len(c.Dialects) == 0 {
		return fmt.Errorf("at least one dialect is required")
	}
	for i, d := range c.Dialects {
		if d.URI == "" {
			return fmt.Errorf("dialect %d: uri is required", i)
		}
		if d.Suite == "" {
			return fmt.Errorf("dialect %q: suite is required", d.URI)
		}
	}
	if len(c.Subjects) == 0 {
		return fmt.Errorf("at least one subject implementation is required")
	}
	if c.Harness.Command == "" {
		return fmt.Errorf("harness command is required")
	}
	if c.Harness.ExecTimeout <= 0 {
		return fmt.Errorf("harness exec timeout must be positive")
	}
	if c.Harness.MaxParallel <= 0 {
		return fmt.Errorf("harness max parallel must be positive")
	}

	switch c.History.Store {
	case "disk":
		if c.History.Dir == "" {
			return fmt.Errorf("history dir is required for the disk store")
		}
	case "blob":
		if err := c.History.Blob.Validate(); err != nil {
			return fmt.Errorf("history blob store: %w", err)
		}
	default:
		return fmt.Errorf("unknown history store %q", c.History.Store)
	}

	switch c.Deploy.Backend {
	case "dir":
		if c.Deploy.Dir == "" {
			return fmt.Errorf("deploy dir is required for the dir backend")
		}
	case "ssh":
		if c.Deploy.SSH.Host == "" {
			return fmt.Errorf("deploy ssh host is required")
		}
		if c.Deploy.SSH.User == "" {
			return fmt.Errorf("deploy ssh user is required")
		}
		if c.Deploy.SSH.KeyFile == "" {
			return fmt.Errorf("deploy ssh key_file is required")
		}
	default:
		return fmt.Errorf("unknown deploy backend %q", c.Deploy.Backend)
	}
	if len(c.Deploy.Targets) == 0 {
		return fmt.Errorf("at least one deploy target is required")
	}

	return nil
}

// SetDefaults sets reasonable default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Harness.ExecTimeout == 0 {
		c.Harness.ExecTimeout = defaultExecTimeout
	}
	if c.Harness.MaxParallel == 0 {
		c.Harness.MaxParallel = defaultMaxParallel
	}
	if c.History.Store == "" {
		c.History.Store = defaultHistoryStore
	}
	if c.History.Name == "" {
		c.History.Name = defaultSnapshotName
	}
	if c.History.Store == "disk" && c.History.Dir == "" {
		c.History.Dir = defaultHistoryDir
	}
	if c.Deploy.Backend == "" {
		c.Deploy.Backend = defaultDeployBackend
	}
	if c.Deploy.Backend == "dir" && c.Deploy.Dir == "" {
		c.Deploy.Dir = defaultDeployDir
	}
	if len(c.Deploy.Targets) == 0 {
		c.Deploy.Targets = []string{"site"}
	}
	if c.Deploy.DrainTimeout == 0 {
		c.Deploy.DrainTimeout = defaultDrainTimeout
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultListenAddr
	}
	if c.Server.RunDir == "" {
		c.Server.RunDir = defaultRunDir
	}
	if c.Server.MaxRuns == 0 {
		c.Server.MaxRuns = defaultMaxRuns
	}
}

// Redacted returns a copy of the config with credential fields masked,
// suitable for exposure over the config endpoint.
func (c *Config) Redacted() Config {
	redacted := *c
	if redacted.History.Blob.AccessKey != "" {
		redacted.History.Blob.AccessKey = "[REDACTED]"
	}
	if redacted.History.Blob.SecretKey != "" {
		redacted.History.Blob.SecretKey = "[REDACTED]"
	}
	return redacted
}

// MatrixKeys returns the configured dialect URIs in order.
func (c *Config) MatrixKeys() []string {
	keys := make([]string, len(c.Dialects))
	for i, d := range c.Dialects {
		keys[i] = d.URI
	}
	return keys
}

// LoadConfig reads the YAML config file at the given path and returns a
// Config struct.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
