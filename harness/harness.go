// Package harness invokes the external test-execution tool that runs a
// suite against a list of subject implementations and emits a report
// document. The tool is a black box: this package knows its inputs
// (subject list, suite location) and its output (report bytes), nothing
// about its internals.
package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
)

// Runner executes one test run against the given subjects using the
// suite at suiteURL, returning the raw report document.
//
// The tool is untrusted; callers bound each invocation with a context
// deadline. A deadline exceeded, crash, or non-zero exit is an
// execution failure, never a hang.
type Runner interface {
	Run(ctx context.Context, subjects []string, suiteURL string) ([]byte, error)
}

// ErrExecutionFailed wraps any failure of the external tool.
var ErrExecutionFailed = errors.New("harness execution failed")

// ExecRunner runs the tool as a subprocess.
type ExecRunner struct {
	command string
	args    []string
	logger  *slog.Logger
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithArgs prepends fixed arguments before the per-run subject and
// suite arguments.
func WithArgs(args ...string) Option {
	return func(r *ExecRunner) {
		r.args = args
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *ExecRunner) {
		r.logger = logger.With("component", "harness")
	}
}

// NewExecRunner creates a subprocess-backed Runner invoking command.
func NewExecRunner(command string, opts ...Option) *ExecRunner {
	r := &ExecRunner{
		command: command,
		logger:  slog.Default().With("component", "harness"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run invokes the tool once. The subject list is passed as repeated -i
// flags and the suite location as the final argument, the tool's
// conventional calling shape. Stdout is the report document; stderr is
// captured for diagnostics on failure.
func (r *ExecRunner) Run(ctx context.Context, subjects []string, suiteURL string) ([]byte, error) {
	args := append([]string{}, r.args...)
	for _, subject := range subjects {
		args = append(args, "-i", subject)
	}
	args = append(args, suiteURL)

	cmd := exec.CommandContext(ctx, r.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("invoking test harness", "command", r.command, "suite", suiteURL, "subjects", len(subjects))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, ctx.Err())
		}
		r.logger.Error("test harness failed", "command", r.command, "suite", suiteURL,
			"error", err, "stderr", truncate(stderr.String(), 2048))
		return nil, fmt.Errorf("%w: %v: %s", ErrExecutionFailed, err, truncate(stderr.String(), 512))
	}

	return stdout.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
