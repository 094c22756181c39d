// Package handlers provides HTTP handlers for the compatpipe server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"time"

	"github.com/compatpipe/compatpipe/config"
	"github.com/compatpipe/compatpipe/logging"
	"github.com/compatpipe/compatpipe/pipeline"
	"github.com/compatpipe/compatpipe/server/runner"
)

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// Reloader can reload its configuration.
type Reloader interface {
	Reload() error
}

// PipelineTrigger can start pipeline runs.
type PipelineTrigger interface {
	Trigger(trigger pipeline.Trigger) (string, error)
}

// StatusProvider provides access to the live server status.
type StatusProvider interface {
	Active() []runner.ActiveRun
	LastRun() *pipeline.RunStatus
	NextRun() *time.Time
}

// HistoryProvider provides access to completed run history.
type HistoryProvider interface {
	History() []runner.RunRecord
	Logs(id string) (map[string][]logging.LogEntry, error)
}
