// Package server provides the HTTP server for the compatpipe service.
//
// The server exposes a REST API to trigger and monitor compatibility
// pipeline runs, inspect run history with per-cell logs, and expose
// Prometheus metrics.
//
// # Endpoints
//
//   - GET /health - Simple health check, returns "ok"
//   - GET /api/status - Consolidated status (active runs, last run, next scheduled run)
//   - GET /config - Returns current configuration as YAML, credentials redacted
//   - POST /reload - Reloads configuration from disk
//   - POST /run - Triggers a pipeline run (trigger defaults to manual)
//   - POST /hooks/release - Webhook for a subject implementation release
//   - POST /hooks/suite - Webhook for an upstream suite publication
//   - GET /history - Returns completed runs, most recent first
//   - GET /history/logs?id= - Returns per-cell logs for one run
//   - GET /metrics - Prometheus scrape endpoint
//
// # Architecture
//
// The current config is swapped atomically on reload. Each pipeline run
// assembles its collaborators fresh from the current config, so config
// changes take effect on the next run without interrupting any run in
// progress. The publish gate is created once and shared by all runs;
// single-flight publishing only holds if every run serializes through
// the same gate.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/compatpipe/compatpipe/config"
	"github.com/compatpipe/compatpipe/deploy"
	"github.com/compatpipe/compatpipe/logging"
	"github.com/compatpipe/compatpipe/metrics"
	"github.com/compatpipe/compatpipe/pipeline"
	"github.com/compatpipe/compatpipe/server/cron"
	"github.com/compatpipe/compatpipe/server/handlers"
	"github.com/compatpipe/compatpipe/server/runner"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Server is the HTTP server for the compatpipe service.
type Server struct {
	addr        string
	configPath  string
	logger      *slog.Logger
	cfg         atomic.Pointer[config.Config]
	gate        *deploy.Gate
	registry    *metrics.ScrapeRegistry
	httpServer  *http.Server
	runner      *runner.Runner
	cronTrigger *cron.CronTrigger
}

// New creates a new Server from the config file at the given path.
// It loads the configuration and initializes all dependencies.
func New(configPath string) (*Server, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	s := &Server{
		addr:       cfg.Server.Addr,
		configPath: configPath,
		logger:     log.Logger,
		gate:       deploy.NewGate(log.Logger, deploy.WithDrainTimeout(cfg.Deploy.DrainTimeout)),
	}
	s.cfg.Store(&cfg)

	s.registry, err = metrics.NewScrapeRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics registry: %w", err)
	}
	reporter, err := metrics.NewRunReporter(s.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register run metrics: %w", err)
	}

	store, err := runner.NewDiskStore(cfg.Server.RunDir, cfg.Server.MaxRuns, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create run store: %w", err)
	}

	s.runner = runner.New(s.logger, s,
		runner.WithStateStore(store),
		runner.WithReporter(reporter),
	)

	if cfg.Server.Cron != "" {
		s.cronTrigger, err = cron.NewCronTrigger(cfg.Server.Cron, s.scheduledRun, s.logger)
		if err != nil {
			return nil, fmt.Errorf("creating cron trigger: %w", err)
		}
	}

	return s, nil
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Config returns the current configuration.
func (s *Server) Config() *config.Config {
	return s.cfg.Load()
}

// Reload reads the config from disk and swaps it in for the next run.
func (s *Server) Reload() error {
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		return err
	}

	s.cfg.Store(&cfg)
	s.logger.Info("configuration loaded", "config_path", s.configPath)

	return nil
}

// NewPipeline assembles a pipeline from the current configuration.
// It implements runner.PipelineFactory.
func (s *Server) NewPipeline(hook logging.LoggerHook) (*pipeline.Pipeline, error) {
	return pipeline.FromConfig(s.Config(), s.logger, s.gate, pipeline.WithLoggerHook(hook))
}

// NextRun returns the next scheduled run time, or nil if no cron is configured.
func (s *Server) NextRun() *time.Time {
	if s.cronTrigger == nil {
		return nil
	}
	next := s.cronTrigger.NextRun()
	return &next
}

// Active returns the runs in progress by delegating to the runner.
func (s *Server) Active() []runner.ActiveRun {
	return s.runner.Active()
}

// LastRun returns the most recently completed run by delegating to the runner.
func (s *Server) LastRun() *pipeline.RunStatus {
	return s.runner.LastRun()
}

// scheduledRun is the cron trigger callback.
func (s *Server) scheduledRun() error {
	_, err := s.runner.Trigger(pipeline.TriggerSchedule)
	return err
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs a graceful shutdown when the context is done.
// If a cron trigger is configured, it will be started automatically.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	// Start cron trigger if configured
	if s.cronTrigger != nil {
		s.logger.Info("starting cron trigger",
			"next_run", s.cronTrigger.NextRun(),
		)
		s.cronTrigger.Start(ctx)
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", s.addr,
			"config_path", s.configPath,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or server error
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	configHandler := handlers.NewConfigHandler(s)
	reloadHandler := handlers.NewReloadHandler(s.logger, s)
	runHandler := handlers.NewRunHandler(s.runner)
	releaseHookHandler := handlers.NewHookHandler(s.logger, s.runner, pipeline.TriggerRelease)
	suiteHookHandler := handlers.NewHookHandler(s.logger, s.runner, pipeline.TriggerChain)
	historyHandler := handlers.NewHistoryHandler(s.runner)
	historyLogsHandler := handlers.NewHistoryLogsHandler(s.runner)
	apiStatusHandler := handlers.NewAPIStatusHandler(s)

	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.Handle("GET /api/status", apiStatusHandler)
	mux.Handle("GET /config", configHandler)
	mux.Handle("POST /reload", reloadHandler)
	mux.Handle("POST /run", runHandler)
	mux.Handle("POST /hooks/release", releaseHookHandler)
	mux.Handle("POST /hooks/suite", suiteHookHandler)
	mux.Handle("GET /history", historyHandler)
	mux.Handle("GET /history/logs", historyLogsHandler)
	mux.Handle("GET /metrics", s.registry.Handler())
}
