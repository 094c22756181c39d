package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/compatpipe/compatpipe/buildinfo"
	"github.com/compatpipe/compatpipe/config"
	"github.com/compatpipe/compatpipe/deploy"
	"github.com/compatpipe/compatpipe/logging"
	"github.com/compatpipe/compatpipe/metrics"
	"github.com/compatpipe/compatpipe/pipeline"
)

type Args struct {
	ConfigPath  string
	Trigger     string
	ShowVersion bool
	Validate    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := parseArgs()

	// Handle version request
	if args.ShowVersion {
		showVersion()
		return nil
	}

	// Validate required config path
	if args.ConfigPath == "" {
		return fmt.Errorf("config flag (-c or --config) is required")
	}

	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Handle validation-only request
	if args.Validate {
		fmt.Printf("Configuration validation successful: %s\n", args.ConfigPath)
		return nil
	}

	trigger := pipeline.Trigger(args.Trigger)
	switch trigger {
	case pipeline.TriggerRelease, pipeline.TriggerChain, pipeline.TriggerManual, pipeline.TriggerSchedule:
	default:
		return fmt.Errorf("unknown trigger %q", args.Trigger)
	}

	loggerConfig := logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	}
	logger, err := logging.New(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	props := buildinfo.Get()
	logger.Info("compatpipe started",
		"version", props.Version,
		"build_time", props.BuildTime,
		"git_commit", props.GitCommit,
		"config_path", args.ConfigPath,
	)

	gate := deploy.NewGate(logger.Logger, deploy.WithDrainTimeout(cfg.Deploy.DrainTimeout))

	p, err := pipeline.FromConfig(&cfg, logger.Logger, gate)
	if err != nil {
		return fmt.Errorf("failed to assemble pipeline: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status, runErr := p.Run(ctx, trigger)

	if status != nil && status.Summary != "" {
		fmt.Print(status.Summary)
	}

	// Push run metrics when a remote write endpoint is configured
	if cfg.Monitoring.RemoteWriteURL != "" && status != nil {
		if err := pushRunMetrics(&cfg, status); err != nil {
			logger.Warn("failed to push run metrics", "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("pipeline run failed: %w", runErr)
	}

	return nil
}

func pushRunMetrics(cfg *config.Config, status *pipeline.RunStatus) error {
	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to get hostname: %w", err)
	}

	registry := metrics.NewPushRegistry(metrics.PushConfig{
		URL:      cfg.Monitoring.RemoteWriteURL,
		Prefix:   cfg.Monitoring.MetricsPrefix,
		Job:      cfg.Monitoring.JobName,
		Instance: hostname,
	})

	reporter, err := metrics.NewRunReporter(registry)
	if err != nil {
		return err
	}
	reporter.Report(status)
	return nil
}

func showVersion() {
	props := buildinfo.Get()
	fmt.Printf("compatpipe %s\n", props.Version)
	fmt.Printf("Built: %s\n", props.BuildTime)
	fmt.Printf("Commit: %s\n", props.GitCommit)
}

func parseArgs() Args {
	configPath := flag.String("config", "", "Path to config file")
	configPathShort := flag.String("c", "", "Path to config file (shorthand)")
	trigger := flag.String("trigger", "manual", "Trigger recorded for this run (release, chain, manual, schedule)")
	showVersion := flag.Bool("version", false, "Show version information")
	versionShort := flag.Bool("v", false, "Show version information (shorthand)")
	validate := flag.Bool("validate", false, "Validate configuration and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nCompatibility Report Pipeline\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --config /etc/compatpipe/config.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config config.yaml --trigger release\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config config.yaml --validate\n", os.Args[0])
	}

	flag.Parse()

	path := *configPath
	if path == "" && *configPathShort != "" {
		path = *configPathShort
	}

	version := *showVersion || *versionShort

	return Args{
		ConfigPath:  path,
		Trigger:     *trigger,
		ShowVersion: version,
		Validate:    *validate,
	}
}
