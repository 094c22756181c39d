package logging

import (
	"log/slog"
)

// LoggerHook creates cell-specific loggers by wrapping a base logger.
// This keeps the pipeline generic while supporting per-cell log
// capturing through custom implementations.
type LoggerHook interface {
	// LoggerForCell wraps the base logger to create a logger whose
	// records are attributable to one matrix cell.
	LoggerForCell(baseLogger *slog.Logger, key string) *slog.Logger
}

// CapturingLoggerHook creates loggers that capture logs via CapturingHandler.
type CapturingLoggerHook struct {
	collector *LogCollector
}

// NewCapturingLoggerHook creates a hook that captures all per-cell logs.
func NewCapturingLoggerHook(collector *LogCollector) LoggerHook {
	return &CapturingLoggerHook{
		collector: collector,
	}
}

// LoggerForCell creates a cell-specific logger with capturing enabled.
// Each call wraps the base logger with a CapturingHandler keyed by the cell.
func (p *CapturingLoggerHook) LoggerForCell(baseLogger *slog.Logger, key string) *slog.Logger {
	capturingHandler := NewCapturingHandler(
		baseLogger.Handler(),
		p.collector,
		key,
	)
	return slog.New(capturingHandler)
}
