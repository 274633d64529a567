// Package observability provides structured logging, metrics and tracing
// helpers for flowstream.
//
// Logging uses log/slog. Metrics and tracing use OpenTelemetry through the
// global providers. Every feature is opt-in and has a no-op variant.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds batch context to a logger.
// Returns a new logger with the batch_id field.
//
// Example:
//
//	enriched := EnrichLogger(logger, batchID)
//	enriched.Info("pushing") // includes batch_id
func EnrichLogger(logger *slog.Logger, batchID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("batch_id", batchID))
}

// LogBatch logs a processed inbound batch. logger is expected to carry the
// batch_id from EnrichLogger.
func LogBatch(logger *slog.Logger, events int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("batch processed",
		slog.Int("events", events),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogPanic logs a panic recovered while pushing into a root node.
func LogPanic(logger *slog.Logger, root int, err error) {
	if logger == nil {
		return
	}
	logger.Error("stream panicked",
		slog.Int("root", root),
		slog.String("error", err.Error()),
	)
}

// LogSweep logs a completed index expiry sweep.
func LogSweep(logger *slog.Logger, removed, remaining int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("index sweep completed",
		slog.Int("expired", removed),
		slog.Int("remaining", remaining),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSweepSkipped logs a sweep request dropped because one is running.
func LogSweepSkipped(logger *slog.Logger) {
	if logger == nil {
		return
	}
	logger.Debug("index sweep skipped, previous sweep still running")
}

// LogMissingKey logs an event that lacks a field used as a grouping key.
func LogMissingKey(logger *slog.Logger, field, key string) {
	if logger == nil {
		return
	}
	logger.Warn("grouping field missing from event",
		slog.String("field", field),
		slog.String("key", key),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
