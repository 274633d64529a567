package flowstream

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/flowstream/pkg/flowstream/observability"
)

// streamsConfig holds configuration for a Streams entry point.
type streamsConfig struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	clock   func() time.Time
}

func defaultStreamsConfig() streamsConfig {
	return streamsConfig{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		clock:   time.Now,
	}
}

// Option configures a Streams entry point.
type Option func(*streamsConfig)

// WithLogger sets the logger for batch and panic reports.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *streamsConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics for processed batches.
// Default: disabled
//
// Example:
//
//	streams := flowstream.NewStreams(flowstream.WithMetrics(true))
func WithMetrics(enabled bool) Option {
	return func(c *streamsConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables an OpenTelemetry span per processed batch.
// Default: disabled
func WithTracing(enabled bool) Option {
	return func(c *streamsConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithClock overrides the wall clock used to stamp events that arrive
// without a time.
// Default: time.Now
func WithClock(clock func() time.Time) Option {
	return func(c *streamsConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}
