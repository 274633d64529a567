package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records flowstream metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordBatch records an inbound batch with its size and duration.
	RecordBatch(ctx context.Context, events int, duration time.Duration)

	// RecordPanic records a panic recovered from the root at index root.
	RecordPanic(ctx context.Context, root int)

	// RecordSweep records an index sweep and how many entries it expired.
	RecordSweep(ctx context.Context, removed int, duration time.Duration)

	// RecordSweepSkipped records a sweep request dropped because another
	// sweep was running.
	RecordSweepSkipped(ctx context.Context)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	events       metric.Int64Counter
	batches      metric.Int64Counter
	batchLatency metric.Float64Histogram
	panics       metric.Int64Counter
	expired      metric.Int64Counter
	sweepLatency metric.Float64Histogram
	sweepSkipped metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel instruments.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("flowstream")

	events, err := meter.Int64Counter("flowstream.events.processed",
		metric.WithDescription("Number of events pushed into the stream roots"),
	)
	if err != nil {
		return nil, err
	}

	batches, err := meter.Int64Counter("flowstream.batches",
		metric.WithDescription("Number of inbound batches"),
	)
	if err != nil {
		return nil, err
	}

	batchLatency, err := meter.Float64Histogram("flowstream.batch.latency_ms",
		metric.WithDescription("Batch processing latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	panics, err := meter.Int64Counter("flowstream.stream.panics",
		metric.WithDescription("Number of panics recovered from stream roots"),
	)
	if err != nil {
		return nil, err
	}

	expired, err := meter.Int64Counter("flowstream.index.expired",
		metric.WithDescription("Number of index entries removed by expiry sweeps"),
	)
	if err != nil {
		return nil, err
	}

	sweepLatency, err := meter.Float64Histogram("flowstream.index.sweep.latency_ms",
		metric.WithDescription("Index sweep latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	sweepSkipped, err := meter.Int64Counter("flowstream.index.sweep.skipped",
		metric.WithDescription("Number of sweep requests skipped while a sweep was running"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		events:       events,
		batches:      batches,
		batchLatency: batchLatency,
		panics:       panics,
		expired:      expired,
		sweepLatency: sweepLatency,
		sweepSkipped: sweepSkipped,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordBatch(ctx context.Context, events int, duration time.Duration) {
	m.batches.Add(ctx, 1)
	m.events.Add(ctx, int64(events))
	m.batchLatency.Record(ctx, float64(duration.Microseconds())/1000)
}

func (m *otelMetrics) RecordPanic(ctx context.Context, root int) {
	m.panics.Add(ctx, 1, metric.WithAttributes(attribute.Int("root", root)))
}

func (m *otelMetrics) RecordSweep(ctx context.Context, removed int, duration time.Duration) {
	m.expired.Add(ctx, int64(removed))
	m.sweepLatency.Record(ctx, float64(duration.Microseconds())/1000)
}

func (m *otelMetrics) RecordSweepSkipped(ctx context.Context) {
	m.sweepSkipped.Add(ctx, 1)
}
