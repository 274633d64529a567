package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/randalmurphal/flowstream/pkg/flowstream"
	"github.com/randalmurphal/flowstream/pkg/flowstream/config"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/index"
	"github.com/randalmurphal/flowstream/pkg/flowstream/observability"
	"github.com/randalmurphal/flowstream/pkg/flowstream/scheduler"
	"github.com/randalmurphal/flowstream/pkg/flowstream/sink/influx"
	"github.com/randalmurphal/flowstream/pkg/flowstream/snapshot"
	"github.com/randalmurphal/flowstream/pkg/flowstream/source/hoststats"
)

// app is the assembled pipeline: streams feed the index and the optional
// Influx sink, and index expirations are pushed back into the streams.
type app struct {
	settings config.Settings
	logger   *slog.Logger
	sched    scheduler.Scheduler

	streams *flowstream.Streams
	index   *index.Index
	influx  *influx.Sink
	hosts   *hoststats.Source

	snapshots snapshot.Store

	metricsHandler http.Handler
	shutdown       []func(context.Context) error
}

func newApp(s config.Settings, logger *slog.Logger, sched scheduler.Scheduler) (*app, error) {
	a := &app{settings: s, logger: logger, sched: sched}

	if s.Metrics {
		if err := a.setupMetrics(); err != nil {
			return nil, err
		}
	}
	if s.Tracing {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		a.shutdown = append(a.shutdown, tp.Shutdown)
	}
	flowstream.SetLogger(logger)

	a.streams = flowstream.NewStreams(
		flowstream.WithLogger(logger),
		flowstream.WithMetrics(s.Metrics),
		flowstream.WithTracing(s.Tracing),
	)

	indexOpts := []index.Option{
		index.WithShards(s.Index.Shards),
		index.WithExpireInterval(s.Index.ExpireInterval),
		index.WithLogger(logger),
		index.WithExpiredHandler(a.reinject),
	}
	if s.Metrics {
		indexOpts = append(indexOpts, index.WithMetrics(observability.NewMetricsRecorder()))
	}
	a.index = index.New(sched, indexOpts...)
	a.streams.AddStream(flowstream.IndexSink(a.index))

	if s.Influx.Enabled {
		a.influx = influx.New(s.Influx.URL, s.Influx.Token, s.Influx.Org, s.Influx.Bucket,
			influx.WithBatchSize(s.Influx.BatchSize),
			influx.WithFlushInterval(s.Influx.FlushInterval),
			influx.WithLogger(logger),
		)
		a.streams.AddStream(a.influx.Node())
	}

	store, err := openSnapshots(s.Snapshot)
	if err != nil {
		return nil, err
	}
	a.snapshots = store

	if s.HostStats.Enabled {
		target := flowstream.NewNode(func(_ flowstream.Forward, e event.Event) {
			a.reinject(e)
		})
		hosts, err := hoststats.New(sched, target,
			hoststats.WithHost(s.HostStats.Host),
			hoststats.WithInterval(s.HostStats.Interval),
			hoststats.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("host stats: %w", err)
		}
		a.hosts = hosts
	}
	return a, nil
}

func (a *app) setupMetrics() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	a.metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	a.shutdown = append(a.shutdown, mp.Shutdown)
	return nil
}

func openSnapshots(s config.SnapshotSettings) (snapshot.Store, error) {
	if s.Path == "" {
		return snapshot.NewMemoryStore(), nil
	}
	store, err := snapshot.NewSQLiteStore(s.Path)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}
	return store, nil
}

// reinject pushes an event produced inside the process (an expiration or a
// host sample) into every root.
func (a *app) reinject(e event.Event) {
	if err := a.streams.PushEvent(e); err != nil {
		a.logger.Warn("internal event not fully processed",
			slog.String("service", e.Service),
			slog.String("error", err.Error()),
		)
	}
}

// start begins the periodic sources.
func (a *app) start(ctx context.Context) {
	if a.hosts != nil {
		a.hosts.Start(ctx)
	}
}

// close flushes the sink, closes the snapshot store and shuts the
// telemetry providers down.
func (a *app) close(ctx context.Context) error {
	if a.influx != nil {
		a.influx.Close()
	}
	var errs []error
	if a.snapshots != nil {
		if err := a.snapshots.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, fn := range a.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
