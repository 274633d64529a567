// Package influx writes flowstream events to InfluxDB v2.
//
// A Sink owns an influxdb2 client and its non-blocking write API. Points
// are batched by the client and written in the background; write failures
// are logged and counted rather than returned to the stream.
package influx

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/randalmurphal/flowstream/pkg/flowstream"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

// DefaultMeasurement is the measurement name used when none is configured.
const DefaultMeasurement = "flowstream"

// Sink batches events into InfluxDB points.
type Sink struct {
	client influxdb2.Client
	writer api.WriteAPI

	measurement string
	logger      *slog.Logger
	clock       func() time.Time

	written  atomic.Int64
	failures atomic.Int64

	closeOnce sync.Once
	drained   chan struct{}
}

// Option configures a Sink.
type Option func(*options)

type options struct {
	measurement   string
	batchSize     uint
	flushInterval time.Duration
	logger        *slog.Logger
	clock         func() time.Time
}

// WithMeasurement sets the measurement name of written points.
// Default: "flowstream"
func WithMeasurement(name string) Option {
	return func(o *options) {
		if name != "" {
			o.measurement = name
		}
	}
}

// WithBatchSize sets how many points the client buffers per write.
// Default: 500
func WithBatchSize(n uint) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithFlushInterval sets the longest time a point waits in the buffer.
// Default: 1s
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= time.Millisecond {
			o.flushInterval = d
		}
	}
}

// WithLogger sets the logger for write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock used to stamp events without a time.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// New connects a Sink to the InfluxDB server at url, writing to bucket in
// org. The connection is lazy: nothing is sent until the first flush.
func New(url, token, org, bucket string, opts ...Option) *Sink {
	o := options{
		measurement:   DefaultMeasurement,
		batchSize:     500,
		flushInterval: time.Second,
		logger:        slog.Default(),
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := influxdb2.DefaultOptions().
		SetBatchSize(o.batchSize).
		SetFlushInterval(uint(o.flushInterval / time.Millisecond))
	client := influxdb2.NewClientWithOptions(url, token, clientOpts)

	s := &Sink{
		client:      client,
		writer:      client.WriteAPI(org, bucket),
		measurement: o.measurement,
		logger:      o.logger.With(slog.String("sink", "influx"), slog.String("bucket", bucket)),
		clock:       o.clock,
		drained:     make(chan struct{}),
	}
	go s.drainErrors(s.writer.Errors())
	return s
}

func (s *Sink) drainErrors(errs <-chan error) {
	defer close(s.drained)
	for err := range errs {
		s.failures.Add(1)
		s.logger.Error("influx write failed", slog.String("error", err.Error()))
	}
}

// Node returns a node that queues each event as a point and forwards it
// unchanged.
func (s *Sink) Node() *flowstream.Node {
	return flowstream.NewNode(func(forward flowstream.Forward, e event.Event) {
		s.Write(e)
		forward(e)
	})
}

// Write queues e for the next batch.
func (s *Sink) Write(e event.Event) {
	s.writer.WritePoint(Point(s.measurement, e, s.clock()))
	s.written.Add(1)
}

// Flush writes every buffered point and waits for the write to finish.
func (s *Sink) Flush() {
	s.writer.Flush()
}

// Written returns the number of events queued so far.
func (s *Sink) Written() int64 {
	return s.written.Load()
}

// Failures returns the number of failed batch writes.
func (s *Sink) Failures() int64 {
	return s.failures.Load()
}

// Close flushes pending points and releases the client. It is safe to call
// more than once.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		s.client.Close()
		<-s.drained
	})
}

// Point converts e into an InfluxDB point.
//
// Host, service, state and attributes become tags; tags are joined into a
// single sorted "tags" tag. The metric, description and effective TTL
// become fields. Events without a time are stamped with now.
func Point(measurement string, e event.Event, now time.Time) *write.Point {
	tags := make(map[string]string, 4+len(e.Attributes))
	for _, a := range e.Attributes {
		if a.Key != "" && a.Value != "" {
			tags[a.Key] = a.Value
		}
	}
	if e.Host != "" {
		tags["host"] = e.Host
	}
	if e.Service != "" {
		tags["service"] = e.Service
	}
	if e.State != "" {
		tags["state"] = e.State
	}
	if len(e.Tags) > 0 {
		sorted := append([]string(nil), e.Tags...)
		sort.Strings(sorted)
		tags["tags"] = strings.Join(sorted, ",")
	}

	fields := map[string]any{
		"ttl": e.EffectiveTTL(),
	}
	// InfluxDB fixes a field's type on first write, so every metric kind
	// is written as a float.
	if e.Metric.Kind != event.MetricNone {
		fields["metric"] = e.Metric.Float64()
	}
	if e.Description != "" {
		fields["description"] = e.Description
	}

	ts := now
	if e.HasTime {
		ts = time.Unix(e.Time, 0)
	}
	return influxdb2.NewPoint(measurement, tags, fields, ts)
}
