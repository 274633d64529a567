// Package hoststats samples local host health and pushes it into a
// flowstream graph.
//
// Every interval the Source reads CPU utilisation, memory utilisation and
// the one-minute load average (normalised by CPU count) with gopsutil, and
// pushes one event per probe with service "cpu", "memory" or "load". The
// state is "ok", "warning" or "critical" according to the configured
// thresholds.
package hoststats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/randalmurphal/flowstream/pkg/flowstream"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/scheduler"
)

// Tag is attached to every event produced by a Source.
const Tag = "hoststats"

// ErrNoTarget is returned by New when the target node is nil.
var ErrNoTarget = errors.New("hoststats: nil target node")

// Thresholds set the warning and critical levels of one probe.
type Thresholds struct {
	Warning  float64
	Critical float64
}

func (t Thresholds) state(v float64) string {
	switch {
	case v >= t.Critical:
		return "critical"
	case v >= t.Warning:
		return "warning"
	default:
		return "ok"
	}
}

// probe reads one value. The description is attached to the event.
type probe struct {
	service    string
	thresholds Thresholds
	read       func(ctx context.Context) (float64, string, error)
}

// Source periodically samples the host.
type Source struct {
	sched    scheduler.Scheduler
	target   *flowstream.Node
	host     string
	interval int64
	logger   *slog.Logger
	probes   []probe
}

// Option configures a Source.
type Option func(*Source)

// WithHost overrides the host field of produced events.
// Default: os.Hostname()
func WithHost(host string) Option {
	return func(s *Source) {
		if host != "" {
			s.host = host
		}
	}
}

// WithInterval sets the sampling interval in scheduler seconds.
// Default: 10
func WithInterval(sec int64) Option {
	return func(s *Source) {
		if sec > 0 {
			s.interval = sec
		}
	}
}

// WithLogger sets the logger for probe failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithThresholds overrides the thresholds of the named service ("cpu",
// "memory" or "load"). Unknown services are ignored.
func WithThresholds(service string, t Thresholds) Option {
	return func(s *Source) {
		for i := range s.probes {
			if s.probes[i].service == service {
				s.probes[i].thresholds = t
			}
		}
	}
}

// New creates a Source that pushes into target. Call Start to begin
// sampling.
func New(sched scheduler.Scheduler, target *flowstream.Node, opts ...Option) (*Source, error) {
	if sched == nil {
		return nil, flowstream.ErrNilScheduler
	}
	if target == nil {
		return nil, ErrNoTarget
	}
	host, _ := os.Hostname()
	s := &Source{
		sched:    sched,
		target:   target,
		host:     host,
		interval: 10,
		logger:   slog.Default(),
		probes: []probe{
			{service: "cpu", thresholds: Thresholds{Warning: 0.9, Critical: 0.95}, read: readCPU},
			{service: "memory", thresholds: Thresholds{Warning: 0.85, Critical: 0.95}, read: readMemory},
			{service: "load", thresholds: Thresholds{Warning: 3, Critical: 8}, read: readLoad},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the sampling task. Samples taken after ctx is done are
// skipped.
func (s *Source) Start(ctx context.Context) {
	s.sched.AddPeriodicTask(func() {
		if ctx.Err() != nil {
			return
		}
		s.Sample(ctx)
	}, s.interval)
}

// Sample reads every probe once and pushes the resulting events. A failing
// probe is logged and skipped. It returns the number of events pushed.
func (s *Source) Sample(ctx context.Context) int {
	now := s.sched.Now()
	pushed := 0
	for _, p := range s.probes {
		v, desc, err := p.read(ctx)
		if err != nil {
			s.logger.Warn("host probe failed",
				slog.String("service", p.service),
				slog.String("error", err.Error()),
			)
			continue
		}

		e := event.Event{
			Host:        s.host,
			Service:     p.service,
			State:       p.thresholds.state(v),
			Description: desc,
			Tags:        []string{Tag},
		}
		e.SetTime(now)
		e.SetTTL(2 * s.interval)
		e.SetMetricDouble(v)
		s.target.Push(e)
		pushed++
	}
	return pushed
}

func readCPU(ctx context.Context) (float64, string, error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, "", fmt.Errorf("read cpu percent: %w", err)
	}
	if len(pct) == 0 {
		return 0, "", errors.New("read cpu percent: no data")
	}
	return pct[0] / 100, fmt.Sprintf("%.2f%% cpu", pct[0]), nil
}

func readMemory(ctx context.Context) (float64, string, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("read virtual memory: %w", err)
	}
	if vm.Total == 0 {
		return 0, "", errors.New("read virtual memory: zero total")
	}
	used := float64(vm.Total-vm.Available) / float64(vm.Total)
	return used, fmt.Sprintf("%d of %d bytes used", vm.Total-vm.Available, vm.Total), nil
}

func readLoad(ctx context.Context) (float64, string, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("read load average: %w", err)
	}
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil || n <= 0 {
		n = 1
	}
	return avg.Load1 / float64(n), fmt.Sprintf("1-minute load average/core is %.2f", avg.Load1/float64(n)), nil
}
