package hoststats

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowstream/pkg/flowstream"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/scheduler"
)

func collector() (*flowstream.Node, *[]event.Event) {
	var got []event.Event
	return flowstream.NewNode(func(_ flowstream.Forward, e event.Event) {
		got = append(got, e)
	}), &got
}

func fixed(v float64) func(context.Context) (float64, string, error) {
	return func(context.Context) (float64, string, error) { return v, "fixed", nil }
}

func TestNew_Validation(t *testing.T) {
	node, _ := collector()

	_, err := New(nil, node)
	assert.ErrorIs(t, err, flowstream.ErrNilScheduler)

	_, err = New(scheduler.NewMock(), nil)
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestThresholds_State(t *testing.T) {
	th := Thresholds{Warning: 0.5, Critical: 0.8}
	assert.Equal(t, "ok", th.state(0.1))
	assert.Equal(t, "warning", th.state(0.5))
	assert.Equal(t, "critical", th.state(0.9))
}

func TestSource_PeriodicSamples(t *testing.T) {
	sched := scheduler.NewMock()
	node, got := collector()

	src, err := New(sched, node, WithHost("web-1"), WithInterval(5),
		WithThresholds("memory", Thresholds{Warning: 0.1, Critical: 0.2}))
	require.NoError(t, err)
	src.probes[0].read = fixed(0.97)
	src.probes[1].read = fixed(0.15)
	src.probes[2].read = fixed(0.5)

	src.Start(context.Background())
	sched.ProcessEventTime(4)
	assert.Empty(t, *got)

	sched.ProcessEventTime(10)
	require.Len(t, *got, 6)

	first := (*got)[:3]
	assert.Equal(t, []string{"cpu", "memory", "load"},
		[]string{first[0].Service, first[1].Service, first[2].Service})
	assert.Equal(t, []string{"critical", "warning", "ok"},
		[]string{first[0].State, first[1].State, first[2].State})

	e := first[0]
	assert.Equal(t, "web-1", e.Host)
	assert.Equal(t, int64(5), e.Time)
	assert.Equal(t, int64(10), e.TTL)
	assert.InDelta(t, 0.97, e.MetricValue(), 1e-9)
	assert.True(t, e.HasTag(Tag))
	assert.Equal(t, int64(10), (*got)[3].Time)
}

func TestSource_FailingProbeSkipped(t *testing.T) {
	sched := scheduler.NewMock()
	node, got := collector()
	var buf bytes.Buffer

	src, err := New(sched, node, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)
	src.probes[0].read = func(context.Context) (float64, string, error) {
		return 0, "", errors.New("no /proc")
	}
	src.probes[1].read = fixed(0.1)
	src.probes[2].read = fixed(0.1)

	assert.Equal(t, 2, src.Sample(context.Background()))
	assert.Len(t, *got, 2)
	assert.Contains(t, buf.String(), "host probe failed")
	assert.Contains(t, buf.String(), "service=cpu")
}

func TestSource_StopsWithContext(t *testing.T) {
	sched := scheduler.NewMock()
	node, got := collector()
	src, err := New(sched, node, WithInterval(1))
	require.NoError(t, err)
	for i := range src.probes {
		src.probes[i].read = fixed(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	src.Start(ctx)
	sched.ProcessEventTime(1)
	cancel()
	sched.ProcessEventTime(3)

	assert.Len(t, *got, 3)
}

func TestSource_ReadsHost(t *testing.T) {
	node, got := collector()
	src, err := New(scheduler.NewMock(), node)
	require.NoError(t, err)

	n := src.Sample(context.Background())
	assert.Len(t, *got, n)
	for _, e := range *got {
		assert.Contains(t, []string{"cpu", "memory", "load"}, e.Service)
		assert.GreaterOrEqual(t, e.MetricValue(), 0.0)
	}
}
