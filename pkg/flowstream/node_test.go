package flowstream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowstream/pkg/flowstream"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

// suffix appends c to the host of a copy of each event.
func suffix(c string) *flowstream.Node {
	return flowstream.NewNode(func(forward flowstream.Forward, e event.Event) {
		ne := e.Clone()
		ne.Host += c
		forward(ne)
	})
}

func TestChain_RunsInOrder(t *testing.T) {
	var out sink
	flowstream.Chain(suffix("a"), suffix("b"), suffix("c"), out.node()).Push(event.Event{})

	assert.Equal(t, []string{"abc"}, hosts(out.take()))
}

func TestChain_Degenerate(t *testing.T) {
	var out sink
	flowstream.Chain().Then(out.node()).Push(event.Event{Host: "x"})
	flowstream.Chain(suffix("y")).Then(out.node()).Push(event.Event{Host: "x"})

	assert.Equal(t, []string{"x", "xy"}, hosts(out.take()))
}

func TestFanout_DepthFirst(t *testing.T) {
	var out sink
	flowstream.Chain(
		suffix("a"),
		flowstream.Fanout(suffix("1"), flowstream.Chain(suffix("2"), suffix("3"))),
		suffix("z"),
		out.node(),
	).Push(event.Event{})

	assert.Equal(t, []string{"a1z", "a23z"}, hosts(out.take()))
}

func TestFanout_ChildrenDoNotAlias(t *testing.T) {
	var left, right sink
	mutate := flowstream.NewNode(func(forward flowstream.Forward, e event.Event) {
		e.Tags[0] = "mutated"
		forward(e)
	})

	orig := event.Event{Tags: []string{"t"}}
	flowstream.Fanout(mutate.Then(left.node()), right.node()).Push(orig)

	assert.Equal(t, "mutated", left.take()[0].Tags[0])
	assert.Equal(t, "t", right.take()[0].Tags[0])
	assert.Equal(t, "t", orig.Tags[0])
}

func TestThen_FansOut(t *testing.T) {
	var out sink
	suffix("s").Then(suffix("1"), suffix("2")).Then(out.node()).Push(event.Event{})

	assert.Equal(t, []string{"s1", "s2"}, hosts(out.take()))
}

func TestNodeIsReusable(t *testing.T) {
	var out sink
	n := flowstream.Chain(suffix("a"), out.node())
	n.Push(event.Event{})
	flowstream.Push(n, event.Event{Host: "b"})

	assert.Equal(t, []string{"a", "ba"}, hosts(out.take()))
}

func TestConstructionPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
		err  error
	}{
		{"nil body", func() { flowstream.NewNode(nil) }, flowstream.ErrNilFunc},
		{"nil chain node", func() { flowstream.Chain(flowstream.Pass(), nil) }, flowstream.ErrNilNode},
		{"nil fanout node", func() { flowstream.Fanout(nil) }, flowstream.ErrNilNode},
		{"zero window", func() { flowstream.MovingEventWindow(0, flowstream.Sum) }, flowstream.ErrInvalidInterval},
		{"nil fold", func() { flowstream.FixedEventWindow(2, nil) }, flowstream.ErrNilFunc},
		{"nil scheduler", func() { flowstream.Rate(nil, 5) }, flowstream.ErrNilScheduler},
		{"negative throttle", func() { flowstream.Throttle(1, -1) }, flowstream.ErrInvalidInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				require.NotNil(t, r)
				err, ok := r.(error)
				require.True(t, ok)
				assert.ErrorIs(t, err, tt.err)
			}()
			tt.fn()
		})
	}
}
