package flowstream

import (
	"github.com/randalmurphal/flowstream/pkg/flowstream/atom"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

type changedState struct {
	last *atom.Cell[string]
}

// ChangedState forwards an event only when its state differs from the
// state of the previous event, starting from initial.
func ChangedState(initial string) *Node {
	c := &changedState{last: atom.New(initial)}
	return NewNode(c.process)
}

func (c *changedState) process(forward Forward, e event.Event) {
	c.last.Swap(e.State, func(prev, _ string) {
		if prev != e.State {
			forward(e)
		}
	})
}

type counter struct {
	count *atom.Cell[int64]
}

// Counter replaces the metric of each event that has one with a running
// count of such events (1, 2, 3, ...). Events without a metric pass
// through unchanged and are not counted.
func Counter() *Node {
	c := &counter{count: atom.New[int64](0)}
	return NewNode(c.process)
}

func (c *counter) process(forward Forward, e event.Event) {
	if !e.HasMetric() {
		forward(e)
		return
	}
	c.count.Update(
		func(n int64) int64 { return n + 1 },
		func(_, n int64) {
			ne := e.Clone()
			ne.SetMetricInt(n)
			forward(ne)
		},
	)
}
