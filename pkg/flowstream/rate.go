package flowstream

import (
	"sync/atomic"

	"github.com/randalmurphal/flowstream/pkg/flowstream/atom"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/scheduler"
)

type rateNode struct {
	sched    scheduler.Scheduler
	interval int64
	sum      *atom.Cell[float64]
	out      atomic.Pointer[Forward]
}

// Rate sums the metrics of incoming events and, every interval seconds,
// forwards one event with metric sum/interval and the scheduler's time,
// then resets the sum. A tick with no input in between forwards 0.
//
// Ticks are forwarded to the downstream of the most recent push; ticks
// before the first push are dropped.
func Rate(sched scheduler.Scheduler, interval int64) *Node {
	if sched == nil {
		argPanic("Rate", ErrNilScheduler)
	}
	checkPositive("Rate", interval)
	r := &rateNode{sched: sched, interval: interval, sum: atom.New(0.0)}
	sched.AddPeriodicTask(r.tick, interval)
	return NewNode(r.process)
}

func (r *rateNode) process(forward Forward, e event.Event) {
	r.out.Store(&forward)
	v := e.MetricValue()
	r.sum.Update(func(s float64) float64 { return s + v }, nil)
}

func (r *rateNode) tick() {
	var total float64
	r.sum.Swap(0, func(prev, _ float64) { total = prev })

	out := r.out.Load()
	if out == nil {
		return
	}
	var e event.Event
	e.SetMetricDouble(total / float64(r.interval))
	e.SetTime(r.sched.Now())
	(*out)(e)
}
