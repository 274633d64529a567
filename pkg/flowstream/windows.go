package flowstream

import (
	"slices"

	"github.com/randalmurphal/flowstream/pkg/flowstream/atom"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/window"
)

func checkFold(op string, fold Fold) {
	if fold == nil {
		argPanic(op, ErrNilFunc)
	}
}

func checkPositive(op string, n int64) {
	if n <= 0 {
		argPanic(op, ErrInvalidInterval)
	}
}

// movingEventWindow keeps the last n events.
type movingEventWindow struct {
	n    int
	fold Fold
	buf  *atom.Cell[[]event.Event]
}

// MovingEventWindow folds the last n events on every input and forwards
// the result.
func MovingEventWindow(n int, fold Fold) *Node {
	checkPositive("MovingEventWindow", int64(n))
	checkFold("MovingEventWindow", fold)
	w := &movingEventWindow{n: n, fold: fold, buf: atom.New[[]event.Event](nil)}
	return NewNode(w.process)
}

func (w *movingEventWindow) process(forward Forward, e event.Event) {
	w.buf.Update(
		func(buf []event.Event) []event.Event { return window.Push(buf, e, w.n) },
		func(_, cur []event.Event) { forward(w.fold(slices.Clone(cur))) },
	)
}

// fixedEventWindowState is the pending batch plus the batch completed by
// the last update, if any.
type fixedEventWindowState struct {
	pending []event.Event
	full    []event.Event
}

type fixedEventWindow struct {
	n     int
	fold  Fold
	state *atom.Cell[fixedEventWindowState]
}

// FixedEventWindow buffers events until n have arrived, forwards the fold
// of the batch and starts a new one.
func FixedEventWindow(n int, fold Fold) *Node {
	checkPositive("FixedEventWindow", int64(n))
	checkFold("FixedEventWindow", fold)
	w := &fixedEventWindow{n: n, fold: fold, state: atom.New(fixedEventWindowState{})}
	return NewNode(w.process)
}

func (w *fixedEventWindow) process(forward Forward, e event.Event) {
	w.state.Update(
		func(s fixedEventWindowState) fixedEventWindowState {
			batch := window.Push(s.pending, e, 0)
			if len(batch) == w.n {
				return fixedEventWindowState{full: batch}
			}
			return fixedEventWindowState{pending: batch}
		},
		func(_, cur fixedEventWindowState) {
			if len(cur.full) > 0 {
				forward(w.fold(cur.full))
			}
		},
	)
}

type movingTimeWindowState struct {
	queue window.TimeQueue
	max   int64
}

type movingTimeWindow struct {
	dt    int64
	fold  Fold
	state *atom.Cell[movingTimeWindowState]
}

// MovingTimeWindow keeps the events of the last dt seconds, measured from
// the newest event time seen (the watermark), and forwards the fold of the
// window ordered by time on every input. Events without a time are
// ignored.
func MovingTimeWindow(dt int64, fold Fold) *Node {
	checkPositive("MovingTimeWindow", dt)
	checkFold("MovingTimeWindow", fold)
	w := &movingTimeWindow{dt: dt, fold: fold, state: atom.New(movingTimeWindowState{})}
	return NewNode(w.process)
}

func (w *movingTimeWindow) process(forward Forward, e event.Event) {
	if !e.HasTime {
		return
	}
	w.state.Update(
		func(s movingTimeWindowState) movingTimeWindowState {
			s.max = max(s.max, e.Time)
			s.queue = s.queue.Insert(e).DropThrough(s.max - w.dt)
			return s
		},
		func(_, cur movingTimeWindowState) {
			if cur.queue.Len() > 0 {
				forward(w.fold(cur.queue.Events()))
			}
		},
	)
}

type fixedTimeWindowState struct {
	queue   window.TimeQueue
	start   int64
	max     int64
	started bool
	flushed []event.Event
}

type fixedTimeWindow struct {
	dt    int64
	fold  Fold
	state *atom.Cell[fixedTimeWindowState]
}

// FixedTimeWindow buckets events into dt-second intervals aligned to the
// first event's time. When the watermark reaches the end of the current
// bucket, the events before the boundary are folded and forwarded, and
// the bucket advances. Events older than the current bucket and events
// without a time are dropped.
func FixedTimeWindow(dt int64, fold Fold) *Node {
	checkPositive("FixedTimeWindow", dt)
	checkFold("FixedTimeWindow", fold)
	w := &fixedTimeWindow{dt: dt, fold: fold, state: atom.New(fixedTimeWindowState{})}
	return NewNode(w.process)
}

func (w *fixedTimeWindow) process(forward Forward, e event.Event) {
	if !e.HasTime {
		return
	}
	w.state.Update(
		func(s fixedTimeWindowState) fixedTimeWindowState {
			s.flushed = nil
			if !s.started {
				s.started = true
				s.start = e.Time
				s.max = e.Time
				s.queue = s.queue.Insert(e)
				return s
			}
			if e.Time < s.start {
				return s
			}

			s.max = max(s.max, e.Time)
			next := s.start - s.start%w.dt + w.dt
			s.queue = s.queue.Insert(e)
			if s.max < next {
				return s
			}
			s.flushed, s.queue = s.queue.SplitBefore(next)
			s.start = next
			return s
		},
		func(_, cur fixedTimeWindowState) {
			if len(cur.flushed) > 0 {
				forward(w.fold(cur.flushed))
			}
		},
	)
}
