package flowstream

import (
	"slices"

	"github.com/randalmurphal/flowstream/pkg/flowstream/atom"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

type stableState struct {
	started bool
	state   string
	start   int64
	buffer  []event.Event
	flushed []event.Event
}

type stable struct {
	dt    int64
	state *atom.Cell[stableState]
}

// Stable forwards events only once their state has held for dt seconds.
//
// A change of state starts a new run with the changed event and forwards
// nothing. Events of the same state are buffered while their time is
// within dt of the run's start. The first event at or past start+dt
// flushes the buffered run plus itself, ordered by time, one event at a
// time; later events of the same state then flush individually. Events
// older than the run's start are ignored.
func Stable(dt int64) *Node {
	checkPositive("Stable", dt)
	s := &stable{dt: dt, state: atom.New(stableState{})}
	return NewNode(s.process)
}

func (s *stable) process(forward Forward, e event.Event) {
	s.state.Update(
		func(st stableState) stableState {
			st.flushed = nil
			if !st.started || st.state != e.State {
				return stableState{
					started: true,
					state:   e.State,
					start:   e.Time,
					buffer:  []event.Event{e},
				}
			}
			if e.Time < st.start {
				return st
			}
			if st.start+s.dt > e.Time {
				st.buffer = append(slices.Clip(st.buffer), e)
				return st
			}
			flushed := append(slices.Clip(st.buffer), e)
			slices.SortStableFunc(flushed, func(a, b event.Event) int {
				switch {
				case a.Time < b.Time:
					return -1
				case a.Time > b.Time:
					return 1
				}
				return 0
			})
			st.flushed = flushed
			st.buffer = nil
			return st
		},
		func(_, cur stableState) {
			for _, fe := range cur.flushed {
				forward(fe)
			}
		},
	)
}

type throttleState struct {
	boundary  int64
	forwarded int
	pass      bool
}

type throttle struct {
	n     int
	dt    int64
	state *atom.Cell[throttleState]
}

// Throttle forwards at most n events per interval. An interval ends at
// boundary = t + dt, where t is the time of the event that opened it; the
// first event at or past the boundary opens the next interval.
func Throttle(n int, dt int64) *Node {
	checkPositive("Throttle", int64(n))
	checkPositive("Throttle", dt)
	t := &throttle{n: n, dt: dt, state: atom.New(throttleState{})}
	return NewNode(t.process)
}

func (t *throttle) process(forward Forward, e event.Event) {
	t.state.Update(
		func(st throttleState) throttleState {
			if e.Time >= st.boundary {
				st.boundary = e.Time + t.dt
				st.forwarded = 0
			}
			st.pass = st.forwarded < t.n
			if st.pass {
				st.forwarded++
			}
			return st
		},
		func(_, cur throttleState) {
			if cur.pass {
				forward(e)
			}
		},
	)
}
