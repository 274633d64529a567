// Package window holds the immutable buffers behind flowstream's windowing
// operators.
//
// Every operation returns a new value and leaves its receiver untouched,
// so buffers can be stored in an atom.Cell and transformed inside a
// transition that may be retried.
package window

import (
	"slices"

	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

// Push returns a copy of buf with e appended. When limit is positive and
// the result would hold more than limit events, the oldest are dropped.
func Push(buf []event.Event, e event.Event, limit int) []event.Event {
	start := 0
	if limit > 0 && len(buf)+1 > limit {
		start = len(buf) + 1 - limit
	}
	out := make([]event.Event, 0, len(buf)-start+1)
	out = append(out, buf[start:]...)
	return append(out, e)
}

// TimeQueue is a priority queue of events ordered by ascending time.
// Events with equal times keep their insertion order.
//
// The zero TimeQueue is empty and ready to use.
type TimeQueue struct {
	events []event.Event
}

// Len returns the number of queued events.
func (q TimeQueue) Len() int {
	return len(q.events)
}

// Events returns the queued events, oldest first. The caller owns the
// returned slice.
func (q TimeQueue) Events() []event.Event {
	return slices.Clone(q.events)
}

// Min returns the oldest event.
func (q TimeQueue) Min() (event.Event, bool) {
	if len(q.events) == 0 {
		return event.Event{}, false
	}
	return q.events[0], true
}

// Insert returns a queue that also holds e, placed after every queued
// event with the same or an earlier time.
func (q TimeQueue) Insert(e event.Event) TimeQueue {
	i := q.upperBound(e.Time)
	out := make([]event.Event, 0, len(q.events)+1)
	out = append(out, q.events[:i]...)
	out = append(out, e)
	out = append(out, q.events[i:]...)
	return TimeQueue{events: out}
}

// DropThrough returns a queue without the events whose time is <= t.
func (q TimeQueue) DropThrough(t int64) TimeQueue {
	i := q.upperBound(t)
	if i == 0 {
		return q
	}
	return TimeQueue{events: q.events[i:]}
}

// SplitBefore separates the events with time < t, oldest first, from the
// queue of the remaining events.
func (q TimeQueue) SplitBefore(t int64) ([]event.Event, TimeQueue) {
	i := q.lowerBound(t)
	if i == 0 {
		return nil, q
	}
	return slices.Clone(q.events[:i]), TimeQueue{events: q.events[i:]}
}

// upperBound is the index of the first event with time > t.
func (q TimeQueue) upperBound(t int64) int {
	lo, hi := 0, len(q.events)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if q.events[mid].Time <= t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// lowerBound is the index of the first event with time >= t.
func (q TimeQueue) lowerBound(t int64) int {
	lo, hi := 0, len(q.events)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if q.events[mid].Time < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
