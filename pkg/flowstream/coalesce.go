package flowstream

import (
	"maps"
	"slices"

	"github.com/randalmurphal/flowstream/pkg/flowstream/atom"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/scheduler"
)

type coalesceState struct {
	latest  map[string]event.Event
	expired []event.Event
}

type coalesce struct {
	sched scheduler.Scheduler
	fold  Fold
	state *atom.Cell[coalesceState]
}

// Coalesce keeps the latest event for every host and service pair. Each
// input replaces its key's entry and drops the other entries that have
// expired. The fold of the dropped entries is forwarded first, if there
// are any, then the fold of the remaining entries ordered by key.
func Coalesce(sched scheduler.Scheduler, fold Fold) *Node {
	if sched == nil {
		argPanic("Coalesce", ErrNilScheduler)
	}
	checkFold("Coalesce", fold)
	c := &coalesce{
		sched: sched,
		fold:  fold,
		state: atom.New(coalesceState{latest: map[string]event.Event{}}),
	}
	return NewNode(c.process)
}

func (c *coalesce) process(forward Forward, e event.Event) {
	key := event.Key(e)
	now := c.sched.Now()

	c.state.Update(
		func(s coalesceState) coalesceState {
			next := coalesceState{latest: make(map[string]event.Event, len(s.latest)+1)}
			for k, cur := range s.latest {
				if k == key {
					continue
				}
				if cur.Expired(now) {
					next.expired = append(next.expired, cur)
					continue
				}
				next.latest[k] = cur
			}
			next.latest[key] = e
			slices.SortStableFunc(next.expired, byKey)
			return next
		},
		func(_, cur coalesceState) {
			if len(cur.expired) > 0 {
				forward(c.fold(cur.expired))
			}
			keys := slices.Sorted(maps.Keys(cur.latest))
			events := make([]event.Event, 0, len(keys))
			for _, k := range keys {
				events = append(events, cur.latest[k])
			}
			forward(c.fold(events))
		},
	)
}

func byKey(a, b event.Event) int {
	ka, kb := event.Key(a), event.Key(b)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}

type projectState struct {
	slots   []*event.Event
	expired []event.Event
}

type project struct {
	sched scheduler.Scheduler
	preds []Predicate
	fold  Fold
	state *atom.Cell[projectState]
}

// Project keeps one slot per predicate. Each input fills the slot of the
// first predicate it matches; every other filled slot holding an expired
// event is cleared. The fold of the cleared events is forwarded first, if
// there are any, then the fold of the filled slots in predicate order, if
// any are filled.
func Project(sched scheduler.Scheduler, preds []Predicate, fold Fold) *Node {
	if sched == nil {
		argPanic("Project", ErrNilScheduler)
	}
	checkFold("Project", fold)
	for _, p := range preds {
		if p == nil {
			argPanic("Project", ErrNilFunc)
		}
	}
	p := &project{
		sched: sched,
		preds: slices.Clone(preds),
		fold:  fold,
		state: atom.New(projectState{slots: make([]*event.Event, len(preds))}),
	}
	return NewNode(p.process)
}

func (p *project) process(forward Forward, e event.Event) {
	now := p.sched.Now()

	p.state.Update(
		func(s projectState) projectState {
			next := projectState{slots: slices.Clone(s.slots)}
			matched := false
			for i, pred := range p.preds {
				if !matched && pred(e) {
					ne := e
					next.slots[i] = &ne
					matched = true
					continue
				}
				if cur := next.slots[i]; cur != nil && cur.Expired(now) {
					next.expired = append(next.expired, *cur)
					next.slots[i] = nil
				}
			}
			return next
		},
		func(_, cur projectState) {
			if len(cur.expired) > 0 {
				forward(p.fold(cur.expired))
			}
			var events []event.Event
			for _, slot := range cur.slots {
				if slot != nil {
					events = append(events, *slot)
				}
			}
			if len(events) > 0 {
				forward(p.fold(events))
			}
		},
	)
}
