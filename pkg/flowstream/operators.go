package flowstream

import (
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/scheduler"
)

// Changes maps field names to the values With and DefaultTo write.
// Field names follow event.Lookup; unknown names are attributes.
type Changes map[string]event.Value

// Clause pairs a predicate with the node that receives matching events.
type Clause struct {
	When Predicate
	Node *Node
}

// Indexer receives the events IndexSink stores.
type Indexer interface {
	AddEvent(e event.Event)
}

// Pass forwards every event unchanged.
func Pass() *Node {
	return NewNode(func(forward Forward, e event.Event) {
		forward(e)
	})
}

// With forwards a copy of each event with every field in changes set.
// A metric change selects the slot matching the value (integer or float)
// and clears the others.
func With(changes Changes) *Node {
	return withChanges(changes, true)
}

// DefaultTo forwards a copy of each event with the fields in changes set
// only where the event has no value for them.
func DefaultTo(changes Changes) *Node {
	return withChanges(changes, false)
}

func withChanges(changes Changes, replace bool) *Node {
	fields := make([]string, 0, len(changes))
	for f := range changes {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	values := make([]event.Value, len(fields))
	for i, f := range fields {
		values[i] = changes[f]
	}

	return NewNode(func(forward Forward, e event.Event) {
		ne := e.Clone()
		for i, f := range fields {
			ne.Set(f, values[i], replace)
		}
		forward(ne)
	})
}

// SMap forwards a copy of each event after f has modified it.
func SMap(f func(e *event.Event)) *Node {
	if f == nil {
		argPanic("SMap", ErrNilFunc)
	}
	return NewNode(func(forward Forward, e event.Event) {
		ne := e.Clone()
		f(&ne)
		forward(ne)
	})
}

// Tag forwards a copy of each event with tags appended.
func Tag(tags ...string) *Node {
	tags = slices.Clone(tags)
	return NewNode(func(forward Forward, e event.Event) {
		ne := e.Clone()
		ne.AddTags(tags...)
		forward(ne)
	})
}

// Scale forwards a copy of each event whose metric is multiplied by s and
// stored as a double. A missing metric scales as 0.
func Scale(s float64) *Node {
	return NewNode(func(forward Forward, e event.Event) {
		ne := e.Clone()
		ne.SetMetricDouble(s * e.MetricValue())
		forward(ne)
	})
}

// Where forwards events matching pred. Other events are pushed into each
// of elseNodes as independent subgraphs; their output does not rejoin
// Where's downstream.
func Where(pred Predicate, elseNodes ...*Node) *Node {
	if pred == nil {
		argPanic("Where", ErrNilFunc)
	}
	checkNodes("Where", elseNodes)
	elseNodes = slices.Clone(elseNodes)

	return NewNode(func(forward Forward, e event.Event) {
		if pred(e) {
			forward(e)
			return
		}
		pushAll(elseNodes, e)
	})
}

// Split pushes each event into the node of the first clause whose
// predicate matches, or into def when none does. def may be nil, in which
// case unmatched events are dropped. Split forwards nothing itself.
func Split(clauses []Clause, def *Node) *Node {
	clauses = slices.Clone(clauses)
	for _, c := range clauses {
		if c.When == nil {
			argPanic("Split", ErrNilFunc)
		}
		if c.Node == nil {
			argPanic("Split", ErrNilNode)
		}
	}

	return NewNode(func(_ Forward, e event.Event) {
		for _, c := range clauses {
			if c.When(e) {
				c.Node.Push(e)
				return
			}
		}
		if def != nil {
			def.Push(e)
		}
	})
}

// Filter forwards events matching pred.
func Filter(pred Predicate) *Node {
	if pred == nil {
		argPanic("Filter", ErrNilFunc)
	}
	return NewNode(func(forward Forward, e event.Event) {
		if pred(e) {
			forward(e)
		}
	})
}

// TaggedAny forwards events carrying at least one of tags.
func TaggedAny(tags ...string) *Node {
	tags = slices.Clone(tags)
	return Filter(func(e event.Event) bool { return e.TaggedAny(tags...) })
}

// TaggedAll forwards events carrying every one of tags.
func TaggedAll(tags ...string) *Node {
	tags = slices.Clone(tags)
	return Filter(func(e event.Event) bool { return e.TaggedAll(tags...) })
}

// Above forwards events whose metric is greater than m.
func Above(m float64) *Node {
	return Filter(AbovePred(m))
}

// Under forwards events whose metric is less than m.
func Under(m float64) *Node {
	return Filter(UnderPred(m))
}

// Within forwards events whose metric lies in [a, b].
func Within(a, b float64) *Node {
	return Filter(And(AboveEqPred(a), UnderEqPred(b)))
}

// Without forwards events whose metric lies outside [a, b].
func Without(a, b float64) *Node {
	return Filter(Or(UnderPred(a), AbovePred(b)))
}

// Expired forwards events that are expired at the scheduler's current time.
func Expired(sched scheduler.Scheduler) *Node {
	if sched == nil {
		argPanic("Expired", ErrNilScheduler)
	}
	return Filter(ExpiredPred(sched))
}

// IndexSink stores every event that is not in the expired state into idx,
// then forwards it.
func IndexSink(idx Indexer) *Node {
	if idx == nil {
		argPanic("IndexSink", ErrNilNode)
	}
	return NewNode(func(forward Forward, e event.Event) {
		if e.State != event.StateExpired {
			idx.AddEvent(e)
		}
		forward(e)
	})
}

// Log writes each event as JSON at info level, then forwards it. A nil
// logger uses the package logger.
func Log(l *slog.Logger) *Node {
	return NewNode(func(forward Forward, e event.Event) {
		lg := l
		if lg == nil {
			lg = logger()
		}
		data, err := json.Marshal(e)
		if err != nil {
			lg.Warn("event not encodable", slog.String("error", err.Error()))
		} else {
			lg.Info("event", slog.String("event", string(data)))
		}
		forward(e)
	})
}
