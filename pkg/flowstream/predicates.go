package flowstream

import (
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/scheduler"
)

// Metric comparisons widen whichever metric slot is set to float64. An
// event without a metric compares as 0.

// AbovePred matches events whose metric is > v.
func AbovePred(v float64) Predicate {
	return func(e event.Event) bool { return e.MetricValue() > v }
}

// AboveEqPred matches events whose metric is >= v.
func AboveEqPred(v float64) Predicate {
	return func(e event.Event) bool { return e.MetricValue() >= v }
}

// UnderPred matches events whose metric is < v.
func UnderPred(v float64) Predicate {
	return func(e event.Event) bool { return e.MetricValue() < v }
}

// UnderEqPred matches events whose metric is <= v.
func UnderEqPred(v float64) Predicate {
	return func(e event.Event) bool { return e.MetricValue() <= v }
}

// StatePred matches events in the given state.
func StatePred(state string) Predicate {
	return func(e event.Event) bool { return e.State == state }
}

// ServicePred matches events for the given service.
func ServicePred(service string) Predicate {
	return func(e event.Event) bool { return e.Service == service }
}

// HostPred matches events from the given host.
func HostPred(host string) Predicate {
	return func(e event.Event) bool { return e.Host == host }
}

// ExpiredPred matches events that are expired at sched's current time.
func ExpiredPred(sched scheduler.Scheduler) Predicate {
	return func(e event.Event) bool { return e.Expired(sched.Now()) }
}

// And matches when every predicate matches. And() matches everything.
func And(preds ...Predicate) Predicate {
	return func(e event.Event) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// Or matches when at least one predicate matches. Or() matches nothing.
func Or(preds ...Predicate) Predicate {
	return func(e event.Event) bool {
		for _, p := range preds {
			if p(e) {
				return true
			}
		}
		return false
	}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return func(e event.Event) bool { return !p(e) }
}
