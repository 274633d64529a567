package flowstream

import (
	"math"

	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

// The folds below return a copy of the most recent input event (by time,
// later position wins ties) carrying the aggregate as a double metric.
// Folding no events yields an empty event with a zero metric.

// Sum folds events into the sum of their metrics.
func Sum(events []event.Event) event.Event {
	return aggregate(events, func(acc, v float64) float64 { return acc + v }, 0)
}

// Product folds events into the product of their metrics.
func Product(events []event.Event) event.Event {
	return aggregate(events, func(acc, v float64) float64 { return acc * v }, 1)
}

// Maximum folds events into their largest metric.
func Maximum(events []event.Event) event.Event {
	return aggregate(events, math.Max, math.Inf(-1))
}

// Minimum folds events into their smallest metric.
func Minimum(events []event.Event) event.Event {
	return aggregate(events, math.Min, math.Inf(1))
}

// Mean folds events into the average of their metrics.
func Mean(events []event.Event) event.Event {
	out := Sum(events)
	if len(events) > 0 {
		out.SetMetricDouble(out.MetricValue() / float64(len(events)))
	}
	return out
}

// Count folds events into how many there are.
func Count(events []event.Event) event.Event {
	out := latest(events)
	out.SetMetricDouble(float64(len(events)))
	return out
}

func aggregate(events []event.Event, step func(acc, v float64) float64, init float64) event.Event {
	out := latest(events)
	if len(events) == 0 {
		out.SetMetricDouble(0)
		return out
	}
	acc := init
	for _, e := range events {
		acc = step(acc, e.MetricValue())
	}
	out.SetMetricDouble(acc)
	return out
}

func latest(events []event.Event) event.Event {
	if len(events) == 0 {
		return event.Event{}
	}
	best := 0
	for i := 1; i < len(events); i++ {
		if events[i].Time >= events[best].Time {
			best = i
		}
	}
	return events[best].Clone()
}
