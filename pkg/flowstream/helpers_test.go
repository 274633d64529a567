package flowstream_test

import (
	"sync"

	"github.com/randalmurphal/flowstream/pkg/flowstream"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

// sink collects every event that reaches it.
type sink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *sink) node() *flowstream.Node {
	return flowstream.NewNode(func(_ flowstream.Forward, e event.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events = append(s.events, e)
	})
}

// take returns the collected events and resets the sink.
func (s *sink) take() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// foldRecorder is a Fold that remembers every sequence it was given.
type foldRecorder struct {
	mu    sync.Mutex
	calls [][]event.Event
}

func (f *foldRecorder) fold(events []event.Event) event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]event.Event(nil), events...))
	return event.Event{}
}

func (f *foldRecorder) take() [][]event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.calls
	f.calls = nil
	return out
}

func ev(host string, ts int64) event.Event {
	e := event.Event{Host: host, Service: host}
	e.SetTime(ts)
	return e
}

func metricEvent(v int64, ts int64) event.Event {
	e := event.Event{}
	e.SetMetricInt(v)
	e.SetTime(ts)
	return e
}

func metrics(events []event.Event) []int64 {
	out := make([]int64, 0, len(events))
	for _, e := range events {
		out = append(out, e.Metric.Int)
	}
	return out
}

func hosts(events []event.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Host)
	}
	return out
}
