// Package event defines the Event value that flows through a flowstream graph.
//
// Events are plain values. Operators that change a field work on a copy
// obtained with Clone, so the event a caller pushed is never modified.
package event

import (
	"slices"
)

// DefaultTTL is the time-to-live, in seconds, of an event without a TTL.
const DefaultTTL int64 = 60

// StateExpired is the state carried by events that have been expired.
const StateExpired = "expired"

// Attribute is a free-form key/value pair attached to an event.
// Keys need not be unique.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is a single observation: who (host, service), what (state,
// metric), when (time) and for how long it stays valid (ttl).
//
// Time and TTL are optional. HasTime and HasTTL report whether they are
// set; the zero Event has neither.
type Event struct {
	Host        string
	Service     string
	State       string
	Description string

	Time    int64
	HasTime bool

	TTL    int64
	HasTTL bool

	Metric Metric

	Tags       []string
	Attributes []Attribute
}

// Clone returns a deep copy of the event. Tags and attributes of the copy
// do not share backing arrays with the original.
func (e Event) Clone() Event {
	ne := e
	ne.Tags = slices.Clone(e.Tags)
	ne.Attributes = slices.Clone(e.Attributes)
	return ne
}

// SetTime sets the event time in unix seconds.
func (e *Event) SetTime(t int64) {
	e.Time = t
	e.HasTime = true
}

// ClearTime removes the event time.
func (e *Event) ClearTime() {
	e.Time = 0
	e.HasTime = false
}

// SetTTL sets the time-to-live in seconds.
func (e *Event) SetTTL(ttl int64) {
	e.TTL = ttl
	e.HasTTL = true
}

// EffectiveTTL returns the TTL, or DefaultTTL when none is set.
func (e Event) EffectiveTTL() int64 {
	if e.HasTTL {
		return e.TTL
	}
	return DefaultTTL
}

// SetMetricInt stores an integer metric and clears the other slots.
func (e *Event) SetMetricInt(v int64) {
	e.Metric = IntMetric(v)
}

// SetMetricFloat stores a single precision metric and clears the other slots.
func (e *Event) SetMetricFloat(v float32) {
	e.Metric = FloatMetric(v)
}

// SetMetricDouble stores a double precision metric and clears the other slots.
func (e *Event) SetMetricDouble(v float64) {
	e.Metric = DoubleMetric(v)
}

// ClearMetric unsets the metric.
func (e *Event) ClearMetric() {
	e.Metric = Metric{}
}

// HasMetric reports whether any metric slot is set.
func (e Event) HasMetric() bool {
	return e.Metric.IsSet()
}

// MetricValue returns the metric widened to float64, or 0 when unset.
func (e Event) MetricValue() float64 {
	return e.Metric.Float64()
}

// AddTags appends tags to the event. The receiver must be a private copy.
func (e *Event) AddTags(tags ...string) {
	e.Tags = append(e.Tags, tags...)
}

// HasTag reports whether the event carries tag.
func (e Event) HasTag(tag string) bool {
	return slices.Contains(e.Tags, tag)
}

// TaggedAny reports whether the event carries at least one of tags.
func (e Event) TaggedAny(tags ...string) bool {
	for _, t := range tags {
		if e.HasTag(t) {
			return true
		}
	}
	return false
}

// TaggedAll reports whether the event carries every one of tags.
func (e Event) TaggedAll(tags ...string) bool {
	for _, t := range tags {
		if !e.HasTag(t) {
			return false
		}
	}
	return true
}

// Attribute returns the value of the first attribute named key.
func (e Event) Attribute(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttribute overwrites the first attribute named key, or appends one.
func (e *Event) SetAttribute(key, value string) {
	for i := range e.Attributes {
		if e.Attributes[i].Key == key {
			e.Attributes = slices.Clone(e.Attributes)
			e.Attributes[i].Value = value
			return
		}
	}
	e.Attributes = append(e.Attributes, Attribute{Key: key, Value: value})
}

// Expired reports whether the event is expired at unix time now.
//
// An event in state "expired" always is. An event from the future
// (now < time) never is. Otherwise it is expired once more than its TTL
// has elapsed since its time. Events without a time count from zero.
func (e Event) Expired(now int64) bool {
	if e.State == StateExpired {
		return true
	}
	if now < e.Time {
		return false
	}
	return now-e.Time > e.EffectiveTTL()
}

// Key identifies the host/service pair an event describes.
func Key(e Event) string {
	return e.Host + " " + e.Service
}

// Message is a batch of events delivered by a transport.
type Message struct {
	Events []Event `json:"events"`
}
