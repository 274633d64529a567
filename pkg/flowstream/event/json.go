package event

import (
	"encoding/json"
	"fmt"
)

// wireEvent is the JSON shape of an Event. Optional fields are pointers so
// that an absent time, ttl or metric stays absent after decoding.
type wireEvent struct {
	Host         string       `json:"host,omitempty"`
	Service      string       `json:"service,omitempty"`
	State        string       `json:"state,omitempty"`
	Description  string       `json:"description,omitempty"`
	Time         *int64       `json:"time,omitempty"`
	TTL          *int64       `json:"ttl,omitempty"`
	Metric       *json.Number `json:"metric,omitempty"`
	MetricSint64 *int64       `json:"metric_sint64,omitempty"`
	MetricF      *float32     `json:"metric_f,omitempty"`
	MetricD      *float64     `json:"metric_d,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Attributes   []Attribute  `json:"attributes,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		Host:        e.Host,
		Service:     e.Service,
		State:       e.State,
		Description: e.Description,
		Tags:        e.Tags,
		Attributes:  e.Attributes,
	}
	if e.HasTime {
		t := e.Time
		w.Time = &t
	}
	if e.HasTTL {
		ttl := e.TTL
		w.TTL = &ttl
	}
	switch e.Metric.Kind {
	case MetricInt:
		v := e.Metric.Int
		w.MetricSint64 = &v
	case MetricFloat:
		v := e.Metric.Float
		w.MetricF = &v
	case MetricDouble:
		v := e.Metric.Double
		w.MetricD = &v
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
//
// The generic "metric" key is accepted on input: integer literals select
// the sint64 slot, anything else the double slot. Explicit slot keys win
// over "metric".
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	*e = Event{
		Host:        w.Host,
		Service:     w.Service,
		State:       w.State,
		Description: w.Description,
		Tags:        w.Tags,
		Attributes:  w.Attributes,
	}
	if w.Time != nil {
		e.SetTime(*w.Time)
	}
	if w.TTL != nil {
		e.SetTTL(*w.TTL)
	}

	switch {
	case w.MetricSint64 != nil:
		e.SetMetricInt(*w.MetricSint64)
	case w.MetricF != nil:
		e.SetMetricFloat(*w.MetricF)
	case w.MetricD != nil:
		e.SetMetricDouble(*w.MetricD)
	case w.Metric != nil:
		if i, err := w.Metric.Int64(); err == nil {
			e.SetMetricInt(i)
		} else if f, err := w.Metric.Float64(); err == nil {
			e.SetMetricDouble(f)
		} else {
			return fmt.Errorf("decode event: invalid metric %q", w.Metric.String())
		}
	}
	return nil
}
