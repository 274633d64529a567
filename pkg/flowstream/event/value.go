package event

import (
	"strconv"
	"strings"
)

// Missing is the text an absent field renders as when used in a key.
const Missing = "<missing>"

// ValueKind is the dynamic type held by a Value.
type ValueKind uint8

const (
	// KindAbsent is a field that is not set on the event.
	KindAbsent ValueKind = iota
	// KindString is a text value.
	KindString
	// KindInt is an integer value.
	KindInt
	// KindFloat is a floating point value.
	KindFloat
)

// Value is a typed field value: a string, an integer, a float, or absent.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Absent returns the absent value.
func Absent() Value { return Value{} }

// Kind reports the dynamic type.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether the field was not set.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// String renders the value as text. Absent values render as Missing.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return Missing
	}
}

// Int64 converts the value to an integer. Strings are parsed; the second
// result is false when no integer can be obtained.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		return int64(v.f), true
	case KindString:
		i, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// Float64 converts the value to a float. Strings are parsed; the second
// result is false when no number can be obtained.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Lookup reads a field by name.
//
// Known names are host, service, state, description, time, ttl, metric,
// metric_sint64, metric_f, metric_d and tags. Any other name resolves to
// the first attribute with that key. Unset fields return an absent Value.
func (e Event) Lookup(field string) Value {
	switch field {
	case "host":
		return stringField(e.Host)
	case "service":
		return stringField(e.Service)
	case "state":
		return stringField(e.State)
	case "description":
		return stringField(e.Description)
	case "time":
		if !e.HasTime {
			return Absent()
		}
		return Int(e.Time)
	case "ttl":
		if !e.HasTTL {
			return Absent()
		}
		return Int(e.TTL)
	case "metric":
		switch e.Metric.Kind {
		case MetricInt:
			return Int(e.Metric.Int)
		case MetricNone:
			return Absent()
		default:
			return Float(e.Metric.Float64())
		}
	case "metric_sint64":
		if e.Metric.Kind != MetricInt {
			return Absent()
		}
		return Int(e.Metric.Int)
	case "metric_f":
		if e.Metric.Kind != MetricFloat {
			return Absent()
		}
		return Float(float64(e.Metric.Float))
	case "metric_d":
		if e.Metric.Kind != MetricDouble {
			return Absent()
		}
		return Float(e.Metric.Double)
	case "tags":
		if len(e.Tags) == 0 {
			return Absent()
		}
		return String(strings.Join(e.Tags, ","))
	}
	if v, ok := e.Attribute(field); ok {
		return String(v)
	}
	return Absent()
}

func stringField(s string) Value {
	if s == "" {
		return Absent()
	}
	return String(s)
}

// Set writes a field by name on the receiver, which must be a private copy.
//
// When replace is false the field is only written if it is currently
// absent. Metric accepts integers (stored in the sint64 slot) and floats
// (stored in the double slot); setting one clears the others. Names that
// are not event fields set an attribute. Values that cannot be converted
// to the field's type are ignored.
func (e *Event) Set(field string, v Value, replace bool) {
	if v.IsAbsent() {
		return
	}
	if !replace && !e.Lookup(field).IsAbsent() {
		return
	}

	switch field {
	case "host":
		e.Host = v.String()
	case "service":
		e.Service = v.String()
	case "state":
		e.State = v.String()
	case "description":
		e.Description = v.String()
	case "time":
		if t, ok := v.Int64(); ok {
			e.SetTime(t)
		}
	case "ttl":
		if t, ok := v.Int64(); ok {
			e.SetTTL(t)
		}
	case "metric":
		switch v.kind {
		case KindInt:
			e.SetMetricInt(v.i)
		case KindFloat:
			e.SetMetricDouble(v.f)
		case KindString:
			if i, ok := v.Int64(); ok {
				e.SetMetricInt(i)
			} else if f, ok := v.Float64(); ok {
				e.SetMetricDouble(f)
			}
		}
	case "metric_sint64":
		if i, ok := v.Int64(); ok {
			e.SetMetricInt(i)
		}
	case "metric_f":
		if f, ok := v.Float64(); ok {
			e.SetMetricFloat(float32(f))
		}
	case "metric_d":
		if f, ok := v.Float64(); ok {
			e.SetMetricDouble(f)
		}
	case "tags":
		e.AddTags(v.String())
	default:
		e.SetAttribute(field, v.String())
	}
}
