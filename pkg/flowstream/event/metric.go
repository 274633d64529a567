package event

// MetricKind selects which metric slot of an event is in use.
type MetricKind uint8

const (
	// MetricNone means the event carries no metric.
	MetricNone MetricKind = iota
	// MetricInt is a signed 64-bit integer metric.
	MetricInt
	// MetricFloat is a single precision metric.
	MetricFloat
	// MetricDouble is a double precision metric.
	MetricDouble
)

// String returns the wire name of the slot.
func (k MetricKind) String() string {
	switch k {
	case MetricInt:
		return "metric_sint64"
	case MetricFloat:
		return "metric_f"
	case MetricDouble:
		return "metric_d"
	default:
		return "none"
	}
}

// Metric holds at most one numeric value. Only the slot named by Kind is
// meaningful.
type Metric struct {
	Kind   MetricKind
	Int    int64
	Float  float32
	Double float64
}

// IntMetric returns an integer metric.
func IntMetric(v int64) Metric {
	return Metric{Kind: MetricInt, Int: v}
}

// FloatMetric returns a single precision metric.
func FloatMetric(v float32) Metric {
	return Metric{Kind: MetricFloat, Float: v}
}

// DoubleMetric returns a double precision metric.
func DoubleMetric(v float64) Metric {
	return Metric{Kind: MetricDouble, Double: v}
}

// IsSet reports whether a slot is in use.
func (m Metric) IsSet() bool {
	return m.Kind != MetricNone
}

// Float64 widens the active slot to float64. Unset metrics read as 0.
func (m Metric) Float64() float64 {
	switch m.Kind {
	case MetricInt:
		return float64(m.Int)
	case MetricFloat:
		return float64(m.Float)
	case MetricDouble:
		return m.Double
	default:
		return 0
	}
}
